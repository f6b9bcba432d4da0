// Package e2e drives a running gate through its control API with godog
// feature files.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// TestContext carries the HTTP client and the last response across the steps
// of one scenario.
type TestContext struct {
	baseURL     string
	ownerGateID string
	client      *http.Client

	status    int
	body      []byte
	requestID string
}

// NewTestContext reads E2E_BASE_URL and E2E_OWNER_GATE_ID, defaulting to a
// gate started locally with its default configuration.
func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:     strings.TrimRight(envOr("E2E_BASE_URL", "http://localhost:8080"), "/"),
		ownerGateID: envOr("E2E_OWNER_GATE_ID", "borduria"),
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.status = 0
	tc.body = nil
	tc.requestID = ""
}

func (tc *TestContext) OwnerGateID() string { return tc.ownerGateID }

func (tc *TestContext) RequestID() string { return tc.requestID }

func (tc *TestContext) SetRequestID(id string) { tc.requestID = id }

func (tc *TestContext) Status() int { return tc.status }

func (tc *TestContext) Body() []byte { return tc.body }

// POST sends body as JSON; a string body is sent verbatim.
func (tc *TestContext) POST(ctx context.Context, path string, body any) error {
	var raw []byte
	switch b := body.(type) {
	case nil:
	case string:
		raw = []byte(b)
	default:
		var err error
		if raw, err = json.Marshal(b); err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) GET(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.status = resp.StatusCode
	tc.body = body
	return nil
}

// Field returns a top-level field of the last JSON response.
func (tc *TestContext) Field(name string) (any, error) {
	var doc map[string]any
	if err := json.Unmarshal(tc.body, &doc); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w (body %q)", err, tc.body)
	}
	v, ok := doc[name]
	if !ok {
		return nil, fmt.Errorf("response has no field %q (body %q)", name, tc.body)
	}
	return v, nil
}
