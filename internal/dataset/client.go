// Package dataset talks to the local platform that holds consignment datasets.
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/time/rate"

	"efti-gate/internal/platform/config"
	"efti-gate/pkg/platform/sentinel"
)

const (
	maxDatasetBytes = 8 << 20
	platformHeader  = "X-Efti-Platform-Id"
)

// RestClient reads datasets from, and posts follow-up notes to, the local
// platform REST API.
type RestClient struct {
	baseURL   string
	platforms []string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

type Option func(*RestClient)

func WithHTTPClient(c *http.Client) Option {
	return func(r *RestClient) { r.client = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *RestClient) { r.logger = l }
}

// WithRateLimit caps calls to the platform at perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *RestClient) {
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

func NewRestClient(cfg config.PlatformConfig, opts ...Option) *RestClient {
	r := &RestClient{
		baseURL:   strings.TrimSuffix(cfg.URL, "/"),
		platforms: cfg.IDs,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Inf, 1),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// KnowsPlatform reports whether platformID is served by this gate.
func (r *RestClient) KnowsPlatform(platformID string) bool {
	return knows(r.platforms, platformID)
}

// FetchDataset returns the consignment document for datasetID, restricted to
// subsetIDs when any are given. A missing dataset wraps sentinel.ErrNotFound.
func (r *RestClient) FetchDataset(ctx context.Context, platformID, datasetID string, subsetIDs []string) ([]byte, error) {
	q := url.Values{}
	for _, id := range subsetIDs {
		q.Add("subsetId", id)
	}
	path := "/consignments/" + url.PathEscape(datasetID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := r.do(ctx, http.MethodGet, path, platformID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDatasetBytes))
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if err := statusError(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("fetch dataset %s: %w", datasetID, err)
	}
	return body, nil
}

type noteBody struct {
	Message string `json:"message"`
}

// PostNote hands a follow-up message for datasetID to the platform.
func (r *RestClient) PostNote(ctx context.Context, platformID, datasetID, message string) error {
	payload, err := json.Marshal(noteBody{Message: message})
	if err != nil {
		return fmt.Errorf("encode note: %w", err)
	}
	path := "/consignments/" + url.PathEscape(datasetID) + "/follow-up"
	resp, err := r.do(ctx, http.MethodPost, path, platformID, payload)
	if err != nil {
		return fmt.Errorf("post note: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDatasetBytes))
	if err := statusError(resp.StatusCode); err != nil {
		return fmt.Errorf("post note for %s: %w", datasetID, err)
	}
	return nil
}

func (r *RestClient) do(ctx context.Context, method, path, platformID string, body []byte) (*http.Response, error) {
	if r.baseURL == "" {
		return nil, fmt.Errorf("platform url is not configured: %w", sentinel.ErrUnavailable)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(platformHeader, platformID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.WarnContext(ctx, "platform unreachable", "platform_id", platformID, "error", err)
		return nil, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return resp, nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return sentinel.ErrNotFound
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: platform returned %d", sentinel.ErrUnavailable, code)
	default:
		return fmt.Errorf("platform returned %d", code)
	}
}

func knows(platforms []string, platformID string) bool {
	if platformID == "" {
		return false
	}
	return len(platforms) == 0 || slices.Contains(platforms, platformID)
}
