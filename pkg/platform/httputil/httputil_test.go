package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "efti-gate/pkg/domain-errors"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDesc    string
		descPresent bool
	}{
		{
			name:        "validation code carries the taxonomy code as description",
			err:         dErrors.New(dErrors.CodeValidation, "DATASET_ID_MISSING"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "validation_error",
			wantDesc:    "DATASET_ID_MISSING",
			descPresent: true,
		},
		{
			name:        "unknown control is a 404",
			err:         dErrors.New(dErrors.CodeNotFound, "control not found"),
			wantStatus:  http.StatusNotFound,
			wantCode:    "not_found",
			wantDesc:    "control not found",
			descPresent: true,
		},
		{
			name:        "wrapped conflict keeps its code",
			err:         fmt.Errorf("create: %w", dErrors.New(dErrors.CodeConflict, "request id already in use")),
			wantStatus:  http.StatusConflict,
			wantCode:    "conflict",
			wantDesc:    "request id already in use",
			descPresent: true,
		},
		{
			name:       "internal errors hide their description",
			err:        dErrors.Wrap(errors.New("connection reset"), dErrors.CodeInternal, "failed to load control"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
		{
			name:       "uncoded errors are internal",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			body := decodeBody(t, w)
			assert.Equal(t, tt.wantCode, body["error"])
			desc, ok := body["error_description"]
			assert.Equal(t, tt.descPresent, ok)
			assert.Equal(t, tt.wantDesc, desc)
		})
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeBadRequest:         http.StatusBadRequest,
		dErrors.CodeInvalidInput:       http.StatusBadRequest,
		dErrors.CodeUnauthorized:       http.StatusUnauthorized,
		dErrors.CodeForbidden:          http.StatusForbidden,
		dErrors.CodeTimeout:            http.StatusGatewayTimeout,
		dErrors.CodeUnavailable:        http.StatusServiceUnavailable,
		dErrors.CodeInvariantViolation: http.StatusUnprocessableEntity,
		dErrors.Code("something_else"): http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusFor(code), string(code))
	}
}

type noteBody struct {
	Message string `json:"message"`
}

func (r *noteBody) Validate() error {
	r.Message = strings.TrimSpace(r.Message)
	if r.Message == "" {
		return dErrors.New(dErrors.CodeValidation, "message is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	post := func(body string) (*httptest.ResponseRecorder, *noteBody, bool) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/v1/controls/abc/notes", strings.NewReader(body))
		req, ok := DecodeAndPrepare[noteBody](w, r, nil, context.Background(), "req-1")
		return w, req, ok
	}

	t.Run("valid body is normalized by its validator", func(t *testing.T) {
		_, req, ok := post(`{"message":"  check the seals  "}`)
		require.True(t, ok)
		assert.Equal(t, "check the seals", req.Message)
	})

	t.Run("malformed json is a bad request", func(t *testing.T) {
		w, req, ok := post(`{"message":`)
		assert.False(t, ok)
		assert.Nil(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeBody(t, w)["error"])
	})

	t.Run("validator failure is written as is", func(t *testing.T) {
		w, _, ok := post(`{"message":"   "}`)
		assert.False(t, ok)
		body := decodeBody(t, w)
		assert.Equal(t, "validation_error", body["error"])
		assert.Equal(t, "message is required", body["error_description"])
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		w, _, ok := post(`{"message":"` + strings.Repeat("x", maxBodyBytes) + `"}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
