package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() http.Handler {
	return newServer(slog.New(slog.NewTextHandler(io.Discard, nil))).routes()
}

func TestGetConsignment(t *testing.T) {
	h := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/consignments/ds-1?subsetId=SI01&subsetId=SI02", nil)
	req.Header.Set(platformHeader, "acme")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<id>ds-1</id>")
	assert.Contains(t, body, "<platformId>acme</platformId>")
	assert.Contains(t, body, "<subset>SI02</subset>")
}

func TestMissingConsignment(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestServer().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/consignments/missing-1", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNotesAreRecorded(t *testing.T) {
	h := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/consignments/ds-1/follow-up", strings.NewReader(`{"message":"seal broken"}`))
	req.Header.Set(platformHeader, "acme")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/notes", nil))
	assert.Contains(t, rr.Body.String(), `"message":"seal broken"`)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/consignments/ds-1/follow-up", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
