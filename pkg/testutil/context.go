package testutil

import (
	"context"
	"net/http"
	"time"

	"efti-gate/pkg/requestcontext"
)

// FixedTime is the wall clock used by control lifecycle tests.
var FixedTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// Context returns a background context pinned to FixedTime plus offset.
func Context(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), FixedTime.Add(offset))
}

// WithRequestID tags the request context the way the request id middleware does.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
