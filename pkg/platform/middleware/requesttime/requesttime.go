// Package requesttime pins one "now" per HTTP request so every Control and
// Request row written while serving it shares the same timestamp.
package requesttime

import (
	"net/http"
	"time"

	"efti-gate/pkg/requestcontext"
)

// Middleware stores the wall clock at request start in the context.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareWithClock(time.Now)(next)
}

// MiddlewareWithClock is Middleware with an injectable clock.
func MiddlewareWithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
