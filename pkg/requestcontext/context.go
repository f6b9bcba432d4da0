// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware and consumers set values; services read them without importing net/http.
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests pin time with requestcontext.WithTime(ctx, fixedTime).
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	gateIDKey      struct{}
)

var (
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyGateID      = gateIDKey{}
)

// RequestID retrieves the transport-level request id (HTTP request or notification id).
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// PeerGateID retrieves the gate id of the peer that sent an inbound message.
func PeerGateID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyGateID).(string); ok {
		return v
	}
	return ""
}

func WithPeerGateID(ctx context.Context, gateID string) context.Context {
	return context.WithValue(ctx, ContextKeyGateID, gateID)
}

// Now returns the injected request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time, mostly for tests.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
