// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Values are set by whatever transport fronts the engine (HTTP handlers,
// workflow engine, backfill tools) and consumed by the engine's services,
// mostly to stamp audit events. Keeping this package free of net/http lets
// services import only what they need.
//
// Usage in services (read values):
//
//	principal := requestcontext.Principal(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithPrincipal(ctx, "tenant:acme")
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	principalKey   struct{}
	purposeKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyPrincipal   = principalKey{}
	ContextKeyPurpose     = purposeKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Principal retrieves the acting principal (e.g. "tenant:<id>" or an ops user)
// from the context. Empty when not set.
func Principal(ctx context.Context) string {
	if p, ok := ctx.Value(ContextKeyPrincipal).(string); ok {
		return p
	}
	return ""
}

// WithPrincipal injects the acting principal into the context.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, principal)
}

// Purpose retrieves the caller-supplied access reason used on decrypt audit
// events. Empty when not set.
func Purpose(ctx context.Context) string {
	if p, ok := ctx.Value(ContextKeyPurpose).(string); ok {
		return p
	}
	return ""
}

// WithPurpose injects the access reason into the context.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, ContextKeyPurpose, purpose)
}

// RequestID retrieves the correlation ID from the context. Empty when not set.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request time if one was injected, falling back to
// time.Now(). Tests inject a fixed time to make timestamps deterministic.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed request time into the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
