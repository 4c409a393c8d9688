// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// This package defines context keys and getter/setter functions for values
// that are typically set by middleware but consumed by services and stores.
// By keeping this package free of net/http dependencies, services can import
// only what they need without pulling in HTTP-related code.
//
// Usage in services (read values):
//
//	registrarID := requestcontext.RegistrarID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithRegistrarID(ctx, "TheRegistrar")
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	registrarIDKey struct{}
	superuserKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyRegistrarID = registrarIDKey{}
	ContextKeySuperuser   = superuserKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Auth context (registrar identity)
// -----------------------------------------------------------------------------

// RegistrarID retrieves the authenticated registrar ID from the context.
func RegistrarID(ctx context.Context) string {
	if registrarID, ok := ctx.Value(ContextKeyRegistrarID).(string); ok {
		return registrarID
	}
	return ""
}

// WithRegistrarID injects a registrar ID into the context.
func WithRegistrarID(ctx context.Context, registrarID string) context.Context {
	return context.WithValue(ctx, ContextKeyRegistrarID, registrarID)
}

// Superuser reports whether the caller carries the elevated capability.
func Superuser(ctx context.Context) bool {
	if su, ok := ctx.Value(ContextKeySuperuser).(bool); ok {
		return su
	}
	return false
}

// WithSuperuser marks the context as carrying the elevated capability.
func WithSuperuser(ctx context.Context, superuser bool) context.Context {
	return context.WithValue(ctx, ContextKeySuperuser, superuser)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Time retrieves the request-scoped time from context, reporting whether one
// was set. Stores consult this so a transaction opened inside an HTTP request
// observes the same "now" the middleware captured.
func Time(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(ContextKeyRequestTime).(time.Time)
	return t, ok
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := Time(ctx); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Workers that need consistent time within a batch operation
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
