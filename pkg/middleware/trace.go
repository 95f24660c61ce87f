package middleware

import (
	"context"

	"github.com/Suhaibinator/SResolve/pkg/resolver"
	"github.com/google/uuid"
)

// contextKey is a type for resolver context keys
type contextKey string

const (
	// TraceIDKey is the key used to store the trace ID in the resolver context
	// and in the embedded context.Context.
	TraceIDKey contextKey = "trace_id"

	// ClientIPKey is the key used to store the client IP in the resolver context.
	ClientIPKey contextKey = "client_ip"

	// TokenKey is the key used to store the caller's bearer token in the resolver context.
	TokenKey contextKey = "token"

	// PrincipalKey is the key under which Authentication stores the validated principal.
	PrincipalKey contextKey = "principal"
)

// Trace creates a middleware that assigns a unique trace ID to the resolution
// unless one is already present. The ID is visible to every downstream middleware.
func Trace[T, P any]() resolver.Middleware[T, P] {
	return func(_ P, ctx resolver.Context[T]) (T, error) {
		if TraceID(ctx) != "" {
			return ctx.Next()
		}

		traceID := uuid.New().String()
		ctx = ctx.
			With(TraceIDKey, traceID).
			WithContext(context.WithValue(ctx.Context(), TraceIDKey, traceID))

		return ctx.Next()
	}
}

// TraceID extracts the trace ID from resolver context fields, falling back to the
// embedded context.Context. Returns an empty string if no trace ID is found.
func TraceID(v resolver.Valuer) string {
	if traceID, ok := v.Value(TraceIDKey).(string); ok {
		return traceID
	}
	if c, ok := v.(interface{ Context() context.Context }); ok {
		return TraceIDFromContext(c.Context())
	}
	return ""
}

// TraceIDFromContext extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// ClientIP returns the client IP stored in the resolver context, if any.
func ClientIP(v resolver.Valuer) string {
	ip, _ := v.Value(ClientIPKey).(string)
	return ip
}

// Principal returns the principal stored by Authentication, if any.
func Principal(v resolver.Valuer) (any, bool) {
	p := v.Value(PrincipalKey)
	return p, p != nil
}
