package middleware

import (
	"context"

	"github.com/Suhaibinator/SResolve/pkg/resolver"
	"go.uber.org/zap"
)

// TokenValidator validates a token and returns the principal it identifies.
// Returning false rejects the token.
type TokenValidator func(ctx context.Context, token string) (principal any, ok bool)

// StaticTokens returns a TokenValidator backed by a fixed token -> principal map.
func StaticTokens(tokens map[string]string) TokenValidator {
	return func(_ context.Context, token string) (any, bool) {
		principal, ok := tokens[token]
		return principal, ok
	}
}

// Authentication is a middleware that requires a valid token under TokenKey.
// On success the principal is stored under PrincipalKey for the rest of the chain;
// otherwise the chain is cut short with ErrUnauthorized.
func Authentication[T, P any](validate TokenValidator, logger *zap.Logger) resolver.Middleware[T, P] {
	logger = loggerOrNop(logger)
	return func(_ P, ctx resolver.Context[T]) (T, error) {
		var zero T

		token, _ := ctx.Value(TokenKey).(string)
		if token == "" {
			logger.Warn("Authentication failed: no token",
				zap.String("trace_id", TraceID(ctx)),
			)
			return zero, ErrUnauthorized
		}

		principal, ok := validate(ctx.Context(), token)
		if !ok {
			logger.Warn("Authentication failed: invalid token",
				zap.String("trace_id", TraceID(ctx)),
			)
			return zero, ErrUnauthorized
		}

		return ctx.With(PrincipalKey, principal).Next()
	}
}
