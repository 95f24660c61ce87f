package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/Suhaibinator/SResolve/pkg/resolver"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestAuthentication tests the accepted and rejected token cases
func TestAuthentication(t *testing.T) {
	validate := StaticTokens(map[string]string{"good-token": "user-1"})

	tests := []struct {
		name      string
		token     any
		wantErr   error
		wantUser  string
		wantCalls int
		wantLogs  int
	}{
		{name: "valid token", token: "good-token", wantUser: "user-1", wantCalls: 1},
		{name: "invalid token", token: "bad-token", wantErr: ErrUnauthorized, wantLogs: 1},
		{name: "missing token", token: nil, wantErr: ErrUnauthorized, wantLogs: 1},
		{name: "non-string token", token: 42, wantErr: ErrUnauthorized, wantLogs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			calls := 0
			final := func(_ *request, ctx resolver.Context[string]) (string, error) {
				calls++
				p, ok := Principal(ctx)
				if !ok {
					return "", errors.New("no principal")
				}
				return p.(string), nil
			}

			ctx := background()
			if tt.token != nil {
				ctx = ctx.With(TokenKey, tt.token)
			}

			result, err := resolve(ctx, final, Authentication[string, *request](validate, zap.New(core)))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
			if result != tt.wantUser {
				t.Errorf("Expected principal %q, got %q", tt.wantUser, result)
			}
			if calls != tt.wantCalls {
				t.Errorf("Expected downstream to run %d times, got %d", tt.wantCalls, calls)
			}
			if logs.Len() != tt.wantLogs {
				t.Errorf("Expected %d log entries, got %d", tt.wantLogs, logs.Len())
			}
		})
	}
}

// TestAuthenticationValidatorSeesContext tests that the validator receives the resolution's context.Context
func TestAuthenticationValidatorSeesContext(t *testing.T) {
	type tenantKey struct{}
	var tenant any
	validate := func(ctx context.Context, token string) (any, bool) {
		tenant = ctx.Value(tenantKey{})
		return token, true
	}

	ctx := resolver.NewContext[string](context.WithValue(context.Background(), tenantKey{}, "acme")).
		With(TokenKey, "t")
	if _, err := resolve(ctx, ok("ok"), Authentication[string, *request](validate, nil)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if tenant != "acme" {
		t.Errorf("Expected validator to see tenant %q, got %v", "acme", tenant)
	}
}
