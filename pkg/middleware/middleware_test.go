package middleware

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Suhaibinator/SResolve/pkg/resolver"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type request struct {
	Slug string
}

// resolve composes mws with a final resolver and runs it once
func resolve(ctx resolver.Context[string], final resolver.Resolver[string, *request], mws ...resolver.Middleware[string, *request]) (string, error) {
	return resolver.Compose(append(mws, final)...)(&request{Slug: "home"}, ctx)
}

func ok(value string) resolver.Resolver[string, *request] {
	return func(*request, resolver.Context[string]) (string, error) {
		return value, nil
	}
}

func background() resolver.Context[string] {
	return resolver.NewContext[string](context.Background())
}

// TestRecovery tests that Recovery converts a panic into a PanicError and logs it
func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)

	panicking := func(*request, resolver.Context[string]) (string, error) {
		panic("section exploded")
	}

	result, err := resolve(background(), panicking, Recovery[string, *request](logger))
	if result != "" {
		t.Errorf("Expected zero result, got %q", result)
	}
	if !errors.Is(err, ErrPanic) {
		t.Fatalf("Expected ErrPanic, got %v", err)
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected *PanicError, got %T", err)
	}
	if panicErr.Value != "section exploded" {
		t.Errorf("Expected panic value %q, got %v", "section exploded", panicErr.Value)
	}
	if panicErr.Stack == "" {
		t.Error("Expected a stack trace")
	}

	if logs.Len() != 1 {
		t.Fatalf("Expected 1 log entry, got %d", logs.Len())
	}
	if logs.All()[0].Message != "Panic recovered" {
		t.Errorf("Expected log message %q, got %q", "Panic recovered", logs.All()[0].Message)
	}
}

// TestRecoveryPassThrough tests that Recovery is transparent when nothing panics
func TestRecoveryPassThrough(t *testing.T) {
	result, err := resolve(background(), ok("fine"), Recovery[string, *request](nil))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != "fine" {
		t.Errorf("Expected result %q, got %q", "fine", result)
	}
}

// TestLogging tests the log level chosen for each outcome
func TestLogging(t *testing.T) {
	tests := []struct {
		name     string
		final    resolver.Resolver[string, *request]
		slow     time.Duration
		level    zapcore.Level
		message  string
		hasError bool
	}{
		{
			name:    "success",
			final:   ok("done"),
			slow:    time.Second,
			level:   zap.DebugLevel,
			message: "Resolution",
		},
		{
			name: "failure",
			final: func(*request, resolver.Context[string]) (string, error) {
				return "", errors.New("not found")
			},
			slow:     time.Second,
			level:    zap.ErrorLevel,
			message:  "Resolution failed",
			hasError: true,
		},
		{
			name: "slow",
			final: func(*request, resolver.Context[string]) (string, error) {
				time.Sleep(5 * time.Millisecond)
				return "late", nil
			},
			slow:    time.Millisecond,
			level:   zap.WarnLevel,
			message: "Slow resolution",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := SlowThreshold
			SlowThreshold = tt.slow
			defer func() { SlowThreshold = original }()

			core, logs := observer.New(zap.DebugLevel)
			_, err := resolve(background(), tt.final, Logging[string, *request](zap.New(core), "page"))
			if (err != nil) != tt.hasError {
				t.Errorf("Expected error %v, got %v", tt.hasError, err)
			}

			if logs.Len() != 1 {
				t.Fatalf("Expected 1 log entry, got %d", logs.Len())
			}
			entry := logs.All()[0]
			if entry.Level != tt.level {
				t.Errorf("Expected level %v, got %v", tt.level, entry.Level)
			}
			if entry.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, entry.Message)
			}
			if entry.ContextMap()["resolver"] != "page" {
				t.Errorf("Expected resolver field %q, got %v", "page", entry.ContextMap()["resolver"])
			}
		})
	}
}

// TestLoggingIncludesTraceID tests that the trace ID is attached when present
func TestLoggingIncludesTraceID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := background().With(TraceIDKey, "trace-123")

	_, _ = resolve(ctx, ok("done"), Logging[string, *request](zap.New(core), "page"))

	if logs.Len() != 1 {
		t.Fatalf("Expected 1 log entry, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["trace_id"]; got != "trace-123" {
		t.Errorf("Expected trace_id %q, got %v", "trace-123", got)
	}
}

// TestTimeout tests that a slow chain is abandoned with ErrTimeout
func TestTimeout(t *testing.T) {
	var sawDeadline atomic.Bool
	slow := func(_ *request, ctx resolver.Context[string]) (string, error) {
		if _, ok := ctx.Context().Deadline(); ok {
			sawDeadline.Store(true)
		}
		select {
		case <-ctx.Context().Done():
			return "", ctx.Context().Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	}

	start := time.Now()
	_, err := resolve(background(), slow, Timeout[string, *request](20*time.Millisecond))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected the error to wrap context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Expected timeout to fire promptly, took %v", elapsed)
	}
	if !sawDeadline.Load() {
		t.Error("Expected downstream to see a deadline on its context")
	}
}

// TestTimeoutFastChain tests that a fast chain's result is returned as is
func TestTimeoutFastChain(t *testing.T) {
	result, err := resolve(background(), ok("quick"), Timeout[string, *request](time.Second))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != "quick" {
		t.Errorf("Expected result %q, got %q", "quick", result)
	}
}

// TestTimeoutDisabled tests that a zero timeout adds no deadline
func TestTimeoutDisabled(t *testing.T) {
	final := func(_ *request, ctx resolver.Context[string]) (string, error) {
		if _, ok := ctx.Context().Deadline(); ok {
			return "", errors.New("unexpected deadline")
		}
		return "ok", nil
	}

	if _, err := resolve(background(), final, Timeout[string, *request](0)); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

// TestTimeoutCallerCanceled tests that cancellation from the caller is reported as is
func TestTimeoutCallerCanceled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	blocked := func(_ *request, ctx resolver.Context[string]) (string, error) {
		<-ctx.Context().Done()
		time.Sleep(10 * time.Millisecond)
		return "", ctx.Context().Err()
	}

	_, err := resolve(resolver.NewContext[string](parent), blocked, Timeout[string, *request](time.Second))
	if errors.Is(err, ErrTimeout) {
		t.Errorf("Expected caller cancellation rather than ErrTimeout, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestTimeoutPanicReachesRecovery tests that a panic behind Timeout is still recovered upstream
func TestTimeoutPanicReachesRecovery(t *testing.T) {
	panicking := func(*request, resolver.Context[string]) (string, error) {
		panic("boom")
	}

	_, err := resolve(background(), panicking,
		Recovery[string, *request](nil),
		Timeout[string, *request](time.Second),
	)
	if !errors.Is(err, ErrPanic) {
		t.Errorf("Expected ErrPanic, got %v", err)
	}
}

// TestFullChainOrder tests the usual stacking of the middlewares together
func TestFullChainOrder(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	final := func(p *request, ctx resolver.Context[string]) (string, error) {
		return p.Slug + ":" + TraceID(ctx), nil
	}

	result, err := resolve(background(), final,
		Trace[string, *request](),
		Logging[string, *request](logger, "page"),
		Recovery[string, *request](logger),
		Timeout[string, *request](time.Second),
	)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.HasPrefix(result, "home:") || len(result) == len("home:") {
		t.Errorf("Expected result to carry a trace ID, got %q", result)
	}

	traceID := strings.TrimPrefix(result, "home:")
	if logs.Len() != 1 || logs.All()[0].ContextMap()["trace_id"] != traceID {
		t.Errorf("Expected the log entry to carry trace ID %q", traceID)
	}
}
