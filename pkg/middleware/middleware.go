// Package middleware provides a collection of resolver middlewares for SResolve.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Suhaibinator/SResolve/pkg/resolver"
	"go.uber.org/zap"
)

// SlowThreshold is the duration above which Logging reports a resolution at Warn level.
var SlowThreshold = 1 * time.Second

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Recovery is a middleware that recovers from panics in the rest of the chain
func Recovery[T, P any](logger *zap.Logger) resolver.Middleware[T, P] {
	logger = loggerOrNop(logger)
	return func(_ P, ctx resolver.Context[T]) (result T, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := string(debug.Stack())

				// Log the panic
				logger.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("stack", stack),
					zap.String("trace_id", TraceID(ctx)),
				)

				var zero T
				result = zero
				err = &PanicError{Value: rec, Stack: stack}
			}
		}()

		return ctx.Next()
	}
}

// Logging is a middleware that logs resolutions
func Logging[T, P any](logger *zap.Logger, name string) resolver.Middleware[T, P] {
	logger = loggerOrNop(logger)
	return func(_ P, ctx resolver.Context[T]) (T, error) {
		start := time.Now()

		result, err := ctx.Next()

		duration := time.Since(start)
		fields := []zap.Field{
			zap.String("resolver", name),
			zap.Duration("duration", duration),
		}
		if traceID := TraceID(ctx); traceID != "" {
			fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
		}

		// Use appropriate log level based on outcome and duration
		if err != nil {
			logger.Error("Resolution failed", append(fields, zap.Error(err))...)
		} else if duration > SlowThreshold {
			logger.Warn("Slow resolution", fields...)
		} else {
			// Successful resolutions at Debug level to avoid log spam
			logger.Debug("Resolution", fields...)
		}

		return result, err
	}
}

// Timeout is a middleware that races the rest of the chain against a timer.
// The downstream chain sees a context.Context carrying the deadline. A zero or
// negative duration disables the timeout.
func Timeout[T, P any](timeout time.Duration) resolver.Middleware[T, P] {
	return func(_ P, ctx resolver.Context[T]) (T, error) {
		if timeout <= 0 {
			return ctx.Next()
		}

		tctx, cancel := context.WithTimeout(ctx.Context(), timeout)
		defer cancel()

		type outcome struct {
			result T
			err    error
			panic  any
		}

		// Buffered so the goroutine can finish after a timeout
		done := make(chan outcome, 1)
		go func() {
			var o outcome
			defer func() {
				if rec := recover(); rec != nil {
					o.panic = rec
				}
				done <- o
			}()
			o.result, o.err = ctx.WithContext(tctx).Next()
		}()

		select {
		case o := <-done:
			if o.panic != nil {
				// Surface the panic on the caller's goroutine so Recovery can see it
				panic(o.panic)
			}
			// A resolver that gave up because of our deadline still timed out
			if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && tctx.Err() != nil && ctx.Context().Err() == nil {
				return o.result, timeoutError(timeout, tctx.Err())
			}
			return o.result, o.err
		case <-tctx.Done():
			var zero T
			if ctx.Context().Err() != nil {
				// The caller went away before our deadline
				return zero, ctx.Context().Err()
			}
			return zero, timeoutError(timeout, tctx.Err())
		}
	}
}

func timeoutError(timeout time.Duration, cause error) error {
	return fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, cause)
}
