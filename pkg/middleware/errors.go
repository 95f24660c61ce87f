package middleware

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates the downstream chain did not resolve before the deadline.
	ErrTimeout = errors.New("middleware: resolution timed out")

	// ErrRateLimited indicates the rate limit for the resolution key was exceeded.
	ErrRateLimited = errors.New("middleware: rate limit exceeded")

	// ErrUnauthorized indicates a missing or invalid token.
	ErrUnauthorized = errors.New("middleware: unauthorized")

	// ErrPanic indicates a downstream middleware panicked.
	ErrPanic = errors.New("middleware: panic recovered")
)

// PanicError wraps a recovered panic value with the stack trace.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.Value)
}

// Is reports whether target is ErrPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrPanic
}
