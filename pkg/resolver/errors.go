package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrNextCalledMultipleTimes is returned when a middleware invokes its continuation
	// more than once, or invokes it after the chain has already moved past its index.
	ErrNextCalledMultipleTimes = errors.New("next() called multiple times")

	// ErrNoNext is returned by Context.Next when no continuation is bound.
	ErrNoNext = errors.New("resolver: no next continuation bound")

	// ErrEmptyChain is returned by a resolver composed from zero middlewares.
	ErrEmptyChain = errors.New("resolver: cannot compose an empty middleware chain")

	// ErrNilMiddleware is returned when dispatch reaches a nil middleware.
	ErrNilMiddleware = errors.New("resolver: nil middleware")
)

// MultipleInvocationError describes a rejected dispatch. Index is the position that was
// requested and Cursor the highest position already dispatched in the same invocation.
type MultipleInvocationError struct {
	Index  int
	Cursor int
}

// Error implements the error interface.
func (e *MultipleInvocationError) Error() string {
	return fmt.Sprintf("%s (requested index %d, cursor at %d)", ErrNextCalledMultipleTimes.Error(), e.Index, e.Cursor)
}

// Is reports whether target is ErrNextCalledMultipleTimes.
func (e *MultipleInvocationError) Is(target error) bool {
	return target == ErrNextCalledMultipleTimes
}
