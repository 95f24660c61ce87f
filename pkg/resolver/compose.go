// Package resolver provides the middleware composition engine used to resolve values
// through an ordered chain of resolver functions.
package resolver

import (
	"fmt"
	"slices"
	"sync"
)

// Resolver produces a value of type T from a parent value of type P.
// The parent is opaque to the resolver machinery and is forwarded unchanged.
type Resolver[T, P any] func(parent P, ctx Context[T]) (T, error)

// Middleware is a Resolver that may delegate to the rest of the chain by calling ctx.Next.
type Middleware[T, P any] = Resolver[T, P]

// dispatchState is the cursor of a single top-level invocation.
type dispatchState struct {
	mu     sync.Mutex
	cursor int
}

// advance moves the cursor to i, rejecting any index at or below the current cursor.
func (s *dispatchState) advance(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i <= s.cursor {
		return &MultipleInvocationError{Index: i, Cursor: s.cursor}
	}
	s.cursor = i
	return nil
}

// Compose chains mws into a single Resolver. Calling the result runs mws[0]; each
// middleware may call ctx.Next at most once to run the following one.
//
// Every middleware receives the same parent value. When the last middleware calls
// ctx.Next, it is invoked once more with the context originally passed to the composed
// resolver, so a composed resolver nested inside another chain continues into the
// outer chain. Use ComposeTerminal to end the chain with an explicit resolver instead.
//
// Each call of the returned Resolver has its own cursor, so it is safe to call
// concurrently.
func Compose[T, P any](mws ...Middleware[T, P]) Resolver[T, P] {
	mws = slices.Clone(mws)
	n := len(mws)
	if n == 0 {
		return func(P, Context[T]) (T, error) {
			var zero T
			return zero, ErrEmptyChain
		}
	}
	return compose(mws, func(parent P, _ Context[T], original Context[T]) (T, error) {
		return invoke(mws[n-1], n-1, parent, original)
	})
}

// ComposeTerminal chains mws like Compose, but when the last middleware calls ctx.Next
// the chain ends in terminal. The terminal receives the context the last middleware
// passed downstream, with no continuation bound. A nil terminal resolves to the zero
// value of T.
func ComposeTerminal[T, P any](terminal Resolver[T, P], mws ...Middleware[T, P]) Resolver[T, P] {
	mws = slices.Clone(mws)
	return compose(mws, func(parent P, ctx Context[T], _ Context[T]) (T, error) {
		if terminal == nil {
			var zero T
			return zero, nil
		}
		return terminal(parent, ctx.WithNext(nil))
	})
}

// terminalFunc runs when dispatch reaches one past the last middleware.
type terminalFunc[T, P any] func(parent P, ctx Context[T], original Context[T]) (T, error)

func compose[T, P any](mws []Middleware[T, P], terminal terminalFunc[T, P]) Resolver[T, P] {
	n := len(mws)
	return func(parent P, original Context[T]) (T, error) {
		state := &dispatchState{cursor: -1}

		var dispatch func(i int, ctx Context[T]) (T, error)
		dispatch = func(i int, ctx Context[T]) (T, error) {
			if err := state.advance(i); err != nil {
				var zero T
				return zero, err
			}
			if i == n {
				return terminal(parent, ctx, original)
			}
			return invoke(mws[i], i, parent, ctx.WithNext(func(next Context[T]) (T, error) {
				return dispatch(i+1, next)
			}))
		}

		return dispatch(0, original)
	}
}

func invoke[T, P any](mw Middleware[T, P], i int, parent P, ctx Context[T]) (T, error) {
	if mw == nil {
		var zero T
		return zero, fmt.Errorf("%w at index %d", ErrNilMiddleware, i)
	}
	return mw(parent, ctx)
}

// ResolveSlot resolves each non-nil resolver against the same parent and context, in
// order, and collects the results. The first error stops the walk and is returned as is.
func ResolveSlot[T, P any](parent P, ctx Context[T], resolvers ...Resolver[T, P]) ([]T, error) {
	results := make([]T, 0, len(resolvers))
	for _, r := range resolvers {
		if r == nil {
			continue
		}
		v, err := r(parent, ctx)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}
