package resolver

// Chain is an ordered list of middlewares. Append and Prepend return new chains and
// never modify the receiver's backing array.
type Chain[T, P any] []Middleware[T, P]

// NewChain creates a new middleware chain
func NewChain[T, P any](mws ...Middleware[T, P]) Chain[T, P] {
	return Chain[T, P](mws).clone(0)
}

// Append adds middleware to the end of the chain
func (c Chain[T, P]) Append(mws ...Middleware[T, P]) Chain[T, P] {
	return append(c.clone(len(mws)), mws...)
}

// Prepend adds middleware to the beginning of the chain
func (c Chain[T, P]) Prepend(mws ...Middleware[T, P]) Chain[T, P] {
	result := make(Chain[T, P], len(mws)+len(c))
	copy(result, mws)
	copy(result[len(mws):], c)
	return result
}

// Len returns the number of middlewares in the chain.
func (c Chain[T, P]) Len() int {
	return len(c)
}

// Compose composes the chain with Compose.
func (c Chain[T, P]) Compose() Resolver[T, P] {
	return Compose(c...)
}

// Then composes the chain with terminal as its final resolver.
func (c Chain[T, P]) Then(terminal Resolver[T, P]) Resolver[T, P] {
	return ComposeTerminal(terminal, c...)
}

func (c Chain[T, P]) clone(extra int) Chain[T, P] {
	out := make(Chain[T, P], len(c), len(c)+extra)
	copy(out, c)
	return out
}
