package resolver

import (
	"context"
	"reflect"
)

// Valuer is implemented by anything that exposes named fields, such as Context.
// Middlewares that only need to read fields accept a Valuer so they do not depend
// on the result type of the chain.
type Valuer interface {
	Value(key any) any
}

// NextFunc is the continuation bound into a Context by the dispatcher.
// It receives the context the calling middleware wants to hand downstream.
type NextFunc[T any] func(ctx Context[T]) (T, error)

// valueNode is one immutable link of the field overlay.
type valueNode struct {
	key    any
	value  any
	parent *valueNode
}

// Context carries the named fields, the cancellation context, and the optional
// continuation for one middleware invocation.
//
// Context is a value type. Every With* method returns a copy and leaves the receiver
// untouched, so a middleware can never change the fields or the continuation seen by
// its siblings or by the caller.
type Context[T any] struct {
	ctx    context.Context
	values *valueNode
	next   NextFunc[T]
}

// NewContext returns an empty Context backed by ctx.
func NewContext[T any](ctx context.Context) Context[T] {
	return Context[T]{ctx: ctx}
}

// Context returns the cancellation context. It is never nil.
func (c Context[T]) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// WithContext returns a copy of c backed by ctx.
func (c Context[T]) WithContext(ctx context.Context) Context[T] {
	if ctx == nil {
		panic("resolver: nil context")
	}
	c.ctx = ctx
	return c
}

// With returns a copy of c in which key is bound to value.
// Like context.WithValue, the key must be non-nil and comparable.
func (c Context[T]) With(key, value any) Context[T] {
	if key == nil {
		panic("resolver: nil key")
	}
	if !reflect.TypeOf(key).Comparable() {
		panic("resolver: key is not comparable")
	}
	c.values = &valueNode{key: key, value: value, parent: c.values}
	return c
}

// Lookup returns the value bound to key and whether it was present.
func (c Context[T]) Lookup(key any) (any, bool) {
	for n := c.values; n != nil; n = n.parent {
		if n.key == key {
			return n.value, true
		}
	}
	return nil, false
}

// Value returns the value bound to key, or nil.
func (c Context[T]) Value(key any) any {
	v, _ := c.Lookup(key)
	return v
}

// Keys returns the visible keys, newest first.
func (c Context[T]) Keys() []any {
	seen := make(map[any]struct{})
	var keys []any
	for n := c.values; n != nil; n = n.parent {
		if _, ok := seen[n.key]; ok {
			continue
		}
		seen[n.key] = struct{}{}
		keys = append(keys, n.key)
	}
	return keys
}

// HasNext reports whether a continuation is bound.
func (c Context[T]) HasNext() bool {
	return c.next != nil
}

// WithNext returns a copy of c with next bound as its continuation.
// Passing nil unbinds it.
func (c Context[T]) WithNext(next NextFunc[T]) Context[T] {
	c.next = next
	return c
}

// Next invokes the bound continuation, handing it c.
// Fields added with With before calling Next are visible downstream.
func (c Context[T]) Next() (T, error) {
	if c.next == nil {
		var zero T
		return zero, ErrNoNext
	}
	return c.next(c)
}
