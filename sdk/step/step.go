// Copyright 2022, Pulumi Corporation.  All rights reserved.

// Generic Concurrency primitives.
package step

import (
	"context"
	"fmt"
)

// Step represents a computation that may produce a value. This is equivalent to
// a `Future` in other languages.
type Step[T any] struct {
	// The returned data, once it is returned.
	data T
	err  error
	// When this channel is closed, the computation has finished, and we can
	// return the data.
	done chan struct{}
}

// A non-blocking attempt to retrieve the value produced by the Step. The bool
// is true if the computation has finished.
func (s *Step[T]) TryGetResult() (T, bool, error) {
	select {
	case <-s.done:
		return s.data, true, s.err
	default:
		return Zero[T](), false, nil
	}
}

// Block on retrieving the computed result. If ctx is canceled first, its error
// is returned.
func (s *Step[T]) GetResult(ctx context.Context) (T, error) {
	if s == nil {
		return Zero[T](), fmt.Errorf("no step")
	}
	select {
	case <-s.done:
		return s.data, s.err
	case <-ctx.Done():
		return Zero[T](), ctx.Err()
	}
}

// Done is closed when the computation has finished.
func (s *Step[T]) Done() <-chan struct{} {
	return s.done
}

// Create a new Step not predicated on any other step. `f` is the computation
// that the step represents. A panic in `f` becomes the step's error.
func New[T any, F func(context.Context) (T, error)](ctx context.Context, f F) *Step[T] {
	s := &Step[T]{
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer func() {
			if r := recover(); r != nil {
				s.data, s.err = Zero[T](), fmt.Errorf("panic: %v", r)
			}
		}()
		s.data, s.err = f(ctx)
	}()
	return s
}

// Resolved is a step that has already finished with v.
func Resolved[T any](v T, err error) *Step[T] {
	s := &Step[T]{data: v, err: err, done: make(chan struct{})}
	close(s.done)
	return s
}

// Join waits until every step has finished, or until ctx is done. Failed
// steps count as finished.
func Join[T any](ctx context.Context, steps ...*Step[T]) error {
	for _, s := range steps {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Zero returns the zero value for a type.
func Zero[T any]() (zero T) {
	return
}
