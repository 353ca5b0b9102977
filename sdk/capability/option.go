// Copyright 2022, Pulumi Corporation.  All rights reserved.

package capability

// Option is a value that may be absent. An absent capability is different
// from one that is explicitly disabled.
type Option[T any] struct {
	value T
	some  bool
}

func Some[T any](value T) Option[T] {
	return Option[T]{value: value, some: true}
}

func None[T any]() Option[T] {
	return Option[T]{}
}

// Get the value, and whether it is present.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.some
}

func (o Option[T]) IsSome() bool {
	return o.some
}

// OrElse returns the value if present and def otherwise.
func (o Option[T]) OrElse(def T) T {
	if o.some {
		return o.value
	}
	return def
}

// combine joins two options with f. When only one side is present, it wins.
func combine[T any](a, b Option[T], f func(T, T) T) Option[T] {
	switch {
	case a.some && b.some:
		return Some(f(a.value, b.value))
	case a.some:
		return a
	default:
		return b
	}
}
