// Package option provides a generic optional value.
//
// Option is used where "not yet computed" must be distinguishable from a zero
// value: inferred slots on logical plan nodes before inference runs, and
// rewrite rules that either produce a new plan or do not match.
package option

import "fmt"

// Option is either Some (holds a value) or None.
type Option[T any] struct {
	val   T
	valid bool
}

// Some creates an Option holding val.
func Some[T any](val T) Option[T] {
	return Option[T]{val: val, valid: true}
}

// None creates an empty Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// IsSome reports whether the Option holds a value.
func (o Option[T]) IsSome() bool {
	return o.valid
}

// IsNone reports whether the Option is empty.
func (o Option[T]) IsNone() bool {
	return !o.valid
}

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) {
	return o.val, o.valid
}

// Unwrap returns the value.
// Panics if the Option is None.
func (o Option[T]) Unwrap() T {
	if !o.valid {
		panic("option: Unwrap called on None")
	}
	return o.val
}

// UnwrapOr returns the value or def when None.
func (o Option[T]) UnwrapOr(def T) T {
	if o.valid {
		return o.val
	}
	return def
}

// String implements fmt.Stringer.
func (o Option[T]) String() string {
	if !o.valid {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.val)
}
