package domain

// Option holds zero or one value of type T.
// The zero Option is absent.
type Option[T any] struct {
	value T
	some  bool
}

// Some creates an Option containing v.
func Some[T any](v T) Option[T] {
	return Option[T]{value: v, some: true}
}

// None creates an empty Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// FromPtr converts a possibly-nil pointer into an Option.
// A nil pointer yields an absent Option rather than an error.
func FromPtr[T any](p *T) Option[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// IsSome reports whether the Option contains a value.
func (o Option[T]) IsSome() bool {
	return o.some
}

// IsNone reports whether the Option is empty.
func (o Option[T]) IsNone() bool {
	return !o.some
}

// OrElse returns the contained value or def.
func (o Option[T]) OrElse(def T) T {
	if o.some {
		return o.value
	}
	return def
}

// Map applies f to the contained value if present.
// f is never invoked on an absent Option.
func Map[T, U any](o Option[T], f func(T) U) Option[U] {
	if !o.some {
		return None[U]()
	}
	return Some(f(o.value))
}

// FlatMap applies a dependent step that may itself yield nothing.
func FlatMap[T, U any](o Option[T], f func(T) Option[U]) Option[U] {
	if !o.some {
		return None[U]()
	}
	return f(o.value)
}

// Chain runs a two-stage dependent lookup. next is only invoked when o is
// present, and combine only when both stages are present; otherwise the
// whole chain is absent.
func Chain[T, U, R any](o Option[T], next func(T) Option[U], combine func(T, U) R) Option[R] {
	if !o.some {
		return None[R]()
	}
	second := next(o.value)
	if !second.some {
		return None[R]()
	}
	return Some(combine(o.value, second.value))
}

// Match eliminates an Option, forcing the caller to handle both states.
func Match[T, R any](o Option[T], onAbsent func() R, onPresent func(T) R) R {
	if !o.some {
		return onAbsent()
	}
	return onPresent(o.value)
}
