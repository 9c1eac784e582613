package rollout

import "encoding/json"

// Optional holds a value that may be unknown. Unknown is distinct from the
// zero value: an unknown changelog is not an empty one.
type Optional[T any] struct {
	value T
	known bool
}

// Known wraps a determined value.
func Known[T any](v T) Optional[T] {
	return Optional[T]{value: v, known: true}
}

// Unknown returns an Optional with no value.
func Unknown[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is known.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.known
}

// IsKnown reports whether a value is present.
func (o Optional[T]) IsKnown() bool {
	return o.known
}

// MarshalJSON encodes unknown as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.known {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// MarshalYAML encodes unknown as null.
func (o Optional[T]) MarshalYAML() (any, error) {
	if !o.known {
		return nil, nil
	}
	return o.value, nil
}
