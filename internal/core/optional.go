package core

import (
	"bytes"
	"encoding/json"
)

// Optional holds a value together with whether it was supplied.
// The zero value is "not supplied". It is used for sparse updates where an
// absent field must be distinguished from a zero value.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a supplied Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an Optional that was not supplied.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it was supplied.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the value was supplied.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// OrElse returns the value if supplied, otherwise def.
func (o Optional[T]) OrElse(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// Ptr returns a pointer to a copy of the value, or nil when not supplied.
func (o Optional[T]) Ptr() *T {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

// UnmarshalJSON marks the field as supplied when its key is present.
// An explicit null is treated the same as an absent key.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// MarshalJSON writes null for an unsupplied value.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
