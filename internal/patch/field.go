// Package patch models partial-update fields that can tell "not sent" apart
// from "sent as null".
package patch

import (
	"bytes"
	"encoding/json"
)

// Field is one optional member of a JSON patch document.
//
// The zero value is an absent field. Decoding `null` yields a present field
// with Null set; any other JSON value yields a present field holding it.
type Field[T any] struct {
	set   bool
	null  bool
	value T
}

// Value returns a present, non-null field.
func Value[T any](v T) Field[T] {
	return Field[T]{set: true, value: v}
}

// Null returns a present field sent as JSON null.
func Null[T any]() Field[T] {
	return Field[T]{set: true, null: true}
}

func (f Field[T]) IsSet() bool  { return f.set }
func (f Field[T]) IsNull() bool { return f.set && f.null }

// Get returns the carried value and whether the field holds one.
func (f Field[T]) Get() (T, bool) {
	if !f.set || f.null {
		var zero T
		return zero, false
	}
	return f.value, true
}

// Apply overwrites *dst when the field holds a value. It reports whether it did.
func (f Field[T]) Apply(dst *T) bool {
	v, ok := f.Get()
	if !ok {
		return false
	}
	*dst = v
	return true
}

// UnmarshalJSON is only called by encoding/json for keys present in the document,
// so reaching it always marks the field as set.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.set = true

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.null = true
		var zero T
		f.value = zero
		return nil
	}

	f.null = false
	return json.Unmarshal(data, &f.value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set || f.null {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
