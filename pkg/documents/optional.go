package documents

import (
	"bytes"
	"encoding/json"
)

// Optional records whether a JSON key was present. A present null has Set
// true and a nil Value.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some is a present, non-null value.
func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, Value: &v} }

// Null is a present null.
func Null[T any]() Optional[T] { return Optional[T]{Set: true} }

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
