// Package codec turns cached values into the opaque bytes the shared tier stores.
package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes and decodes values of one type.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Msgpack encodes values with msgpack. Struct fields must be exported;
// use `msgpack:"name"` tags to control field names.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	return b, nil
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("msgpack decode: %w", err)
	}
	return v, nil
}
