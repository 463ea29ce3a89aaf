// Package codec converts typed records to and from stored bytes.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cognicore/koch/pkg/koch/internalerr"
)

// Codec encodes values of type T for a store
type Codec[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// Msgpack returns the default codec. Struct fields are encoded by name, so
// a store written by one stage decodes in another without shared layout.
func Msgpack[T any]() Codec[T] { return msgpackCodec[T]{} }

// JSON returns a codec producing human-readable records.
func JSON[T any]() Codec[T] { return jsonCodec[T]{} }

// Raw passes bytes through unchanged.
func Raw() Codec[[]byte] { return rawCodec{} }

// String stores text values as their UTF-8 bytes.
func String() Codec[string] { return stringCodec{} }

type msgpackCodec[T any] struct{}

func (msgpackCodec[T]) Marshal(v T) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec[T]) Unmarshal(data []byte) (T, error) {
	var v T
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: msgpack %T: %v", internalerr.ErrDecode, v, err)
	}
	return v, nil
}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) Marshal(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec[T]) Unmarshal(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: json %T: %v", internalerr.ErrDecode, v, err)
	}
	return v, nil
}

type rawCodec struct{}

func (rawCodec) Marshal(v []byte) ([]byte, error)      { return v, nil }
func (rawCodec) Unmarshal(data []byte) ([]byte, error) { return data, nil }

type stringCodec struct{}

func (stringCodec) Marshal(v string) ([]byte, error)      { return []byte(v), nil }
func (stringCodec) Unmarshal(data []byte) (string, error) { return string(data), nil }
