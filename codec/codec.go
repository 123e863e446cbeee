// Package codec provides the serialization contract the typed tables
// consume: value codecs that encode, validate, and decode stored values,
// and key codecs whose encodings sort correctly under the engine's byte
// comparison.
package codec

import (
	"bytes"
	"encoding"
	"encoding/gob"
	"encoding/json"
	"fmt"

	"github.com/golang/protobuf/proto"

	"github.com/lmtab/lmtab/storage"
)

// ValueCodec encodes values of type V to bytes and back. Validate must
// reject byte slices that do not decode as a well-formed V, reporting
// storage.ErrCorrupted; tables validate stored bytes before exposing them.
type ValueCodec[V any] interface {
	Marshal(v V) ([]byte, error)
	Validate(buf []byte) error
	Unmarshal(buf []byte) (V, error)
}

// JSON is a ValueCodec using encoding/json.
type JSON[V any] struct{}

func (JSON[V]) Marshal(v V) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON[V]) Validate(buf []byte) error {
	var v V
	if err := json.Unmarshal(buf, &v); err != nil {
		return fmt.Errorf("%w: json: %s", storage.ErrCorrupted, err)
	}
	return nil
}

func (JSON[V]) Unmarshal(buf []byte) (V, error) {
	var v V
	if err := json.Unmarshal(buf, &v); err != nil {
		return v, fmt.Errorf("%w: json: %s", storage.ErrCorrupted, err)
	}
	return v, nil
}

// Gob is a ValueCodec using encoding/gob. Gob streams are self describing,
// so Validate is a full decode.
type Gob[V any] struct{}

func (Gob[V]) Marshal(v V) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Gob[V]) Validate(buf []byte) error {
	var v V
	if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&v); err != nil {
		return fmt.Errorf("%w: gob: %s", storage.ErrCorrupted, err)
	}
	return nil
}

func (Gob[V]) Unmarshal(buf []byte) (V, error) {
	var v V
	if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&v); err != nil {
		return v, fmt.Errorf("%w: gob: %s", storage.ErrCorrupted, err)
	}
	return v, nil
}

// Binary is a ValueCodec for types that implement their own binary
// encoding via encoding.BinaryMarshaler and encoding.BinaryUnmarshaler.
type Binary[V encoding.BinaryMarshaler, PV interface {
	*V
	encoding.BinaryUnmarshaler
}] struct{}

func (Binary[V, PV]) Marshal(v V) ([]byte, error) {
	return v.MarshalBinary()
}

func (Binary[V, PV]) Validate(buf []byte) error {
	var v V
	if err := PV(&v).UnmarshalBinary(buf); err != nil {
		return fmt.Errorf("%w: binary: %s", storage.ErrCorrupted, err)
	}
	return nil
}

func (Binary[V, PV]) Unmarshal(buf []byte) (V, error) {
	var v V
	if err := PV(&v).UnmarshalBinary(buf); err != nil {
		return v, fmt.Errorf("%w: binary: %s", storage.ErrCorrupted, err)
	}
	return v, nil
}

// Proto is a ValueCodec for protobuf messages. M is the pointer message
// type; New allocates a fresh message and defaults to new(underlying).
type Proto[M proto.Message] struct {
	New func() M
}

func (c Proto[M]) Marshal(m M) ([]byte, error) {
	return proto.Marshal(m)
}

func (c Proto[M]) Validate(buf []byte) error {
	_, err := c.Unmarshal(buf)
	return err
}

func (c Proto[M]) Unmarshal(buf []byte) (M, error) {
	m := c.New()
	if err := proto.Unmarshal(buf, m); err != nil {
		return m, fmt.Errorf("%w: proto: %s", storage.ErrCorrupted, err)
	}
	return m, nil
}

// Raw is the identity ValueCodec for []byte values. Unmarshal copies, so
// owned values never alias the transaction's memory.
type Raw struct{}

func (Raw) Marshal(v []byte) ([]byte, error) {
	return v, nil
}

func (Raw) Validate(buf []byte) error {
	return nil
}

func (Raw) Unmarshal(buf []byte) ([]byte, error) {
	return append([]byte(nil), buf...), nil
}
