package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/lmtab/lmtab/storage"
)

// KeyCodec encodes keys of type K to the byte form the engine sorts by.
// Except for Uint64 on IntegerKey databases, encodings must order keys
// correctly under bytewise comparison.
type KeyCodec[K any] interface {
	EncodeKey(k K) ([]byte, error)
	DecodeKey(buf []byte) (K, error)
}

// String keys sort lexically.
type String struct{}

func (String) EncodeKey(k string) ([]byte, error) {
	return []byte(k), nil
}

func (String) DecodeKey(buf []byte) (string, error) {
	return string(buf), nil
}

// Bytes keys are used as-is. DecodeKey copies so decoded keys never alias
// the transaction's memory.
type Bytes struct{}

func (Bytes) EncodeKey(k []byte) ([]byte, error) {
	return k, nil
}

func (Bytes) DecodeKey(buf []byte) ([]byte, error) {
	return append([]byte(nil), buf...), nil
}

// Uint64 keys are fixed-size native byte order integers for databases
// created with storage.IntegerKey; the engine compares them numerically.
type Uint64 struct{}

func (Uint64) EncodeKey(k uint64) ([]byte, error) {
	buf := make([]byte, 8)
	binary.NativeEndian.PutUint64(buf, k)
	return buf, nil
}

func (Uint64) DecodeKey(buf []byte) (uint64, error) {
	if len(buf) != 8 {
		return 0, fmt.Errorf("%w: integer key: len(buf) != 8: %d", storage.ErrCorrupted,
			len(buf))
	}
	return binary.NativeEndian.Uint64(buf), nil
}

// Uint64BE keys are big-endian integers for plain byte-sorted databases:
// bytewise order equals numeric order.
type Uint64BE struct{}

func (Uint64BE) EncodeKey(k uint64) ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, k)
	return buf, nil
}

func (Uint64BE) DecodeKey(buf []byte) (uint64, error) {
	if len(buf) != 8 {
		return 0, fmt.Errorf("%w: uint64 key: len(buf) != 8: %d", storage.ErrCorrupted,
			len(buf))
	}
	return binary.BigEndian.Uint64(buf), nil
}
