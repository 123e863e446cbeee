package storage

import (
	"errors"
	"fmt"
)

// Failure classes shared by every engine. Absence (a missing key, an
// exhausted cursor) is never an error; it is reported through the ok result
// of Get and Cursor.Get. Engines never retry and never downgrade one class
// to another: in particular a corrupted value must not turn into a missing
// key.
var (
	// ErrKeyExists is returned by puts with NoOverwrite, NoDupData,
	// Append, or AppendDup when the engine refuses to store the pair.
	ErrKeyExists = errors.New("storage: key already exists")

	// ErrCorrupted means stored bytes failed validation against the
	// expected encoding, or the engine detected a damaged database.
	ErrCorrupted = errors.New("storage: corrupted data")

	// ErrResourceExhausted covers the engine's hard limits: the memory
	// map is full, too many named databases, too many concurrent
	// readers, or a write transaction grew too big.
	ErrResourceExhausted = errors.New("storage: resource exhausted")

	// ErrInvalidArgument means a flag or operator is incompatible with
	// the database's configuration, or duplicate data does not match the
	// database's fixed size.
	ErrInvalidArgument = errors.New("storage: invalid argument")

	// ErrTxnDone is returned when a transaction handle is used after
	// Commit or Abort.
	ErrTxnDone = errors.New("storage: transaction already completed")
)

// EngineError wraps any engine status that has no mapping of its own. The
// original error remains available through errors.Unwrap.
func EngineError(op string, err error) error {
	return fmt.Errorf("storage: engine %s: %w", op, err)
}
