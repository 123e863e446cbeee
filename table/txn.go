// Package table is a typed access layer over a storage engine: tables bind
// one transaction and one database to a key type and a value type, and
// expose validated, typed operations over the engine's byte-oriented
// primitives.
//
// The capability split between reading and writing is structural. A Txn
// and the tables opened from it have no mutating methods at all; mutation
// requires a WriteTxn and a WriteTable, which only a WriteTxn can open.
package table

import (
	"github.com/lmtab/lmtab/storage"
)

// Env wraps an engine and begins transactions on it.
type Env struct {
	eng storage.Engine
}

func NewEnv(eng storage.Engine) *Env {
	return &Env{eng: eng}
}

func (env *Env) Engine() storage.Engine {
	return env.eng
}

func (env *Env) Close() error {
	return env.eng.Close()
}

// Begin starts a read-only transaction over a consistent snapshot. Any
// number may be active at once.
func (env *Env) Begin() (*Txn, error) {
	stx, err := env.eng.Begin(false)
	if err != nil {
		return nil, err
	}
	return &Txn{env: env, stx: stx}, nil
}

// BeginWrite starts the write transaction; it blocks while another write
// transaction is active on the same engine.
func (env *Env) BeginWrite() (*WriteTxn, error) {
	stx, err := env.eng.Begin(true)
	if err != nil {
		return nil, err
	}
	return &WriteTxn{Txn{env: env, stx: stx}}, nil
}

// View runs fn inside a read-only transaction and releases it afterwards.
func (env *Env) View(fn func(tx *Txn) error) error {
	tx, err := env.Begin()
	if err != nil {
		return err
	}
	defer tx.Abort()

	return fn(tx)
}

// Update runs fn inside a write transaction, committing if fn succeeds and
// aborting otherwise.
func (env *Env) Update(fn func(tx *WriteTxn) error) error {
	tx, err := env.BeginWrite()
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		tx.Abort()
		return err
	}
	return tx.Commit()
}

// Txn is a read-only transaction. Every table, cursor, and view derived
// from it becomes invalid when it ends.
type Txn struct {
	env     *Env
	stx     storage.Txn
	done    bool
	cursors []storage.Cursor
}

// Done reports whether the transaction has ended.
func (tx *Txn) Done() bool {
	return tx.done
}

// end closes engine-side cursor resources before the transaction goes
// away, even if the caller forgot to.
func (tx *Txn) end() {
	tx.done = true
	for _, cr := range tx.cursors {
		cr.Close()
	}
	tx.cursors = nil
}

// Abort ends the transaction, discarding any mutations. It never fails and
// is safe to call repeatedly or after Commit, so it belongs in a defer.
func (tx *Txn) Abort() {
	if tx.done {
		return
	}
	tx.end()
	tx.stx.Abort()
}

// WriteTxn is the write transaction: everything a Txn can do, plus the
// ability to open WriteTables. At most one is active per environment.
type WriteTxn struct {
	Txn
}

// Commit makes the transaction's mutations visible to transactions begun
// afterwards. A commit failure is surfaced, not swallowed; the transaction
// is finished either way.
func (tx *WriteTxn) Commit() error {
	if tx.done {
		return storage.ErrTxnDone
	}
	tx.end()
	return tx.stx.Commit()
}
