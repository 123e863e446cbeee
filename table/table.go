package table

import (
	"fmt"

	"github.com/lmtab/lmtab/codec"
	"github.com/lmtab/lmtab/storage"
)

// Table is a typed, read-only handle bound to one transaction and one
// database. It has no lifecycle of its own: it is valid exactly as long as
// its transaction.
type Table[K, V any] struct {
	tx    *Txn
	name  string
	dbi   storage.DBI
	flags storage.DBFlags
	kc    codec.KeyCodec[K]
	vc    codec.ValueCodec[V]
}

// WriteTable adds the mutating operations; it can only be opened from a
// WriteTxn.
type WriteTable[K, V any] struct {
	Table[K, V]
}

// Open binds the named database to tx with the given codecs. The database
// must already exist; databases are created at environment setup or with
// Engine.OpenDBI and the Create flag.
func Open[K, V any](tx *Txn, name string, kc codec.KeyCodec[K], vc codec.ValueCodec[V]) (
	*Table[K, V], error) {

	if tx.done {
		return nil, storage.ErrTxnDone
	}

	dbi, err := tx.env.eng.OpenDBI(name, 0)
	if err != nil {
		return nil, err
	}
	flags, ok := tx.env.eng.DBIFlags(dbi)
	if !ok {
		return nil, fmt.Errorf("%w: database %s has no flags", storage.ErrInvalidArgument,
			name)
	}

	return &Table[K, V]{
		tx:    tx,
		name:  name,
		dbi:   dbi,
		flags: flags,
		kc:    kc,
		vc:    vc,
	}, nil
}

// OpenWrite is Open for a write transaction.
func OpenWrite[K, V any](tx *WriteTxn, name string, kc codec.KeyCodec[K],
	vc codec.ValueCodec[V]) (*WriteTable[K, V], error) {

	tbl, err := Open[K, V](&tx.Txn, name, kc, vc)
	if err != nil {
		return nil, err
	}
	return &WriteTable[K, V]{*tbl}, nil
}

func (tbl *Table[K, V]) Name() string {
	return tbl.name
}

func (tbl *Table[K, V]) Flags() storage.DBFlags {
	return tbl.flags
}

func (tbl *Table[K, V]) encodeKey(key K) ([]byte, error) {
	kb, err := tbl.kc.EncodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("table %s: encode key: %w", tbl.name, err)
	}
	return kb, nil
}

// Get looks up key and returns a validated, zero-copy view over the stored
// bytes. ok is false when the key is absent; a value that fails validation
// is ErrCorrupted, never treated as absent. The view is only valid until
// the transaction ends.
func (tbl *Table[K, V]) Get(key K) (*View[V], bool, error) {
	if tbl.tx.done {
		return nil, false, storage.ErrTxnDone
	}

	kb, err := tbl.encodeKey(key)
	if err != nil {
		return nil, false, err
	}
	raw, ok, err := tbl.tx.stx.Get(tbl.dbi, kb)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	if err := tbl.vc.Validate(raw); err != nil {
		return nil, false, fmt.Errorf("table %s: %w", tbl.name, err)
	}
	return &View[V]{raw: raw, vc: tbl.vc, tx: tbl.tx}, true, nil
}

// GetValue is Get plus decoding into an owned value that may outlive the
// transaction.
func (tbl *Table[K, V]) GetValue(key K) (V, bool, error) {
	var zero V

	view, ok, err := tbl.Get(key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := view.Value()
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (tbl *Table[K, V]) Stat() (storage.Stat, error) {
	if tbl.tx.done {
		return storage.Stat{}, storage.ErrTxnDone
	}
	return tbl.tx.stx.Stat(tbl.dbi)
}

func (wtbl *WriteTable[K, V]) marshal(key K, val V) ([]byte, []byte, error) {
	kb, err := wtbl.encodeKey(key)
	if err != nil {
		return nil, nil, err
	}
	vb, err := wtbl.vc.Marshal(val)
	if err != nil {
		return nil, nil, fmt.Errorf("table %s: marshal value: %w", wtbl.name, err)
	}
	return kb, vb, nil
}

// Put stores val under key, overwriting any existing value. On a DupSort
// database it adds another duplicate instead.
func (wtbl *WriteTable[K, V]) Put(key K, val V) error {
	return wtbl.PutWith(key, val, 0)
}

// PutNoOverwrite stores val under key, failing with ErrKeyExists if the
// key is already present. On a DupSort database the key may still hold
// multiple distinct values unless NoDupData is also given via PutWith.
func (wtbl *WriteTable[K, V]) PutNoOverwrite(key K, val V) error {
	return wtbl.PutWith(key, val, storage.NoOverwrite)
}

// Append stores val under key, requiring key to sort after every existing
// key; useful for bulk loading in known order. Out-of-order appends fail
// with ErrKeyExists.
func (wtbl *WriteTable[K, V]) Append(key K, val V) error {
	return wtbl.PutWith(key, val, storage.Append)
}

// PutWith stores val under key with explicit put flags, which must be
// compatible with the database's flags.
func (wtbl *WriteTable[K, V]) PutWith(key K, val V, flags storage.PutFlags) error {
	if wtbl.tx.done {
		return storage.ErrTxnDone
	}
	if err := flags.CompatibleWith(wtbl.flags); err != nil {
		return err
	}

	kb, vb, err := wtbl.marshal(key, val)
	if err != nil {
		return err
	}
	return wtbl.tx.stx.Put(wtbl.dbi, kb, vb, flags)
}

// Delete removes key, and on a DupSort database every duplicate value it
// holds, reporting whether the key was present.
func (wtbl *WriteTable[K, V]) Delete(key K) (bool, error) {
	if wtbl.tx.done {
		return false, storage.ErrTxnDone
	}

	kb, err := wtbl.encodeKey(key)
	if err != nil {
		return false, err
	}
	return wtbl.tx.stx.Del(wtbl.dbi, kb, nil)
}

// DeleteValue removes the exact key-value pair from a DupSort database,
// leaving any other duplicates of key in place.
func (wtbl *WriteTable[K, V]) DeleteValue(key K, val V) (bool, error) {
	if wtbl.tx.done {
		return false, storage.ErrTxnDone
	}

	kb, vb, err := wtbl.marshal(key, val)
	if err != nil {
		return false, err
	}
	return wtbl.tx.stx.Del(wtbl.dbi, kb, vb)
}

// Clear removes every entry in the table's database; irreversible once the
// transaction commits.
func (wtbl *WriteTable[K, V]) Clear() error {
	if wtbl.tx.done {
		return storage.ErrTxnDone
	}
	return wtbl.tx.stx.Drop(wtbl.dbi)
}
