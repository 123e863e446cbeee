package table

import (
	"fmt"

	"github.com/lmtab/lmtab/storage"
)

// Entry is one positioned key-value pair. Value has the same
// transaction-lifetime constraint as point-lookup views.
type Entry[K, V any] struct {
	Key   K
	Value *View[V]
}

// Cursor is a stateful positional iterator over a table's ordered key
// space. Every positioning method returns ok == false when the requested
// position does not exist (for example stepping past the last entry);
// exhaustion is not an error. Operators from the duplicate family require
// a DupSort database and the bulk family a DupFixed database; using them
// elsewhere fails with ErrInvalidArgument before touching the engine.
type Cursor[K, V any] struct {
	tbl    *Table[K, V]
	scr    storage.Cursor
	closed bool
}

// Cursor opens a cursor on the table. It is closed by Close or, at the
// latest, when the transaction ends.
func (tbl *Table[K, V]) Cursor() (*Cursor[K, V], error) {
	if tbl.tx.done {
		return nil, storage.ErrTxnDone
	}

	scr, err := tbl.tx.stx.Cursor(tbl.dbi)
	if err != nil {
		return nil, err
	}
	tbl.tx.cursors = append(tbl.tx.cursors, scr)

	return &Cursor[K, V]{tbl: tbl, scr: scr}, nil
}

func (cr *Cursor[K, V]) get(setKey, setVal []byte, op storage.CursorOp) (Entry[K, V], bool,
	error) {

	var zero Entry[K, V]

	if cr.closed {
		return zero, false, fmt.Errorf("%w: cursor is closed", storage.ErrInvalidArgument)
	}
	if cr.tbl.tx.done {
		return zero, false, storage.ErrTxnDone
	}
	if err := op.CompatibleWith(cr.tbl.flags); err != nil {
		return zero, false, err
	}

	kb, vb, ok, err := cr.scr.Get(setKey, setVal, op)
	if err != nil || !ok {
		return zero, false, err
	}

	key, err := cr.tbl.kc.DecodeKey(kb)
	if err != nil {
		return zero, false, fmt.Errorf("table %s: %w", cr.tbl.name, err)
	}
	if err := cr.tbl.vc.Validate(vb); err != nil {
		return zero, false, fmt.Errorf("table %s: %w", cr.tbl.name, err)
	}

	return Entry[K, V]{
		Key:   key,
		Value: &View[V]{raw: vb, vc: cr.tbl.vc, tx: cr.tbl.tx},
	}, true, nil
}

// First positions at the smallest key (and its first duplicate).
func (cr *Cursor[K, V]) First() (Entry[K, V], bool, error) {
	return cr.get(nil, nil, storage.First)
}

// Last positions at the largest key (and its last duplicate).
func (cr *Cursor[K, V]) Last() (Entry[K, V], bool, error) {
	return cr.get(nil, nil, storage.Last)
}

// Next moves to the next entry; on a DupSort database that may be the next
// duplicate of the current key. On an unpositioned cursor it behaves like
// First.
func (cr *Cursor[K, V]) Next() (Entry[K, V], bool, error) {
	return cr.get(nil, nil, storage.Next)
}

// Prev moves to the previous entry; on an unpositioned cursor it behaves
// like Last.
func (cr *Cursor[K, V]) Prev() (Entry[K, V], bool, error) {
	return cr.get(nil, nil, storage.Prev)
}

// Current re-reads the entry at the current position without moving.
func (cr *Cursor[K, V]) Current() (Entry[K, V], bool, error) {
	return cr.get(nil, nil, storage.GetCurrent)
}

// Seek positions at exactly key; ok is false if the key is absent.
func (cr *Cursor[K, V]) Seek(key K) (Entry[K, V], bool, error) {
	kb, err := cr.tbl.encodeKey(key)
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	return cr.get(kb, nil, storage.SetKey)
}

// SeekRange positions at the smallest key >= key.
func (cr *Cursor[K, V]) SeekRange(key K) (Entry[K, V], bool, error) {
	kb, err := cr.tbl.encodeKey(key)
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	return cr.get(kb, nil, storage.SetRange)
}

// FirstDup positions at the first duplicate of the current key.
func (cr *Cursor[K, V]) FirstDup() (Entry[K, V], bool, error) {
	return cr.get(nil, nil, storage.FirstDup)
}

// LastDup positions at the last duplicate of the current key.
func (cr *Cursor[K, V]) LastDup() (Entry[K, V], bool, error) {
	return cr.get(nil, nil, storage.LastDup)
}

// NextDup moves to the next duplicate of the current key; ok is false once
// the key's duplicates are exhausted.
func (cr *Cursor[K, V]) NextDup() (Entry[K, V], bool, error) {
	return cr.get(nil, nil, storage.NextDup)
}

// PrevDup moves to the previous duplicate of the current key.
func (cr *Cursor[K, V]) PrevDup() (Entry[K, V], bool, error) {
	return cr.get(nil, nil, storage.PrevDup)
}

// NextNoDup skips the current key's remaining duplicates and positions at
// the first duplicate of the next distinct key.
func (cr *Cursor[K, V]) NextNoDup() (Entry[K, V], bool, error) {
	return cr.get(nil, nil, storage.NextNoDup)
}

// PrevNoDup positions at the last duplicate of the previous distinct key.
func (cr *Cursor[K, V]) PrevNoDup() (Entry[K, V], bool, error) {
	return cr.get(nil, nil, storage.PrevNoDup)
}

// GetBoth positions at the exact key-value pair.
func (cr *Cursor[K, V]) GetBoth(key K, val V) (Entry[K, V], bool, error) {
	kb, vb, err := cr.marshal(key, val)
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	return cr.get(kb, vb, storage.GetBoth)
}

// GetBothRange positions at key and the smallest duplicate value >= val.
func (cr *Cursor[K, V]) GetBothRange(key K, val V) (Entry[K, V], bool, error) {
	kb, vb, err := cr.marshal(key, val)
	if err != nil {
		return Entry[K, V]{}, false, err
	}
	return cr.get(kb, vb, storage.GetBothRange)
}

func (cr *Cursor[K, V]) marshal(key K, val V) ([]byte, []byte, error) {
	kb, err := cr.tbl.encodeKey(key)
	if err != nil {
		return nil, nil, err
	}
	vb, err := cr.tbl.vc.Marshal(val)
	if err != nil {
		return nil, nil, fmt.Errorf("table %s: marshal value: %w", cr.tbl.name, err)
	}
	return kb, vb, nil
}

// GetMultiple returns the remaining duplicates of the current key as
// decoded owned values, starting at the current position. DupFixed only.
func (cr *Cursor[K, V]) GetMultiple() (K, []V, bool, error) {
	return cr.multiple(storage.GetMultiple)
}

// NextMultiple returns the next page of duplicates of the current key.
func (cr *Cursor[K, V]) NextMultiple() (K, []V, bool, error) {
	return cr.multiple(storage.NextMultiple)
}

func (cr *Cursor[K, V]) multiple(op storage.CursorOp) (K, []V, bool, error) {
	var zero K

	if cr.closed {
		return zero, nil, false, fmt.Errorf("%w: cursor is closed", storage.ErrInvalidArgument)
	}
	if cr.tbl.tx.done {
		return zero, nil, false, storage.ErrTxnDone
	}
	if err := op.CompatibleWith(cr.tbl.flags); err != nil {
		return zero, nil, false, err
	}

	// The page is several same-size values back to back; the size comes
	// from the value at the current position.
	_, cur, ok, err := cr.scr.Get(nil, nil, storage.GetCurrent)
	if err != nil || !ok {
		return zero, nil, ok, err
	}
	size := len(cur)
	if size == 0 {
		return zero, nil, false, fmt.Errorf("%w: table %s: empty fixed-size duplicate",
			storage.ErrInvalidArgument, cr.tbl.name)
	}

	kb, page, ok, err := cr.scr.Get(nil, nil, op)
	if err != nil || !ok {
		return zero, nil, ok, err
	}
	if len(page)%size != 0 {
		return zero, nil, false, fmt.Errorf(
			"%w: table %s: bulk page length %d not a multiple of %d", storage.ErrCorrupted,
			cr.tbl.name, len(page), size)
	}

	key, err := cr.tbl.kc.DecodeKey(kb)
	if err != nil {
		return zero, nil, false, fmt.Errorf("table %s: %w", cr.tbl.name, err)
	}

	vals := make([]V, 0, len(page)/size)
	for off := 0; off < len(page); off += size {
		v, err := cr.tbl.vc.Unmarshal(page[off : off+size])
		if err != nil {
			return zero, nil, false, fmt.Errorf("table %s: %w", cr.tbl.name, err)
		}
		vals = append(vals, v)
	}
	return key, vals, true, nil
}

// Close releases the engine-side cursor. It is idempotent; the transaction
// closes any cursor left open when it ends.
func (cr *Cursor[K, V]) Close() {
	if cr.closed {
		return
	}
	cr.closed = true
	cr.scr.Close()
}
