package memory

import (
	"fmt"

	"github.com/lmtab/lmtab/storage"
)

// cursor positions are re-found in the snapshot tree on every move; a
// failed move leaves the position unchanged, so a fresh absolute
// positioning call is required after exhaustion only if the caller wants
// to move somewhere else.
type cursor struct {
	tx         *txn
	db         *database
	cur        item
	positioned bool
	closed     bool
}

func seekCeil(db *database, pivot item) (item, bool) {
	var out item
	var ok bool
	db.tree.AscendGreaterOrEqual(pivot,
		func(it item) bool {
			out = it
			ok = true
			return false
		})
	return out, ok
}

func seekFloor(db *database, pivot item) (item, bool) {
	var out item
	var ok bool
	db.tree.DescendLessOrEqual(pivot,
		func(it item) bool {
			out = it
			ok = true
			return false
		})
	return out, ok
}

func (cr *cursor) next(from item) (item, bool) {
	var out item
	var ok bool
	cr.db.tree.AscendGreaterOrEqual(from,
		func(it item) bool {
			if cr.db.compare(it, from) == 0 {
				return true
			}
			out = it
			ok = true
			return false
		})
	return out, ok
}

func (cr *cursor) prev(from item) (item, bool) {
	var out item
	var ok bool
	cr.db.tree.DescendLessOrEqual(from,
		func(it item) bool {
			if cr.db.compare(it, from) == 0 {
				return true
			}
			out = it
			ok = true
			return false
		})
	return out, ok
}

func (cr *cursor) Get(setKey, setVal []byte, op storage.CursorOp) ([]byte, []byte, bool,
	error) {

	if cr.closed {
		return nil, nil, false, fmt.Errorf("%w: cursor is closed", storage.ErrInvalidArgument)
	}
	if cr.tx.done {
		return nil, nil, false, storage.ErrTxnDone
	}
	if err := op.CompatibleWith(cr.db.flags); err != nil {
		return nil, nil, false, err
	}
	if op.NeedsKey() && len(setKey) == 0 {
		return nil, nil, false, fmt.Errorf("%w: cursor operator %s requires a key",
			storage.ErrInvalidArgument, op)
	}

	var it item
	var ok bool
	switch op {
	case storage.GetCurrent:
		if !cr.positioned {
			return nil, nil, false, fmt.Errorf("%w: %s on unpositioned cursor",
				storage.ErrInvalidArgument, op)
		}
		it, ok = cr.cur, true

	case storage.First:
		it, ok = cr.db.tree.Min()
	case storage.Last:
		it, ok = cr.db.tree.Max()

	case storage.Next:
		if !cr.positioned {
			it, ok = cr.db.tree.Min()
		} else {
			it, ok = cr.next(cr.cur)
		}
	case storage.Prev:
		if !cr.positioned {
			it, ok = cr.db.tree.Max()
		} else {
			it, ok = cr.prev(cr.cur)
		}

	case storage.Set, storage.SetKey:
		it, ok = seekCeil(cr.db, item{key: setKey, bound: -1})
		if ok && cr.db.compareKeys(it.key, setKey) != 0 {
			ok = false
		}
	case storage.SetRange:
		it, ok = seekCeil(cr.db, item{key: setKey, bound: -1})

	case storage.FirstDup, storage.LastDup, storage.NextDup, storage.PrevDup:
		if !cr.positioned {
			return nil, nil, false, fmt.Errorf("%w: %s on unpositioned cursor",
				storage.ErrInvalidArgument, op)
		}
		switch op {
		case storage.FirstDup:
			it, ok = seekCeil(cr.db, item{key: cr.cur.key, bound: -1})
		case storage.LastDup:
			it, ok = seekFloor(cr.db, item{key: cr.cur.key, bound: 1})
		case storage.NextDup:
			it, ok = cr.next(cr.cur)
		case storage.PrevDup:
			it, ok = cr.prev(cr.cur)
		}
		if ok && cr.db.compareKeys(it.key, cr.cur.key) != 0 {
			ok = false
		}

	case storage.NextNoDup:
		if !cr.positioned {
			it, ok = cr.db.tree.Min()
		} else {
			it, ok = seekCeil(cr.db, item{key: cr.cur.key, bound: 1})
		}
	case storage.PrevNoDup:
		if !cr.positioned {
			it, ok = cr.db.tree.Max()
		} else {
			it, ok = cr.prev(item{key: cr.cur.key, bound: -1})
		}

	case storage.GetBoth:
		it, ok = cr.db.tree.Get(item{key: setKey, val: setVal})
	case storage.GetBothRange:
		it, ok = seekCeil(cr.db, item{key: setKey, val: setVal})
		if ok && cr.db.compareKeys(it.key, setKey) != 0 {
			ok = false
		}

	case storage.GetMultiple, storage.NextMultiple:
		return cr.multiple(op)

	default:
		return nil, nil, false, fmt.Errorf("%w: unknown cursor operator: %s",
			storage.ErrInvalidArgument, op)
	}

	if !ok {
		return nil, nil, false, nil
	}

	cr.cur = it
	cr.positioned = true
	return it.key, it.val, true, nil
}

// multiple gathers the remaining duplicates of the current key into one
// contiguous buffer of fixed-size values, moving the cursor to the last
// duplicate returned.
func (cr *cursor) multiple(op storage.CursorOp) ([]byte, []byte, bool, error) {
	if !cr.positioned {
		return nil, nil, false, fmt.Errorf("%w: %s on unpositioned cursor",
			storage.ErrInvalidArgument, op)
	}

	from := cr.cur
	if op == storage.NextMultiple {
		nxt, ok := cr.next(cr.cur)
		if !ok || cr.db.compareKeys(nxt.key, cr.cur.key) != 0 {
			return nil, nil, false, nil
		}
		from = nxt
	}

	var page []byte
	last := from
	cr.db.tree.AscendGreaterOrEqual(from,
		func(it item) bool {
			if cr.db.compareKeys(it.key, from.key) != 0 {
				return false
			}
			page = append(page, it.val...)
			last = it
			return true
		})
	if len(page) == 0 {
		return nil, nil, false, nil
	}

	cr.cur = last
	cr.positioned = true
	return from.key, page, true, nil
}

func (cr *cursor) Close() {
	cr.closed = true
}
