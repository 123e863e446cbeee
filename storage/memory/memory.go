// Package memory implements the storage contract entirely in memory using
// copy-on-write btrees: read transactions hold cheap clones of the trees,
// and a single write transaction mutates its own clones and swaps them in
// on commit. It supports the full flag model, including DupSort, DupFixed,
// IntegerKey, and the reverse orderings, and exists so everything above the
// storage contract can be exercised without a backing file.
package memory

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/lmtab/lmtab/storage"
)

var (
	errClosed   = errors.New("memory: engine is closed")
	errReadOnly = errors.New("memory: put on read-only transaction")
)

// item is one stored key-value pair. bound is non-zero only in seek
// pivots: -1 sorts before every value of the same key, +1 after.
type item struct {
	key   []byte
	val   []byte
	bound int8
}

type database struct {
	flags   storage.DBFlags
	tree    *btree.BTreeG[item]
	dupSize int // fixed duplicate size for DupFixed; 0 until first put
}

func (d *database) compareKeys(a, b []byte) int {
	return compareBytes(a, b, d.flags.Has(storage.IntegerKey), d.flags.Has(storage.ReverseKey))
}

func (d *database) compare(a, b item) int {
	c := d.compareKeys(a.key, b.key)
	if c != 0 || !d.flags.Has(storage.DupSort) {
		return c
	}
	if a.bound != 0 || b.bound != 0 {
		return int(a.bound) - int(b.bound)
	}
	return compareBytes(a.val, b.val, d.flags.Has(storage.IntegerDup),
		d.flags.Has(storage.ReverseDup))
}

func (d *database) less(a, b item) bool {
	return d.compare(a, b) < 0
}

func compareBytes(a, b []byte, integer, reverse bool) int {
	if integer && len(a) == 8 && len(b) == 8 {
		ua := binary.NativeEndian.Uint64(a)
		ub := binary.NativeEndian.Uint64(b)
		if ua < ub {
			return -1
		} else if ua > ub {
			return 1
		}
		return 0
	}
	if reverse {
		adx, bdx := len(a), len(b)
		for adx > 0 && bdx > 0 {
			adx -= 1
			bdx -= 1
			if a[adx] != b[bdx] {
				if a[adx] < b[bdx] {
					return -1
				}
				return 1
			}
		}
		return adx - bdx
	}
	return bytes.Compare(a, b)
}

type engine struct {
	mutex  sync.Mutex // guards names, dbs, closed
	writer sync.Mutex // serializes write transactions
	names  map[string]storage.DBI
	dbs    []*database
	closed bool
}

// NewEngine returns an empty in-memory engine.
func NewEngine() storage.Engine {
	return &engine{
		names: map[string]storage.DBI{},
	}
}

func (eng *engine) OpenDBI(name string, flags storage.DBFlags) (storage.DBI, error) {
	if err := flags.Valid(); err != nil {
		return 0, err
	}

	eng.mutex.Lock()
	defer eng.mutex.Unlock()

	if eng.closed {
		return 0, errClosed
	}

	if dbi, ok := eng.names[name]; ok {
		have := eng.dbs[dbi].flags
		if flags&^storage.Create != 0 && flags&^storage.Create != have {
			return 0, fmt.Errorf("%w: database %s already open with flags %s",
				storage.ErrInvalidArgument, name, have)
		}
		return dbi, nil
	}

	if !flags.Has(storage.Create) {
		return 0, fmt.Errorf("%w: database %s does not exist", storage.ErrInvalidArgument,
			name)
	}

	db := &database{flags: flags &^ storage.Create}
	db.tree = btree.NewG[item](16, db.less)

	dbi := storage.DBI(len(eng.dbs))
	eng.dbs = append(eng.dbs, db)
	eng.names[name] = dbi
	return dbi, nil
}

func (eng *engine) DBIFlags(dbi storage.DBI) (storage.DBFlags, bool) {
	eng.mutex.Lock()
	defer eng.mutex.Unlock()

	if int(dbi) >= len(eng.dbs) {
		return 0, false
	}
	return eng.dbs[dbi].flags, true
}

// Begin starts a transaction over a snapshot of every database. A write
// transaction blocks until the previous writer commits or aborts.
func (eng *engine) Begin(write bool) (storage.Txn, error) {
	if write {
		eng.writer.Lock()
	}

	eng.mutex.Lock()
	if eng.closed {
		eng.mutex.Unlock()
		if write {
			eng.writer.Unlock()
		}
		return nil, errClosed
	}
	dbs := make([]*database, len(eng.dbs))
	for dbi, db := range eng.dbs {
		dbs[dbi] = &database{
			flags:   db.flags,
			tree:    db.tree.Clone(),
			dupSize: db.dupSize,
		}
	}
	eng.mutex.Unlock()

	return &txn{
		eng:   eng,
		write: write,
		dbs:   dbs,
	}, nil
}

func (eng *engine) Close() error {
	eng.mutex.Lock()
	defer eng.mutex.Unlock()

	eng.closed = true
	return nil
}

type txn struct {
	eng   *engine
	write bool
	done  bool
	dbs   []*database
}

func (tx *txn) db(dbi storage.DBI) (*database, error) {
	if tx.done {
		return nil, storage.ErrTxnDone
	}
	if int(dbi) >= len(tx.dbs) {
		return nil, fmt.Errorf("%w: unknown database handle: %d", storage.ErrInvalidArgument,
			dbi)
	}
	return tx.dbs[dbi], nil
}

func (tx *txn) Get(dbi storage.DBI, key []byte) ([]byte, bool, error) {
	db, err := tx.db(dbi)
	if err != nil {
		return nil, false, err
	}
	if len(key) == 0 {
		return nil, false, fmt.Errorf("%w: empty key", storage.ErrInvalidArgument)
	}

	it, ok := seekCeil(db, item{key: key, bound: -1})
	if !ok || db.compareKeys(it.key, key) != 0 {
		return nil, false, nil
	}
	return it.val, true, nil
}

func (tx *txn) Put(dbi storage.DBI, key, val []byte, flags storage.PutFlags) error {
	db, err := tx.db(dbi)
	if err != nil {
		return err
	}
	if !tx.write {
		return errReadOnly
	}
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", storage.ErrInvalidArgument)
	}
	if err := flags.CompatibleWith(db.flags); err != nil {
		return err
	}
	if flags.Has(storage.Reserve) {
		return fmt.Errorf("%w: memory engine does not support Reserve",
			storage.ErrInvalidArgument)
	}

	if db.flags.Has(storage.DupFixed) {
		if db.dupSize == 0 {
			db.dupSize = len(val)
		} else if len(val) != db.dupSize {
			return fmt.Errorf("%w: DupFixed value size %d; want %d",
				storage.ErrInvalidArgument, len(val), db.dupSize)
		}
	}

	if flags.Has(storage.NoOverwrite) {
		if _, ok, _ := tx.Get(dbi, key); ok {
			return storage.ErrKeyExists
		}
	}

	ins := item{key: append([]byte(nil), key...), val: append([]byte(nil), val...)}

	if flags.Has(storage.NoDupData) {
		if _, ok := db.tree.Get(ins); ok {
			return storage.ErrKeyExists
		}
	}
	if flags.Has(storage.Append) {
		// Append compares keys only; an equal key fails even on a
		// DupSort database. AppendDup is the duplicate-ordered variant.
		if max, ok := db.tree.Max(); ok && db.compareKeys(ins.key, max.key) <= 0 {
			return storage.ErrKeyExists
		}
	} else if flags.Has(storage.AppendDup) {
		if max, ok := db.tree.Max(); ok && db.compare(ins, max) <= 0 {
			return storage.ErrKeyExists
		}
	}

	db.tree.ReplaceOrInsert(ins)
	return nil
}

func (tx *txn) Del(dbi storage.DBI, key, val []byte) (bool, error) {
	db, err := tx.db(dbi)
	if err != nil {
		return false, err
	}
	if !tx.write {
		return false, errReadOnly
	}
	if len(key) == 0 {
		return false, fmt.Errorf("%w: empty key", storage.ErrInvalidArgument)
	}

	if val != nil && db.flags.Has(storage.DupSort) {
		_, ok := db.tree.Delete(item{key: key, val: val})
		return ok, nil
	}

	// Delete the key and, for DupSort databases, every duplicate.
	var doomed []item
	db.tree.AscendGreaterOrEqual(item{key: key, bound: -1},
		func(it item) bool {
			if db.compareKeys(it.key, key) != 0 {
				return false
			}
			doomed = append(doomed, it)
			return true
		})
	for _, it := range doomed {
		db.tree.Delete(it)
	}
	return len(doomed) > 0, nil
}

func (tx *txn) Drop(dbi storage.DBI) error {
	db, err := tx.db(dbi)
	if err != nil {
		return err
	}
	if !tx.write {
		return errReadOnly
	}

	db.tree = btree.NewG[item](16, db.less)
	db.dupSize = 0
	return nil
}

func (tx *txn) Stat(dbi storage.DBI) (storage.Stat, error) {
	db, err := tx.db(dbi)
	if err != nil {
		return storage.Stat{}, err
	}

	return storage.Stat{
		Entries: uint64(db.tree.Len()),
	}, nil
}

func (tx *txn) Cursor(dbi storage.DBI) (storage.Cursor, error) {
	db, err := tx.db(dbi)
	if err != nil {
		return nil, err
	}
	return &cursor{tx: tx, db: db}, nil
}

func (tx *txn) Commit() error {
	if tx.done {
		return storage.ErrTxnDone
	}
	tx.done = true

	if !tx.write {
		return nil
	}

	tx.eng.mutex.Lock()
	for dbi, db := range tx.dbs {
		tx.eng.dbs[dbi] = db
	}
	tx.eng.mutex.Unlock()

	tx.eng.writer.Unlock()
	return nil
}

func (tx *txn) Abort() {
	if tx.done {
		return
	}
	tx.done = true

	if tx.write {
		tx.eng.writer.Unlock()
	}
}
