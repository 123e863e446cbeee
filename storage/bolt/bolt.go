// Package bolt implements the storage contract over bbolt, with one bucket
// per database. bbolt fixes its key ordering and stores a single value per
// key, so OpenDBI only accepts default-flag databases; ReverseKey,
// IntegerKey, and DupSort are rejected with ErrInvalidArgument instead of
// being loosely emulated.
package bolt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"github.com/lmtab/lmtab/storage"
)

type engine struct {
	db    *bbolt.DB
	mutex sync.Mutex
	names map[string]storage.DBI
	dbis  [][]byte // bucket name per DBI
}

// Options configure the backing file.
type Options struct {
	Mode   os.FileMode
	NoSync bool
}

// Open opens or creates the bbolt file in dataDir.
func Open(dataDir string, opts Options) (storage.Engine, error) {
	mode := opts.Mode
	if mode == 0 {
		mode = 0644
	}
	db, err := bbolt.Open(filepath.Join(dataDir, "lmtab.bbolt"), mode, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt: open failed: %w", err)
	}
	if opts.NoSync {
		// Dangerous, but much faster; commits no longer reach the disk
		// before returning.
		db.NoFreelistSync = true
		db.NoSync = true
	}

	log.WithField("path", db.Path()).Debug("bolt: store opened")
	return &engine{
		db:    db,
		names: map[string]storage.DBI{},
	}, nil
}

func (eng *engine) OpenDBI(name string, flags storage.DBFlags) (storage.DBI, error) {
	if err := flags.Valid(); err != nil {
		return 0, err
	}
	if flags&^storage.Create != 0 {
		return 0, fmt.Errorf("%w: bolt engine only supports default-flag databases; got %s",
			storage.ErrInvalidArgument, flags)
	}

	eng.mutex.Lock()
	defer eng.mutex.Unlock()

	if dbi, ok := eng.names[name]; ok {
		return dbi, nil
	}

	// Check for the bucket with a read transaction first: OpenDBI may be
	// called while a write transaction is active, and taking bbolt's
	// writer lock here would deadlock against it.
	bname := []byte(name)
	var exists bool
	err := eng.db.View(
		func(tx *bbolt.Tx) error {
			exists = tx.Bucket(bname) != nil
			return nil
		})
	if err != nil {
		return 0, err
	}
	if !exists {
		if !flags.Has(storage.Create) {
			return 0, fmt.Errorf("%w: database %s does not exist",
				storage.ErrInvalidArgument, name)
		}
		err = eng.db.Update(
			func(tx *bbolt.Tx) error {
				_, err := tx.CreateBucketIfNotExists(bname)
				return err
			})
		if err != nil {
			return 0, err
		}
	}

	dbi := storage.DBI(len(eng.dbis))
	eng.dbis = append(eng.dbis, bname)
	eng.names[name] = dbi
	return dbi, nil
}

func (eng *engine) DBIFlags(dbi storage.DBI) (storage.DBFlags, bool) {
	eng.mutex.Lock()
	defer eng.mutex.Unlock()

	if int(dbi) >= len(eng.dbis) {
		return 0, false
	}
	return 0, true
}

// Begin starts a bbolt transaction; bbolt itself blocks writers until the
// previous write transaction finishes.
func (eng *engine) Begin(write bool) (storage.Txn, error) {
	btx, err := eng.db.Begin(write)
	if err != nil {
		return nil, storage.EngineError("begin", err)
	}
	return &txn{eng: eng, btx: btx, write: write}, nil
}

func (eng *engine) Close() error {
	return eng.db.Close()
}

type txn struct {
	eng   *engine
	btx   *bbolt.Tx
	write bool
	done  bool
}

func (tx *txn) bucket(dbi storage.DBI) (*bbolt.Bucket, error) {
	if tx.done {
		return nil, storage.ErrTxnDone
	}
	tx.eng.mutex.Lock()
	defer tx.eng.mutex.Unlock()

	if int(dbi) >= len(tx.eng.dbis) {
		return nil, fmt.Errorf("%w: unknown database handle: %d", storage.ErrInvalidArgument,
			dbi)
	}
	bkt := tx.btx.Bucket(tx.eng.dbis[dbi])
	if bkt == nil {
		return nil, storage.EngineError("bucket",
			fmt.Errorf("missing bucket %s", tx.eng.dbis[dbi]))
	}
	return bkt, nil
}

func (tx *txn) Get(dbi storage.DBI, key []byte) ([]byte, bool, error) {
	bkt, err := tx.bucket(dbi)
	if err != nil {
		return nil, false, err
	}
	if len(key) == 0 {
		return nil, false, fmt.Errorf("%w: empty key", storage.ErrInvalidArgument)
	}

	// Seek rather than Get so stored empty values are found.
	k, v := bkt.Cursor().Seek(key)
	if k == nil || !bytes.Equal(k, key) {
		return nil, false, nil
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

func (tx *txn) Put(dbi storage.DBI, key, val []byte, flags storage.PutFlags) error {
	bkt, err := tx.bucket(dbi)
	if err != nil {
		return err
	}
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", storage.ErrInvalidArgument)
	}
	if flags.Has(storage.NoDupData) || flags.Has(storage.AppendDup) {
		return fmt.Errorf("%w: put flags %s require a DupSort database",
			storage.ErrInvalidArgument, flags)
	}
	if flags.Has(storage.Reserve) {
		return fmt.Errorf("%w: bolt engine does not support Reserve",
			storage.ErrInvalidArgument)
	}

	if flags.Has(storage.NoOverwrite) {
		if _, ok, _ := tx.Get(dbi, key); ok {
			return storage.ErrKeyExists
		}
	}
	if flags.Has(storage.Append) {
		if last, _ := bkt.Cursor().Last(); last != nil && bytes.Compare(key, last) <= 0 {
			return storage.ErrKeyExists
		}
	}

	err = bkt.Put(key, val)
	if err != nil {
		return translate("put", err)
	}
	return nil
}

func (tx *txn) Del(dbi storage.DBI, key, val []byte) (bool, error) {
	bkt, err := tx.bucket(dbi)
	if err != nil {
		return false, err
	}
	if len(key) == 0 {
		return false, fmt.Errorf("%w: empty key", storage.ErrInvalidArgument)
	}

	// The value argument only narrows deletion on DupSort databases,
	// which this engine does not support; it is ignored.
	k, _ := bkt.Cursor().Seek(key)
	if k == nil || !bytes.Equal(k, key) {
		return false, nil
	}
	err = bkt.Delete(key)
	if err != nil {
		return false, translate("del", err)
	}
	return true, nil
}

func (tx *txn) Drop(dbi storage.DBI) error {
	bkt, err := tx.bucket(dbi)
	if err != nil {
		return err
	}

	var doomed [][]byte
	cr := bkt.Cursor()
	for k, _ := cr.First(); k != nil; k, _ = cr.Next() {
		doomed = append(doomed, append([]byte(nil), k...))
	}
	for _, k := range doomed {
		err = bkt.Delete(k)
		if err != nil {
			return translate("drop", err)
		}
	}
	return nil
}

func (tx *txn) Stat(dbi storage.DBI) (storage.Stat, error) {
	bkt, err := tx.bucket(dbi)
	if err != nil {
		return storage.Stat{}, err
	}

	// Stats().KeyN only counts committed pages; count entries directly so
	// pending writes in this transaction are included.
	var entries uint64
	bkt.ForEach(
		func(k, v []byte) error {
			entries += 1
			return nil
		})

	stats := bkt.Stats()
	return storage.Stat{
		Depth:       uint32(stats.Depth),
		BranchPages: uint64(stats.BranchPageN),
		LeafPages:   uint64(stats.LeafPageN),
		Entries:     entries,
	}, nil
}

func (tx *txn) Cursor(dbi storage.DBI) (storage.Cursor, error) {
	bkt, err := tx.bucket(dbi)
	if err != nil {
		return nil, err
	}
	return &cursor{tx: tx, bcr: bkt.Cursor()}, nil
}

func (tx *txn) Commit() error {
	if tx.done {
		return storage.ErrTxnDone
	}
	tx.done = true

	if !tx.write {
		tx.btx.Rollback()
		return nil
	}
	err := tx.btx.Commit()
	if err != nil {
		return translate("commit", err)
	}
	return nil
}

func (tx *txn) Abort() {
	if tx.done {
		return
	}
	tx.done = true
	tx.btx.Rollback()
}

func translate(op string, err error) error {
	switch err {
	case bbolt.ErrTxNotWritable:
		return fmt.Errorf("%w: %s on read-only transaction", storage.ErrInvalidArgument, op)
	case bbolt.ErrKeyRequired, bbolt.ErrKeyTooLarge, bbolt.ErrValueTooLarge:
		return fmt.Errorf("%w: %s: %s", storage.ErrInvalidArgument, op, err)
	case bbolt.ErrTxClosed:
		return storage.ErrTxnDone
	}
	return storage.EngineError(op, err)
}

type cursor struct {
	tx     *txn
	bcr    *bbolt.Cursor
	curKey []byte
	curVal []byte
	closed bool
}

func (cr *cursor) Get(setKey, setVal []byte, op storage.CursorOp) ([]byte, []byte, bool,
	error) {

	if cr.closed {
		return nil, nil, false, fmt.Errorf("%w: cursor is closed", storage.ErrInvalidArgument)
	}
	if cr.tx.done {
		return nil, nil, false, storage.ErrTxnDone
	}
	if err := op.CompatibleWith(0); err != nil {
		return nil, nil, false, err
	}
	if op.NeedsKey() && len(setKey) == 0 {
		return nil, nil, false, fmt.Errorf("%w: cursor operator %s requires a key",
			storage.ErrInvalidArgument, op)
	}

	var k, v []byte
	switch op {
	case storage.GetCurrent:
		if cr.curKey == nil {
			return nil, nil, false, fmt.Errorf("%w: %s on unpositioned cursor",
				storage.ErrInvalidArgument, op)
		}
		k, v = cr.curKey, cr.curVal

	case storage.First:
		k, v = cr.bcr.First()
	case storage.Last:
		k, v = cr.bcr.Last()
	case storage.Next:
		if cr.curKey == nil {
			k, v = cr.bcr.First()
		} else {
			k, v = cr.bcr.Next()
		}
	case storage.Prev:
		if cr.curKey == nil {
			k, v = cr.bcr.Last()
		} else {
			k, v = cr.bcr.Prev()
		}
	case storage.Set, storage.SetKey:
		k, v = cr.bcr.Seek(setKey)
		if k != nil && !bytes.Equal(k, setKey) {
			k, v = nil, nil
		}
	case storage.SetRange:
		k, v = cr.bcr.Seek(setKey)

	default:
		return nil, nil, false, fmt.Errorf("%w: unknown cursor operator: %s",
			storage.ErrInvalidArgument, op)
	}

	if k == nil {
		return nil, nil, false, nil
	}

	cr.curKey, cr.curVal = k, v
	return k, v, true, nil
}

func (cr *cursor) Close() {
	cr.closed = true
}
