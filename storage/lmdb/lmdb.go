// Package lmdb implements the storage contract over LMDB, the
// memory-mapped B-tree engine the contract was shaped around. Every flag
// and cursor operator maps one-to-one onto its MDB counterpart.
//
// Transactions use raw reads: byte slices returned by Get and Cursor.Get
// point directly into the memory map and become invalid the moment the
// transaction ends.
package lmdb

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"syscall"

	mdb "github.com/bmatsuo/lmdb-go/lmdb"
	log "github.com/sirupsen/logrus"

	"github.com/lmtab/lmtab/storage"
)

// Database declares a named database to pre-open at environment setup.
type Database struct {
	Name  string
	Flags storage.DBFlags
}

// Options configure the environment. Zero values get LMDB's defaults.
type Options struct {
	MapSize    int64
	MaxDBs     int
	MaxReaders int
	Mode       os.FileMode
	NoSync     bool
	Databases  []Database
}

type dbiInfo struct {
	dbi   mdb.DBI
	flags storage.DBFlags
}

type engine struct {
	env   *mdb.Env
	mutex sync.Mutex
	names map[string]storage.DBI
	dbis  []dbiInfo
}

// Open opens or creates the environment at path (a directory) and
// pre-opens the declared databases.
func Open(path string, opts Options) (storage.Engine, error) {
	env, err := mdb.NewEnv()
	if err != nil {
		return nil, translate("env create", err)
	}

	if opts.MapSize > 0 {
		if err := env.SetMapSize(opts.MapSize); err != nil {
			env.Close()
			return nil, translate("set map size", err)
		}
	}
	maxDBs := opts.MaxDBs
	if maxDBs == 0 {
		maxDBs = len(opts.Databases) + 1
	}
	if err := env.SetMaxDBs(maxDBs); err != nil {
		env.Close()
		return nil, translate("set max dbs", err)
	}
	if opts.MaxReaders > 0 {
		if err := env.SetMaxReaders(opts.MaxReaders); err != nil {
			env.Close()
			return nil, translate("set max readers", err)
		}
	}

	var envFlags uint
	if opts.NoSync {
		envFlags |= mdb.NoSync
	}
	mode := opts.Mode
	if mode == 0 {
		mode = 0644
	}
	if err := env.Open(path, envFlags, mode); err != nil {
		env.Close()
		return nil, translate("env open", err)
	}

	eng := &engine{
		env:   env,
		names: map[string]storage.DBI{},
	}
	for _, db := range opts.Databases {
		_, err = eng.OpenDBI(db.Name, db.Flags|storage.Create)
		if err != nil {
			env.Close()
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"path":      path,
		"map-size":  opts.MapSize,
		"databases": len(opts.Databases),
	}).Debug("lmdb: environment opened")
	return eng, nil
}

func dbFlags(flags storage.DBFlags) uint {
	var mf uint
	if flags.Has(storage.ReverseKey) {
		mf |= mdb.ReverseKey
	}
	if flags.Has(storage.IntegerKey) {
		mf |= mdb.IntegerKey
	}
	if flags.Has(storage.Create) {
		mf |= mdb.Create
	}
	if flags.Has(storage.DupSort) {
		mf |= mdb.DupSort
	}
	if flags.Has(storage.DupFixed) {
		mf |= mdb.DupFixed
	}
	if flags.Has(storage.IntegerDup) {
		mf |= mdb.IntegerDup
	}
	if flags.Has(storage.ReverseDup) {
		mf |= mdb.ReverseDup
	}
	return mf
}

func putFlags(flags storage.PutFlags) uint {
	var mf uint
	if flags.Has(storage.NoOverwrite) {
		mf |= mdb.NoOverwrite
	}
	if flags.Has(storage.NoDupData) {
		mf |= mdb.NoDupData
	}
	if flags.Has(storage.Append) {
		mf |= mdb.Append
	}
	if flags.Has(storage.AppendDup) {
		mf |= mdb.AppendDup
	}
	return mf
}

var cursorOps = map[storage.CursorOp]uint{
	storage.GetCurrent:   mdb.GetCurrent,
	storage.First:        mdb.First,
	storage.Last:         mdb.Last,
	storage.Next:         mdb.Next,
	storage.Prev:         mdb.Prev,
	storage.Set:          mdb.Set,
	storage.SetKey:       mdb.SetKey,
	storage.SetRange:     mdb.SetRange,
	storage.FirstDup:     mdb.FirstDup,
	storage.LastDup:      mdb.LastDup,
	storage.NextDup:      mdb.NextDup,
	storage.NextNoDup:    mdb.NextNoDup,
	storage.PrevDup:      mdb.PrevDup,
	storage.PrevNoDup:    mdb.PrevNoDup,
	storage.GetBoth:      mdb.GetBoth,
	storage.GetBothRange: mdb.GetBothRange,
	storage.GetMultiple:  mdb.GetMultiple,
	storage.NextMultiple: mdb.NextMultiple,
}

// translate converts an MDB status into the shared failure classes.
// Not-found is handled at each call site because it is not an error.
func translate(op string, err error) error {
	switch {
	case mdb.IsErrno(err, mdb.KeyExist):
		return storage.ErrKeyExists
	case mdb.IsErrno(err, mdb.MapFull), mdb.IsErrno(err, mdb.DBsFull),
		mdb.IsErrno(err, mdb.ReadersFull), mdb.IsErrno(err, mdb.TxnFull),
		mdb.IsErrno(err, mdb.CursorFull):
		return fmt.Errorf("%w: %s: %s", storage.ErrResourceExhausted, op, err)
	case mdb.IsErrno(err, mdb.Corrupted), mdb.IsErrno(err, mdb.PageNotFound),
		mdb.IsErrno(err, mdb.VersionMismatch), mdb.IsErrno(err, mdb.Invalid):
		return fmt.Errorf("%w: %s: %s", storage.ErrCorrupted, op, err)
	case mdb.IsErrno(err, mdb.BadValSize), mdb.IsErrno(err, mdb.Incompatible),
		mdb.IsErrnoSys(err, syscall.EINVAL):
		return fmt.Errorf("%w: %s: %s", storage.ErrInvalidArgument, op, err)
	case mdb.IsErrno(err, mdb.BadTxn):
		return storage.ErrTxnDone
	}
	return storage.EngineError(op, err)
}

func (eng *engine) OpenDBI(name string, flags storage.DBFlags) (storage.DBI, error) {
	if err := flags.Valid(); err != nil {
		return 0, err
	}

	eng.mutex.Lock()
	defer eng.mutex.Unlock()

	if dbi, ok := eng.names[name]; ok {
		return dbi, nil
	}

	var mdbi mdb.DBI
	var err error
	if flags.Has(storage.Create) {
		err = eng.env.Update(
			func(txn *mdb.Txn) error {
				var err error
				mdbi, err = txn.OpenDBI(name, dbFlags(flags))
				return err
			})
	} else {
		err = eng.env.View(
			func(txn *mdb.Txn) error {
				var err error
				mdbi, err = txn.OpenDBI(name, dbFlags(flags))
				return err
			})
	}
	if err != nil {
		if mdb.IsNotFound(err) {
			return 0, fmt.Errorf("%w: database %s does not exist",
				storage.ErrInvalidArgument, name)
		}
		return 0, translate("dbi open", err)
	}

	dbi := storage.DBI(len(eng.dbis))
	eng.dbis = append(eng.dbis, dbiInfo{dbi: mdbi, flags: flags &^ storage.Create})
	eng.names[name] = dbi
	return dbi, nil
}

func (eng *engine) DBIFlags(dbi storage.DBI) (storage.DBFlags, bool) {
	eng.mutex.Lock()
	defer eng.mutex.Unlock()

	if int(dbi) >= len(eng.dbis) {
		return 0, false
	}
	return eng.dbis[dbi].flags, true
}

func (eng *engine) mdbi(dbi storage.DBI) (mdb.DBI, error) {
	eng.mutex.Lock()
	defer eng.mutex.Unlock()

	if int(dbi) >= len(eng.dbis) {
		return 0, fmt.Errorf("%w: unknown database handle: %d", storage.ErrInvalidArgument,
			dbi)
	}
	return eng.dbis[dbi].dbi, nil
}

// Begin starts a transaction. LMDB requires write transactions to stay on
// one OS thread, so the calling goroutine is pinned until Commit or Abort.
func (eng *engine) Begin(write bool) (storage.Txn, error) {
	var flags uint
	if !write {
		flags = mdb.Readonly
	} else {
		runtime.LockOSThread()
	}

	mtx, err := eng.env.BeginTxn(nil, flags)
	if err != nil {
		if write {
			runtime.UnlockOSThread()
		}
		return nil, translate("begin", err)
	}
	mtx.RawRead = true

	return &txn{eng: eng, mtx: mtx, write: write}, nil
}

func (eng *engine) Close() error {
	return eng.env.Close()
}

type txn struct {
	eng   *engine
	mtx   *mdb.Txn
	write bool
	done  bool
}

func (tx *txn) Get(dbi storage.DBI, key []byte) ([]byte, bool, error) {
	if tx.done {
		return nil, false, storage.ErrTxnDone
	}
	mdbi, err := tx.eng.mdbi(dbi)
	if err != nil {
		return nil, false, err
	}

	val, err := tx.mtx.Get(mdbi, key)
	if err != nil {
		if mdb.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, translate("get", err)
	}
	return val, true, nil
}

func (tx *txn) Put(dbi storage.DBI, key, val []byte, flags storage.PutFlags) error {
	if tx.done {
		return storage.ErrTxnDone
	}
	mdbi, err := tx.eng.mdbi(dbi)
	if err != nil {
		return err
	}
	dbf, _ := tx.eng.DBIFlags(dbi)
	if err := flags.CompatibleWith(dbf); err != nil {
		return err
	}

	if flags.Has(storage.Reserve) {
		buf, err := tx.mtx.PutReserve(mdbi, key, len(val), putFlags(flags))
		if err != nil {
			return translate("put", err)
		}
		copy(buf, val)
		return nil
	}

	err = tx.mtx.Put(mdbi, key, val, putFlags(flags))
	if err != nil {
		return translate("put", err)
	}
	return nil
}

func (tx *txn) Del(dbi storage.DBI, key, val []byte) (bool, error) {
	if tx.done {
		return false, storage.ErrTxnDone
	}
	mdbi, err := tx.eng.mdbi(dbi)
	if err != nil {
		return false, err
	}

	err = tx.mtx.Del(mdbi, key, val)
	if err != nil {
		if mdb.IsNotFound(err) {
			return false, nil
		}
		return false, translate("del", err)
	}
	return true, nil
}

func (tx *txn) Drop(dbi storage.DBI) error {
	if tx.done {
		return storage.ErrTxnDone
	}
	mdbi, err := tx.eng.mdbi(dbi)
	if err != nil {
		return err
	}

	err = tx.mtx.Drop(mdbi, false)
	if err != nil {
		return translate("drop", err)
	}
	return nil
}

func (tx *txn) Stat(dbi storage.DBI) (storage.Stat, error) {
	if tx.done {
		return storage.Stat{}, storage.ErrTxnDone
	}
	mdbi, err := tx.eng.mdbi(dbi)
	if err != nil {
		return storage.Stat{}, err
	}

	stat, err := tx.mtx.Stat(mdbi)
	if err != nil {
		return storage.Stat{}, translate("stat", err)
	}
	return storage.Stat{
		PageSize:      uint32(stat.PSize),
		Depth:         uint32(stat.Depth),
		BranchPages:   uint64(stat.BranchPages),
		LeafPages:     uint64(stat.LeafPages),
		OverflowPages: uint64(stat.OverflowPages),
		Entries:       uint64(stat.Entries),
	}, nil
}

func (tx *txn) Cursor(dbi storage.DBI) (storage.Cursor, error) {
	if tx.done {
		return nil, storage.ErrTxnDone
	}
	mdbi, err := tx.eng.mdbi(dbi)
	if err != nil {
		return nil, err
	}

	mcr, err := tx.mtx.OpenCursor(mdbi)
	if err != nil {
		return nil, translate("cursor open", err)
	}

	dbf, _ := tx.eng.DBIFlags(dbi)
	return &cursor{tx: tx, mcr: mcr, dbf: dbf}, nil
}

func (tx *txn) Commit() error {
	if tx.done {
		return storage.ErrTxnDone
	}
	tx.done = true

	err := tx.mtx.Commit()
	if tx.write {
		runtime.UnlockOSThread()
	}
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

	tx.mtx.Abort()
	if tx.write {
		runtime.UnlockOSThread()
	}
}

type cursor struct {
	tx     *txn
	mcr    *mdb.Cursor
	dbf    storage.DBFlags
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
	if err := op.CompatibleWith(cr.dbf); err != nil {
		return nil, nil, false, err
	}

	mop, ok := cursorOps[op]
	if !ok {
		return nil, nil, false, fmt.Errorf("%w: unknown cursor operator: %s",
			storage.ErrInvalidArgument, op)
	}

	key, val, err := cr.mcr.Get(setKey, setVal, mop)
	if err != nil {
		if mdb.IsNotFound(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, translate("cursor get", err)
	}

	// The bulk operators fill in only the data page; fetch the key from
	// the cursor position, which is now the last duplicate of the page.
	if op == storage.GetMultiple || op == storage.NextMultiple {
		key, _, err = cr.mcr.Get(nil, nil, mdb.GetCurrent)
		if err != nil {
			return nil, nil, false, translate("cursor get", err)
		}
	}
	return key, val, true, nil
}

func (cr *cursor) Close() {
	if cr.closed {
		return
	}
	cr.closed = true
	cr.mcr.Close()
}
