// Package storage declares the contract that the typed layer consumes from a
// sorted, transactional key-value engine. Engines are page-oriented B-tree
// stores with MVCC snapshots: any number of read transactions may be active
// concurrently with at most one write transaction.
//
// Byte slices returned by Get and Cursor.Get are owned by the transaction
// that produced them. They may point directly into the engine's memory map
// and must not be used after the transaction commits or aborts.
package storage

// DBI is an opaque handle identifying one named database within an engine.
// Handles are created at environment setup and shared by all transactions.
type DBI uint32

// Stat describes one database. Pure Go engines may only fill in Entries.
type Stat struct {
	PageSize      uint32
	Depth         uint32
	BranchPages   uint64
	LeafPages     uint64
	OverflowPages uint64
	Entries       uint64
}

type Engine interface {
	// OpenDBI opens the named database, creating it if flags includes
	// Create. Opening an existing database with zero flags returns the
	// existing handle. Opening a missing database without Create is an
	// error.
	OpenDBI(name string, flags DBFlags) (DBI, error)

	// DBIFlags returns the flags the database was opened with.
	DBIFlags(dbi DBI) (DBFlags, bool)

	// Begin starts a transaction. A write transaction blocks until no
	// other write transaction is active on this engine.
	Begin(write bool) (Txn, error)

	Close() error
}

type Txn interface {
	// Get returns the value stored for key; ok is false if the key is
	// absent. For DupSort databases the first duplicate is returned.
	Get(dbi DBI, key []byte) (val []byte, ok bool, err error)

	// Put stores a key-value pair; flags must be compatible with the
	// database's flags. Only valid on write transactions.
	Put(dbi DBI, key, val []byte, flags PutFlags) error

	// Del removes key. If val is non-nil and the database is DupSort,
	// only the exact key-value pair is removed; otherwise every
	// duplicate goes. Reports whether anything was deleted.
	Del(dbi DBI, key, val []byte) (bool, error)

	// Drop removes every entry in the database.
	Drop(dbi DBI) error

	Stat(dbi DBI) (Stat, error)

	Cursor(dbi DBI) (Cursor, error)

	Commit() error
	Abort()
}

// Cursor is a stateful position within one database's ordered key space.
// Cursors are not safe for concurrent use and must be closed before their
// transaction ends.
type Cursor interface {
	// Get positions the cursor per op and returns the entry there.
	// setKey and setVal are inputs for the key-directed and
	// duplicate-directed operators and ignored otherwise. ok is false
	// when the requested position does not exist; that is not an error.
	Get(setKey, setVal []byte, op CursorOp) (key, val []byte, ok bool, err error)

	Close()
}
