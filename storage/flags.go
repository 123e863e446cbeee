package storage

import (
	"fmt"
)

// DBFlags select a database's permanent semantics and are fixed when the
// database is first created.
type DBFlags uint32

const (
	// ReverseKey compares keys back to front.
	ReverseKey DBFlags = 1 << iota

	// IntegerKey keys are native byte order uint64 values, all the same
	// size, compared numerically.
	IntegerKey

	// Create makes OpenDBI create the database if it does not exist.
	Create

	// DupSort allows multiple values per key, kept in sorted order.
	DupSort

	// DupFixed requires all duplicate values of a key to be the same
	// size, enabling the bulk cursor operators.
	DupFixed

	// IntegerDup duplicate values are native byte order integers.
	IntegerDup

	// ReverseDup compares duplicate values back to front.
	ReverseDup
)

func (f DBFlags) Has(fl DBFlags) bool {
	return f&fl == fl
}

// Valid rejects flag combinations the engines cannot honor: the duplicate
// sub-modes require DupSort.
func (f DBFlags) Valid() error {
	if f.Has(DupFixed) || f.Has(IntegerDup) || f.Has(ReverseDup) {
		if !f.Has(DupSort) {
			return fmt.Errorf("%w: duplicate sub-mode flags require DupSort", ErrInvalidArgument)
		}
	}
	if f.Has(ReverseKey) && f.Has(IntegerKey) {
		return fmt.Errorf("%w: ReverseKey and IntegerKey are exclusive", ErrInvalidArgument)
	}
	return nil
}

func (f DBFlags) String() string {
	names := []struct {
		fl  DBFlags
		nam string
	}{
		{ReverseKey, "reversekey"},
		{IntegerKey, "integerkey"},
		{Create, "create"},
		{DupSort, "dupsort"},
		{DupFixed, "dupfixed"},
		{IntegerDup, "integerdup"},
		{ReverseDup, "reversedup"},
	}

	var s string
	for _, n := range names {
		if f.Has(n.fl) {
			if s != "" {
				s += "|"
			}
			s += n.nam
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// ParseDBFlags converts a list of flag names, as used in config files and
// on the command line, into DBFlags.
func ParseDBFlags(names []string) (DBFlags, error) {
	var flags DBFlags
	for _, nam := range names {
		switch nam {
		case "reversekey":
			flags |= ReverseKey
		case "integerkey":
			flags |= IntegerKey
		case "create":
			flags |= Create
		case "dupsort":
			flags |= DupSort
		case "dupfixed":
			flags |= DupFixed
		case "integerdup":
			flags |= IntegerDup
		case "reversedup":
			flags |= ReverseDup
		default:
			return 0, fmt.Errorf("%w: unknown database flag: %s", ErrInvalidArgument, nam)
		}
	}
	return flags, flags.Valid()
}

// PutFlags select the semantics of a single put.
type PutFlags uint32

const (
	// NoOverwrite fails with ErrKeyExists instead of overwriting. On a
	// DupSort database the key may still take multiple distinct values
	// unless NoDupData is also given.
	NoOverwrite PutFlags = 1 << iota

	// NoDupData fails with ErrKeyExists if the exact key-value pair is
	// already present. DupSort only.
	NoDupData

	// Reserve asks the engine to reserve space and fill it in place,
	// avoiding a copy. Only the LMDB backend supports it.
	Reserve

	// Append requires the key to sort after every existing key; loading
	// unsorted keys fails with ErrKeyExists.
	Append

	// AppendDup is Append for sorted duplicate values. DupSort only.
	AppendDup
)

func (f PutFlags) Has(fl PutFlags) bool {
	return f&fl == fl
}

// CompatibleWith rejects put flags that require database flags the
// database was not created with.
func (f PutFlags) CompatibleWith(db DBFlags) error {
	if (f.Has(NoDupData) || f.Has(AppendDup)) && !db.Has(DupSort) {
		return fmt.Errorf("%w: put flags %s require a DupSort database", ErrInvalidArgument,
			f)
	}
	return nil
}

func (f PutFlags) String() string {
	names := []struct {
		fl  PutFlags
		nam string
	}{
		{NoOverwrite, "nooverwrite"},
		{NoDupData, "nodupdata"},
		{Reserve, "reserve"},
		{Append, "append"},
		{AppendDup, "appenddup"},
	}

	var s string
	for _, n := range names {
		if f.Has(n.fl) {
			if s != "" {
				s += "|"
			}
			s += n.nam
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// CursorOp is a cursor positioning operator.
type CursorOp int

const (
	// GetCurrent re-reads the entry at the current position.
	GetCurrent CursorOp = iota

	// First positions at the smallest key (and its first duplicate).
	First
	// Last positions at the largest key (and its last duplicate).
	Last

	// Next moves to the next entry; on a DupSort database that may be
	// the next duplicate of the current key.
	Next
	// Prev moves to the previous entry.
	Prev

	// Set positions at the exact key; fails if absent.
	Set
	// SetKey is Set but also returns the stored key bytes.
	SetKey
	// SetRange positions at the smallest key >= the given key.
	SetRange

	// FirstDup positions at the first duplicate of the current key.
	FirstDup
	// LastDup positions at the last duplicate of the current key.
	LastDup
	// NextDup moves to the next duplicate of the current key.
	NextDup
	// NextNoDup moves to the first duplicate of the next distinct key.
	NextNoDup
	// PrevDup moves to the previous duplicate of the current key.
	PrevDup
	// PrevNoDup moves to the last duplicate of the previous distinct key.
	PrevNoDup
	// GetBoth positions at the exact key-value pair.
	GetBoth
	// GetBothRange positions at key and the smallest value >= the given
	// value.
	GetBothRange

	// GetMultiple returns a page of duplicate values of the current key
	// in one call. DupFixed only.
	GetMultiple
	// NextMultiple returns the next page of duplicate values. DupFixed
	// only.
	NextMultiple
)

var cursorOpNames = map[CursorOp]string{
	GetCurrent:   "get-current",
	First:        "first",
	Last:         "last",
	Next:         "next",
	Prev:         "prev",
	Set:          "set",
	SetKey:       "set-key",
	SetRange:     "set-range",
	FirstDup:     "first-dup",
	LastDup:      "last-dup",
	NextDup:      "next-dup",
	NextNoDup:    "next-nodup",
	PrevDup:      "prev-dup",
	PrevNoDup:    "prev-nodup",
	GetBoth:      "get-both",
	GetBothRange: "get-both-range",
	GetMultiple:  "get-multiple",
	NextMultiple: "next-multiple",
}

func (op CursorOp) String() string {
	if nam, ok := cursorOpNames[op]; ok {
		return nam
	}
	return fmt.Sprintf("cursorop(%d)", int(op))
}

// NeedsKey reports whether the operator takes a key argument.
func (op CursorOp) NeedsKey() bool {
	switch op {
	case Set, SetKey, SetRange, GetBoth, GetBothRange:
		return true
	}
	return false
}

// NeedsValue reports whether the operator takes a value argument.
func (op CursorOp) NeedsValue() bool {
	return op == GetBoth || op == GetBothRange
}

// CompatibleWith rejects operators that require database flags the
// database was not created with: the duplicate family requires DupSort and
// the bulk family requires DupFixed.
func (op CursorOp) CompatibleWith(db DBFlags) error {
	switch op {
	case FirstDup, LastDup, NextDup, NextNoDup, PrevDup, PrevNoDup, GetBoth, GetBothRange:
		if !db.Has(DupSort) {
			return fmt.Errorf("%w: cursor operator %s requires a DupSort database",
				ErrInvalidArgument, op)
		}
	case GetMultiple, NextMultiple:
		if !db.Has(DupFixed) {
			return fmt.Errorf("%w: cursor operator %s requires a DupFixed database",
				ErrInvalidArgument, op)
		}
	}
	return nil
}
