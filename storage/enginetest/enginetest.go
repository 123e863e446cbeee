// Package enginetest is a conformance suite for storage.Engine
// implementations. Every backend runs the same command scripts; a backend
// that does not support a database flag combination skips the suites that
// need it.
package enginetest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/lmtab/lmtab/storage"
	"github.com/lmtab/lmtab/testutil"
)

const (
	cmdBegin = iota
	cmdCommit
	cmdAbort
	cmdPut
	cmdGet
	cmdDel
	cmdDrop
	cmdStat
	cmdOpenCursor
	cmdCloseCursor
	cmdCursor
	cmdScan
	cmdScanRev
)

type keyVal struct {
	key string
	val string
}

type engCmd struct {
	fln      testutil.FileLineNumber
	cmd      int
	write    bool             // Begin a write transaction
	key      string           // Put, Get, Del; expected key for Cursor
	val      string           // Put, Del; expected value for Get and Cursor
	putFlags storage.PutFlags // Put
	op       storage.CursorOp // Cursor
	setKey   string           // Cursor input key
	setVal   string           // Cursor input value
	absent   bool             // Expect ok == false
	deleted  bool             // Expected Del result
	want     error            // Expected error sentinel
	entries  uint64           // Expected Stat.Entries
	keyVals  []keyVal         // Expected entries for Scan and ScanRev
}

func fln() testutil.FileLineNumber {
	return testutil.MakeFileLineNumber()
}

func u64(n uint64) string {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], n)
	return string(b[:])
}

func optBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

func checkErr(t *testing.T, fln testutil.FileLineNumber, what string, err, want error) bool {
	t.Helper()

	if want != nil {
		if !errors.Is(err, want) {
			t.Errorf("%s%s got %v want %v", fln, what, err, want)
		}
		return false
	}
	if err != nil {
		t.Errorf("%s%s failed with %s", fln, what, err)
		return false
	}
	return true
}

func scan(t *testing.T, cur storage.Cursor, fln testutil.FileLineNumber, rev bool,
	keyVals []keyVal) {

	t.Helper()

	op := storage.First
	step := storage.Next
	if rev {
		op = storage.Last
		step = storage.Prev
	}

	for {
		key, val, ok, err := cur.Get(nil, nil, op)
		if err != nil {
			t.Errorf("%scursor.Get(%s) failed with %s", fln, op, err)
			return
		}
		if !ok {
			break
		}
		if len(keyVals) == 0 {
			t.Errorf("%sscan: unexpected entry %s: %s", fln, key, val)
			return
		}
		if string(key) != keyVals[0].key || string(val) != keyVals[0].val {
			t.Errorf("%sscan: got %q: %q want %q: %q", fln, key, val, keyVals[0].key,
				keyVals[0].val)
			return
		}
		keyVals = keyVals[1:]
		op = step
	}
	if len(keyVals) > 0 {
		t.Errorf("%sscan: not enough entries: missing %d", fln, len(keyVals))
	}
}

func runEngineTest(t *testing.T, eng storage.Engine, name string, flags storage.DBFlags,
	cmds []engCmd) {

	t.Helper()

	dbi, err := eng.OpenDBI(name, flags|storage.Create)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidArgument) {
			t.Skipf("engine does not support database flags %s", flags)
		}
		t.Fatalf("OpenDBI(%s, %s) failed with %s", name, flags, err)
	}

	var tx storage.Txn
	var cur storage.Cursor
	for _, cmd := range cmds {
		switch cmd.cmd {
		case cmdBegin:
			if tx != nil {
				panic("begin: missing commit or abort from commands")
			}
			tx, err = eng.Begin(cmd.write)
			if err != nil {
				t.Fatalf("%sBegin(%v) failed with %s", cmd.fln, cmd.write, err)
			}

		case cmdCommit:
			if cur != nil {
				cur.Close()
				cur = nil
			}
			err = tx.Commit()
			checkErr(t, cmd.fln, "Commit()", err, cmd.want)
			tx = nil

		case cmdAbort:
			if cur != nil {
				cur.Close()
				cur = nil
			}
			tx.Abort()
			tx = nil

		case cmdPut:
			err = tx.Put(dbi, []byte(cmd.key), []byte(cmd.val), cmd.putFlags)
			checkErr(t, cmd.fln, fmt.Sprintf("Put(%q)", cmd.key), err, cmd.want)

		case cmdGet:
			val, ok, err := tx.Get(dbi, []byte(cmd.key))
			if !checkErr(t, cmd.fln, fmt.Sprintf("Get(%q)", cmd.key), err, cmd.want) {
				break
			}
			if cmd.absent {
				if ok {
					t.Errorf("%sGet(%q) got %q want absent", cmd.fln, cmd.key, val)
				}
			} else if !ok {
				t.Errorf("%sGet(%q): key absent", cmd.fln, cmd.key)
			} else if string(val) != cmd.val {
				t.Errorf("%sGet(%q) got %q want %q", cmd.fln, cmd.key, val, cmd.val)
			}

		case cmdDel:
			deleted, err := tx.Del(dbi, []byte(cmd.key), optBytes(cmd.val))
			if !checkErr(t, cmd.fln, fmt.Sprintf("Del(%q)", cmd.key), err, cmd.want) {
				break
			}
			if deleted != cmd.deleted {
				t.Errorf("%sDel(%q) got %v want %v", cmd.fln, cmd.key, deleted, cmd.deleted)
			}

		case cmdDrop:
			err = tx.Drop(dbi)
			checkErr(t, cmd.fln, "Drop()", err, cmd.want)

		case cmdStat:
			stat, err := tx.Stat(dbi)
			if !checkErr(t, cmd.fln, "Stat()", err, cmd.want) {
				break
			}
			if stat.Entries != cmd.entries {
				t.Errorf("%sStat().Entries got %d want %d", cmd.fln, stat.Entries, cmd.entries)
			}

		case cmdOpenCursor:
			if cur != nil {
				panic("cursor: cursor is not nil")
			}
			cur, err = tx.Cursor(dbi)
			if err != nil {
				t.Fatalf("%sCursor() failed with %s", cmd.fln, err)
			}

		case cmdCloseCursor:
			cur.Close()
			cur = nil

		case cmdCursor:
			key, val, ok, err := cur.Get(optBytes(cmd.setKey), optBytes(cmd.setVal), cmd.op)
			if !checkErr(t, cmd.fln, fmt.Sprintf("cursor.Get(%s)", cmd.op), err, cmd.want) {
				break
			}
			if cmd.absent {
				if ok {
					t.Errorf("%scursor.Get(%s) got %q: %q want no entry", cmd.fln, cmd.op, key,
						val)
				}
			} else if !ok {
				t.Errorf("%scursor.Get(%s): no entry", cmd.fln, cmd.op)
			} else if string(key) != cmd.key || string(val) != cmd.val {
				t.Errorf("%scursor.Get(%s) got %q: %q want %q: %q", cmd.fln, cmd.op, key, val,
					cmd.key, cmd.val)
			}

		case cmdScan, cmdScanRev:
			scur, err := tx.Cursor(dbi)
			if err != nil {
				t.Fatalf("%sCursor() failed with %s", cmd.fln, err)
			}
			scan(t, scur, cmd.fln, cmd.cmd == cmdScanRev, cmd.keyVals)
			scur.Close()

		default:
			panic(fmt.Sprintf("unexpected command: %d", cmd.cmd))
		}
	}

	if cur != nil {
		cur.Close()
	}
	if tx != nil {
		tx.Abort()
	}
}

// RunEngineTest checks the transactional basics: round trips, overwrite and
// no-overwrite puts, delete, drop, entry counts, and abort discarding.
func RunEngineTest(t *testing.T, eng storage.Engine) {
	t.Helper()

	runEngineTest(t, eng, "engine_test", 0,
		[]engCmd{
			{fln: fln(), cmd: cmdBegin, write: true},
			{fln: fln(), cmd: cmdGet, key: "aaa", absent: true},
			{fln: fln(), cmd: cmdPut, key: "aaa", val: "one"},
			{fln: fln(), cmd: cmdGet, key: "aaa", val: "one"},
			{fln: fln(), cmd: cmdPut, key: "bbb", val: "two"},
			{fln: fln(), cmd: cmdPut, key: "aaa", val: "one@2"},
			{fln: fln(), cmd: cmdGet, key: "aaa", val: "one@2"},
			{fln: fln(), cmd: cmdStat, entries: 2},
			{fln: fln(), cmd: cmdCommit},

			{fln: fln(), cmd: cmdBegin},
			{fln: fln(), cmd: cmdGet, key: "aaa", val: "one@2"},
			{fln: fln(), cmd: cmdGet, key: "bbb", val: "two"},
			{fln: fln(), cmd: cmdAbort},

			{fln: fln(), cmd: cmdBegin, write: true},
			{fln: fln(), cmd: cmdPut, key: "aaa", val: "nope", putFlags: storage.NoOverwrite,
				want: storage.ErrKeyExists},
			{fln: fln(), cmd: cmdGet, key: "aaa", val: "one@2"},
			{fln: fln(), cmd: cmdPut, key: "ccc", val: "three", putFlags: storage.NoOverwrite},
			{fln: fln(), cmd: cmdPut, key: "", val: "empty", want: storage.ErrInvalidArgument},
			{fln: fln(), cmd: cmdDel, key: "bbb", deleted: true},
			{fln: fln(), cmd: cmdDel, key: "bbb", deleted: false},
			{fln: fln(), cmd: cmdGet, key: "bbb", absent: true},
			{fln: fln(), cmd: cmdStat, entries: 2},
			{fln: fln(), cmd: cmdCommit},

			// Aborted mutations must not be visible afterwards.
			{fln: fln(), cmd: cmdBegin, write: true},
			{fln: fln(), cmd: cmdPut, key: "ddd", val: "four"},
			{fln: fln(), cmd: cmdDel, key: "aaa", deleted: true},
			{fln: fln(), cmd: cmdAbort},

			{fln: fln(), cmd: cmdBegin},
			{fln: fln(), cmd: cmdGet, key: "aaa", val: "one@2"},
			{fln: fln(), cmd: cmdGet, key: "ddd", absent: true},
			{fln: fln(), cmd: cmdAbort},

			{fln: fln(), cmd: cmdBegin, write: true},
			{fln: fln(), cmd: cmdDrop},
			{fln: fln(), cmd: cmdStat, entries: 0},
			{fln: fln(), cmd: cmdGet, key: "aaa", absent: true},
			{fln: fln(), cmd: cmdCommit},
		})
}

// RunAppendTest checks the Append put flag: in-order loads succeed and an
// out-of-order key fails with ErrKeyExists.
func RunAppendTest(t *testing.T, eng storage.Engine) {
	t.Helper()

	runEngineTest(t, eng, "append_test", 0,
		[]engCmd{
			{fln: fln(), cmd: cmdBegin, write: true},
			{fln: fln(), cmd: cmdPut, key: "aaa", val: "one", putFlags: storage.Append},
			{fln: fln(), cmd: cmdPut, key: "bbb", val: "two", putFlags: storage.Append},
			{fln: fln(), cmd: cmdPut, key: "ccc", val: "three", putFlags: storage.Append},
			{fln: fln(), cmd: cmdPut, key: "bbb", val: "nope", putFlags: storage.Append,
				want: storage.ErrKeyExists},
			{fln: fln(), cmd: cmdScan,
				keyVals: []keyVal{{"aaa", "one"}, {"bbb", "two"}, {"ccc", "three"}}},
			{fln: fln(), cmd: cmdAbort},
		})
}

// RunCursorTest checks cursor positioning over distinct keys, including the
// canonical three entry walk: after storing 1, 2, and 3 the cursor visits
// "a", "b", and "c" in order and then reports exhaustion.
func RunCursorTest(t *testing.T, eng storage.Engine) {
	t.Helper()

	runEngineTest(t, eng, "cursor_test", 0,
		[]engCmd{
			{fln: fln(), cmd: cmdBegin, write: true},
			{fln: fln(), cmd: cmdOpenCursor},
			{fln: fln(), cmd: cmdCursor, op: storage.First, absent: true},
			{fln: fln(), cmd: cmdCursor, op: storage.GetCurrent,
				want: storage.ErrInvalidArgument},
			{fln: fln(), cmd: cmdCloseCursor},
			{fln: fln(), cmd: cmdPut, key: "k1", val: "a"},
			{fln: fln(), cmd: cmdPut, key: "k3", val: "c"},
			{fln: fln(), cmd: cmdPut, key: "k2", val: "b"},
			{fln: fln(), cmd: cmdCommit},

			{fln: fln(), cmd: cmdBegin},
			{fln: fln(), cmd: cmdOpenCursor},
			{fln: fln(), cmd: cmdCursor, op: storage.First, key: "k1", val: "a"},
			{fln: fln(), cmd: cmdCursor, op: storage.Next, key: "k2", val: "b"},
			{fln: fln(), cmd: cmdCursor, op: storage.Next, key: "k3", val: "c"},
			{fln: fln(), cmd: cmdCursor, op: storage.Next, absent: true},
			{fln: fln(), cmd: cmdCursor, op: storage.GetCurrent, key: "k3", val: "c"},

			{fln: fln(), cmd: cmdCursor, op: storage.Last, key: "k3", val: "c"},
			{fln: fln(), cmd: cmdCursor, op: storage.Prev, key: "k2", val: "b"},
			{fln: fln(), cmd: cmdCursor, op: storage.Prev, key: "k1", val: "a"},
			{fln: fln(), cmd: cmdCursor, op: storage.Prev, absent: true},

			{fln: fln(), cmd: cmdCursor, op: storage.Set, setKey: "k2", key: "k2", val: "b"},
			{fln: fln(), cmd: cmdCursor, op: storage.Set, setKey: "k2a", absent: true},
			{fln: fln(), cmd: cmdCursor, op: storage.SetKey, setKey: "k3", key: "k3", val: "c"},
			{fln: fln(), cmd: cmdCursor, op: storage.SetRange, setKey: "k2a", key: "k3",
				val: "c"},
			{fln: fln(), cmd: cmdCursor, op: storage.SetRange, setKey: "k1", key: "k1",
				val: "a"},
			{fln: fln(), cmd: cmdCursor, op: storage.SetRange, setKey: "k9", absent: true},

			// Duplicate operators are rejected without DupSort.
			{fln: fln(), cmd: cmdCursor, op: storage.FirstDup,
				want: storage.ErrInvalidArgument},
			{fln: fln(), cmd: cmdCursor, op: storage.GetBoth, setKey: "k1", setVal: "a",
				want: storage.ErrInvalidArgument},
			{fln: fln(), cmd: cmdCursor, op: storage.GetMultiple,
				want: storage.ErrInvalidArgument},
			{fln: fln(), cmd: cmdCloseCursor},

			{fln: fln(), cmd: cmdScan,
				keyVals: []keyVal{{"k1", "a"}, {"k2", "b"}, {"k3", "c"}}},
			{fln: fln(), cmd: cmdScanRev,
				keyVals: []keyVal{{"k3", "c"}, {"k2", "b"}, {"k1", "a"}}},
			{fln: fln(), cmd: cmdAbort},
		})
}

// RunDupSortTest checks sorted duplicates: insertion keeps values ordered
// within a key, the duplicate operators walk them, and deletes may target a
// single pair or a whole key.
func RunDupSortTest(t *testing.T, eng storage.Engine) {
	t.Helper()

	runEngineTest(t, eng, "dupsort_test", storage.DupSort,
		[]engCmd{
			{fln: fln(), cmd: cmdBegin, write: true},
			{fln: fln(), cmd: cmdPut, key: "fruit", val: "pear"},
			{fln: fln(), cmd: cmdPut, key: "fruit", val: "apple"},
			{fln: fln(), cmd: cmdPut, key: "fruit", val: "quince"},
			{fln: fln(), cmd: cmdPut, key: "grain", val: "rye"},
			{fln: fln(), cmd: cmdPut, key: "bean", val: "fava"},

			// An exact duplicate is not added twice.
			{fln: fln(), cmd: cmdPut, key: "fruit", val: "apple"},
			{fln: fln(), cmd: cmdPut, key: "fruit", val: "apple", putFlags: storage.NoDupData,
				want: storage.ErrKeyExists},
			{fln: fln(), cmd: cmdPut, key: "fruit", val: "banana", putFlags: storage.NoDupData},

			{fln: fln(), cmd: cmdScan,
				keyVals: []keyVal{
					{"bean", "fava"},
					{"fruit", "apple"},
					{"fruit", "banana"},
					{"fruit", "pear"},
					{"fruit", "quince"},
					{"grain", "rye"},
				}},

			// Get returns the first duplicate.
			{fln: fln(), cmd: cmdGet, key: "fruit", val: "apple"},

			{fln: fln(), cmd: cmdOpenCursor},
			{fln: fln(), cmd: cmdCursor, op: storage.Set, setKey: "fruit", key: "fruit",
				val: "apple"},
			{fln: fln(), cmd: cmdCursor, op: storage.LastDup, key: "fruit", val: "quince"},
			{fln: fln(), cmd: cmdCursor, op: storage.FirstDup, key: "fruit", val: "apple"},
			{fln: fln(), cmd: cmdCursor, op: storage.NextDup, key: "fruit", val: "banana"},
			{fln: fln(), cmd: cmdCursor, op: storage.NextDup, key: "fruit", val: "pear"},
			{fln: fln(), cmd: cmdCursor, op: storage.NextDup, key: "fruit", val: "quince"},
			{fln: fln(), cmd: cmdCursor, op: storage.NextDup, absent: true},
			{fln: fln(), cmd: cmdCursor, op: storage.PrevDup, key: "fruit", val: "pear"},
			{fln: fln(), cmd: cmdCursor, op: storage.NextNoDup, key: "grain", val: "rye"},
			{fln: fln(), cmd: cmdCursor, op: storage.PrevNoDup, key: "fruit", val: "quince"},
			{fln: fln(), cmd: cmdCursor, op: storage.GetBoth, setKey: "fruit", setVal: "pear",
				key: "fruit", val: "pear"},
			{fln: fln(), cmd: cmdCursor, op: storage.GetBoth, setKey: "fruit", setVal: "plum",
				absent: true},
			{fln: fln(), cmd: cmdCursor, op: storage.GetBothRange, setKey: "fruit",
				setVal: "b", key: "fruit", val: "banana"},
			{fln: fln(), cmd: cmdCursor, op: storage.GetBothRange, setKey: "fruit",
				setVal: "zzz", absent: true},
			{fln: fln(), cmd: cmdCloseCursor},

			// Delete one pair, then the whole key.
			{fln: fln(), cmd: cmdDel, key: "fruit", val: "banana", deleted: true},
			{fln: fln(), cmd: cmdDel, key: "fruit", val: "banana", deleted: false},
			{fln: fln(), cmd: cmdGet, key: "fruit", val: "apple"},
			{fln: fln(), cmd: cmdDel, key: "fruit", deleted: true},
			{fln: fln(), cmd: cmdGet, key: "fruit", absent: true},
			{fln: fln(), cmd: cmdScan,
				keyVals: []keyVal{{"bean", "fava"}, {"grain", "rye"}}},

			// Append compares keys only, so an equal key fails even though
			// the database accepts duplicates; AppendDup loads sorted
			// duplicates under the last key.
			{fln: fln(), cmd: cmdPut, key: "tuber", val: "oca", putFlags: storage.Append},
			{fln: fln(), cmd: cmdPut, key: "tuber", val: "yam", putFlags: storage.Append,
				want: storage.ErrKeyExists},
			{fln: fln(), cmd: cmdPut, key: "tuber", val: "yam", putFlags: storage.AppendDup},
			{fln: fln(), cmd: cmdPut, key: "tuber", val: "oca", putFlags: storage.AppendDup,
				want: storage.ErrKeyExists},
			{fln: fln(), cmd: cmdScan,
				keyVals: []keyVal{
					{"bean", "fava"},
					{"grain", "rye"},
					{"tuber", "oca"},
					{"tuber", "yam"},
				}},
			{fln: fln(), cmd: cmdAbort},
		})
}

// RunDupFixedTest checks the bulk operators over same-size duplicates.
func RunDupFixedTest(t *testing.T, eng storage.Engine) {
	t.Helper()

	runEngineTest(t, eng, "dupfixed_test", storage.DupSort|storage.DupFixed,
		[]engCmd{
			{fln: fln(), cmd: cmdBegin, write: true},
			{fln: fln(), cmd: cmdPut, key: "vowels", val: "aa"},
			{fln: fln(), cmd: cmdPut, key: "vowels", val: "ee"},
			{fln: fln(), cmd: cmdPut, key: "vowels", val: "ii"},
			{fln: fln(), cmd: cmdPut, key: "vowels", val: "oo"},
			{fln: fln(), cmd: cmdOpenCursor},
			{fln: fln(), cmd: cmdCursor, op: storage.Set, setKey: "vowels", key: "vowels",
				val: "aa"},
			{fln: fln(), cmd: cmdCursor, op: storage.GetMultiple, key: "vowels",
				val: "aaeeiioo"},
			{fln: fln(), cmd: cmdCursor, op: storage.NextMultiple, absent: true},
			{fln: fln(), cmd: cmdCursor, op: storage.FirstDup, key: "vowels", val: "aa"},
			{fln: fln(), cmd: cmdCursor, op: storage.NextDup, key: "vowels", val: "ee"},
			{fln: fln(), cmd: cmdCursor, op: storage.GetMultiple, key: "vowels",
				val: "eeiioo"},
			{fln: fln(), cmd: cmdCloseCursor},
			{fln: fln(), cmd: cmdAbort},
		})
}

// RunIntegerKeyTest checks native integer key ordering: 10 sorts after 2,
// which byte order comparison would get wrong on little endian machines.
func RunIntegerKeyTest(t *testing.T, eng storage.Engine) {
	t.Helper()

	runEngineTest(t, eng, "integerkey_test", storage.IntegerKey,
		[]engCmd{
			{fln: fln(), cmd: cmdBegin, write: true},
			{fln: fln(), cmd: cmdPut, key: u64(2), val: "b"},
			{fln: fln(), cmd: cmdPut, key: u64(10), val: "j"},
			{fln: fln(), cmd: cmdPut, key: u64(1), val: "a"},
			{fln: fln(), cmd: cmdPut, key: u64(3), val: "c"},
			{fln: fln(), cmd: cmdScan,
				keyVals: []keyVal{
					{u64(1), "a"},
					{u64(2), "b"},
					{u64(3), "c"},
					{u64(10), "j"},
				}},
			{fln: fln(), cmd: cmdOpenCursor},
			{fln: fln(), cmd: cmdCursor, op: storage.SetRange, setKey: u64(4), key: u64(10),
				val: "j"},
			{fln: fln(), cmd: cmdCloseCursor},
			{fln: fln(), cmd: cmdAbort},
		})
}

// RunReverseKeyTest checks back to front key comparison.
func RunReverseKeyTest(t *testing.T, eng storage.Engine) {
	t.Helper()

	runEngineTest(t, eng, "reversekey_test", storage.ReverseKey,
		[]engCmd{
			{fln: fln(), cmd: cmdBegin, write: true},
			{fln: fln(), cmd: cmdPut, key: "az", val: "one"},
			{fln: fln(), cmd: cmdPut, key: "za", val: "two"},
			{fln: fln(), cmd: cmdPut, key: "mm", val: "three"},
			{fln: fln(), cmd: cmdScan,
				keyVals: []keyVal{{"za", "two"}, {"mm", "three"}, {"az", "one"}}},
			{fln: fln(), cmd: cmdAbort},
		})
}

// RunIsolationTest checks snapshot isolation: a read transaction sees the
// state as of its begin, unaffected by writes committed afterwards.
func RunIsolationTest(t *testing.T, eng storage.Engine) {
	t.Helper()

	dbi, err := eng.OpenDBI("isolation_test", storage.Create)
	if err != nil {
		t.Fatalf("OpenDBI(isolation_test) failed with %s", err)
	}

	wtx, err := eng.Begin(true)
	if err != nil {
		t.Fatal(err)
	}
	if err := wtx.Put(dbi, []byte("shared"), []byte("v1"), 0); err != nil {
		t.Fatal(err)
	}
	if err := wtx.Commit(); err != nil {
		t.Fatal(err)
	}

	rtx, err := eng.Begin(false)
	if err != nil {
		t.Fatal(err)
	}
	defer rtx.Abort()

	wtx, err = eng.Begin(true)
	if err != nil {
		t.Fatal(err)
	}
	if err := wtx.Put(dbi, []byte("shared"), []byte("v2"), 0); err != nil {
		t.Fatal(err)
	}
	if err := wtx.Put(dbi, []byte("added"), []byte("new"), 0); err != nil {
		t.Fatal(err)
	}

	// The uncommitted write must be invisible to the reader.
	val, ok, err := rtx.Get(dbi, []byte("shared"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(val) != "v1" {
		t.Errorf("reader before commit got %q, %v want v1", val, ok)
	}

	if err := wtx.Commit(); err != nil {
		t.Fatal(err)
	}

	// And still invisible after commit; the snapshot predates it.
	val, ok, err = rtx.Get(dbi, []byte("shared"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(val) != "v1" {
		t.Errorf("reader after commit got %q, %v want v1", val, ok)
	}
	_, ok, err = rtx.Get(dbi, []byte("added"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("reader sees key committed after its snapshot")
	}

	// A fresh reader sees the committed state.
	rtx2, err := eng.Begin(false)
	if err != nil {
		t.Fatal(err)
	}
	defer rtx2.Abort()

	val, ok, err = rtx2.Get(dbi, []byte("shared"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(val) != "v2" {
		t.Errorf("fresh reader got %q, %v want v2", val, ok)
	}
}
