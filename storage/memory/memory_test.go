package memory_test

import (
	"errors"
	"testing"

	"github.com/lmtab/lmtab/storage"
	"github.com/lmtab/lmtab/storage/enginetest"
	"github.com/lmtab/lmtab/storage/memory"
)

func TestMemoryEngine(t *testing.T) {
	eng := memory.NewEngine()
	defer eng.Close()

	enginetest.RunEngineTest(t, eng)
	enginetest.RunAppendTest(t, eng)
	enginetest.RunCursorTest(t, eng)
	enginetest.RunDupSortTest(t, eng)
	enginetest.RunDupFixedTest(t, eng)
	enginetest.RunIntegerKeyTest(t, eng)
	enginetest.RunReverseKeyTest(t, eng)
	enginetest.RunIsolationTest(t, eng)
}

func TestMemoryOpenDBI(t *testing.T) {
	eng := memory.NewEngine()
	defer eng.Close()

	_, err := eng.OpenDBI("missing", 0)
	if !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("OpenDBI(missing) got %v want %v", err, storage.ErrInvalidArgument)
	}

	_, err = eng.OpenDBI("bad", storage.DupFixed|storage.Create)
	if !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("OpenDBI(DupFixed) got %v want %v", err, storage.ErrInvalidArgument)
	}

	dbi, err := eng.OpenDBI("dups", storage.DupSort|storage.Create)
	if err != nil {
		t.Fatal(err)
	}
	flags, ok := eng.DBIFlags(dbi)
	if !ok || flags != storage.DupSort {
		t.Errorf("DBIFlags() got %s, %v want %s", flags, ok, storage.DupSort)
	}

	// Reopening with zero flags returns the existing handle; reopening
	// with different flags fails.
	dbi2, err := eng.OpenDBI("dups", 0)
	if err != nil {
		t.Fatal(err)
	}
	if dbi2 != dbi {
		t.Errorf("OpenDBI(dups) got %d want %d", dbi2, dbi)
	}
	_, err = eng.OpenDBI("dups", storage.IntegerKey|storage.Create)
	if !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("OpenDBI(dups, IntegerKey) got %v want %v", err, storage.ErrInvalidArgument)
	}
}

func TestMemoryReadOnly(t *testing.T) {
	eng := memory.NewEngine()
	defer eng.Close()

	dbi, err := eng.OpenDBI("readonly", storage.Create)
	if err != nil {
		t.Fatal(err)
	}

	tx, err := eng.Begin(false)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Abort()

	if err := tx.Put(dbi, []byte("key"), []byte("val"), 0); err == nil {
		t.Error("Put() on read-only transaction did not fail")
	}
	if _, err := tx.Del(dbi, []byte("key"), nil); err == nil {
		t.Error("Del() on read-only transaction did not fail")
	}
	if err := tx.Drop(dbi); err == nil {
		t.Error("Drop() on read-only transaction did not fail")
	}
}

func TestMemoryDupFixedSize(t *testing.T) {
	eng := memory.NewEngine()
	defer eng.Close()

	dbi, err := eng.OpenDBI("fixed", storage.DupSort|storage.DupFixed|storage.Create)
	if err != nil {
		t.Fatal(err)
	}

	tx, err := eng.Begin(true)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Abort()

	if err := tx.Put(dbi, []byte("key"), []byte("four"), 0); err != nil {
		t.Fatal(err)
	}
	err = tx.Put(dbi, []byte("key"), []byte("seven77"), 0)
	if !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("Put() with mismatched size got %v want %v", err, storage.ErrInvalidArgument)
	}

	// Drop resets the fixed size.
	if err := tx.Drop(dbi); err != nil {
		t.Fatal(err)
	}
	if err := tx.Put(dbi, []byte("key"), []byte("seven77"), 0); err != nil {
		t.Errorf("Put() after Drop() failed with %s", err)
	}
}

func TestMemoryReserve(t *testing.T) {
	eng := memory.NewEngine()
	defer eng.Close()

	dbi, err := eng.OpenDBI("reserve", storage.Create)
	if err != nil {
		t.Fatal(err)
	}

	tx, err := eng.Begin(true)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Abort()

	err = tx.Put(dbi, []byte("key"), []byte("val"), storage.Reserve)
	if !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("Put(Reserve) got %v want %v", err, storage.ErrInvalidArgument)
	}
}

func TestMemoryFailedMove(t *testing.T) {
	eng := memory.NewEngine()
	defer eng.Close()

	dbi, err := eng.OpenDBI("moves", storage.Create)
	if err != nil {
		t.Fatal(err)
	}

	tx, err := eng.Begin(true)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Abort()

	for _, kv := range [][2]string{{"k1", "a"}, {"k2", "b"}} {
		if err := tx.Put(dbi, []byte(kv[0]), []byte(kv[1]), 0); err != nil {
			t.Fatal(err)
		}
	}

	cur, err := tx.Cursor(dbi)
	if err != nil {
		t.Fatal(err)
	}
	defer cur.Close()

	if _, _, ok, err := cur.Get([]byte("k2"), nil, storage.Set); err != nil || !ok {
		t.Fatalf("cursor.Get(set) got %v, %v", ok, err)
	}
	if _, _, ok, err := cur.Get([]byte("k9"), nil, storage.Set); err != nil || ok {
		t.Fatalf("cursor.Get(set, missing) got %v, %v", ok, err)
	}

	// A failed move leaves the position where it was.
	key, val, ok, err := cur.Get(nil, nil, storage.GetCurrent)
	if err != nil || !ok {
		t.Fatalf("cursor.Get(get-current) got %v, %v", ok, err)
	}
	if string(key) != "k2" || string(val) != "b" {
		t.Errorf("cursor.Get(get-current) got %q: %q want k2: b", key, val)
	}
}

func TestMemoryTxnDone(t *testing.T) {
	eng := memory.NewEngine()
	defer eng.Close()

	dbi, err := eng.OpenDBI("done", storage.Create)
	if err != nil {
		t.Fatal(err)
	}

	tx, err := eng.Begin(true)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Put(dbi, []byte("key"), []byte("val"), 0); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	if err := tx.Commit(); !errors.Is(err, storage.ErrTxnDone) {
		t.Errorf("Commit() after commit got %v want %v", err, storage.ErrTxnDone)
	}
	if _, _, err := tx.Get(dbi, []byte("key")); !errors.Is(err, storage.ErrTxnDone) {
		t.Errorf("Get() after commit got %v want %v", err, storage.ErrTxnDone)
	}
	if err := tx.Put(dbi, []byte("key"), []byte("val"), 0); !errors.Is(err, storage.ErrTxnDone) {
		t.Errorf("Put() after commit got %v want %v", err, storage.ErrTxnDone)
	}
}
