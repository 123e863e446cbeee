package lmdb_test

import (
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/lmtab/lmtab/storage"
	"github.com/lmtab/lmtab/storage/enginetest"
	"github.com/lmtab/lmtab/storage/lmdb"
	"github.com/lmtab/lmtab/testutil"
)

const testMapSize = 64 * 1024 * 1024

func TestMain(m *testing.M) {
	flag.Parse()
	testutil.SetupLogger("lmdb_test.log")
	os.Exit(m.Run())
}

func TestLMDBEngine(t *testing.T) {
	err := testutil.CleanDir("testdata", []string{".gitignore"})
	if err != nil {
		t.Fatal(err)
	}

	eng, err := lmdb.Open("testdata",
		lmdb.Options{
			MapSize: testMapSize,
			MaxDBs:  16,
			NoSync:  true,
		})
	if err != nil {
		t.Fatal(err)
	}
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

func TestLMDBOpenDatabases(t *testing.T) {
	err := testutil.CleanDir("testdata", []string{".gitignore"})
	if err != nil {
		t.Fatal(err)
	}

	eng, err := lmdb.Open("testdata",
		lmdb.Options{
			MapSize: testMapSize,
			MaxDBs:  16,
			NoSync:  true,
			Databases: []lmdb.Database{
				{Name: "plain"},
				{Name: "dups", Flags: storage.DupSort},
			},
		})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	dbi, err := eng.OpenDBI("dups", 0)
	if err != nil {
		t.Fatal(err)
	}
	flags, ok := eng.DBIFlags(dbi)
	if !ok || flags != storage.DupSort {
		t.Errorf("DBIFlags(dups) got %s, %v want %s", flags, ok, storage.DupSort)
	}

	_, err = eng.OpenDBI("missing", 0)
	if !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("OpenDBI(missing) got %v want %v", err, storage.ErrInvalidArgument)
	}

	_, err = eng.OpenDBI("bad", storage.DupFixed|storage.Create)
	if !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("OpenDBI(DupFixed) got %v want %v", err, storage.ErrInvalidArgument)
	}
}

func TestLMDBReserve(t *testing.T) {
	err := testutil.CleanDir("testdata", []string{".gitignore"})
	if err != nil {
		t.Fatal(err)
	}

	eng, err := lmdb.Open("testdata",
		lmdb.Options{MapSize: testMapSize, MaxDBs: 4, NoSync: true})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	dbi, err := eng.OpenDBI("reserve", storage.Create)
	if err != nil {
		t.Fatal(err)
	}

	tx, err := eng.Begin(true)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Put(dbi, []byte("key"), []byte("reserved"), storage.Reserve); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx, err = eng.Begin(false)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Abort()

	val, ok, err := tx.Get(dbi, []byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(val) != "reserved" {
		t.Errorf("Get(key) got %q, %v want reserved", val, ok)
	}
}

func TestLMDBDurability(t *testing.T) {
	err := testutil.CleanDir("testdata", []string{".gitignore"})
	if err != nil {
		t.Fatal(err)
	}

	eng, err := lmdb.Open("testdata", lmdb.Options{MapSize: testMapSize, MaxDBs: 4})
	if err != nil {
		t.Fatal(err)
	}

	dbi, err := eng.OpenDBI("durable", storage.Create)
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
	if err := eng.Close(); err != nil {
		t.Fatal(err)
	}

	eng, err = lmdb.Open("testdata", lmdb.Options{MapSize: testMapSize, MaxDBs: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	dbi, err = eng.OpenDBI("durable", 0)
	if err != nil {
		t.Fatal(err)
	}
	tx, err = eng.Begin(false)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Abort()

	val, ok, err := tx.Get(dbi, []byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(val) != "val" {
		t.Errorf("Get(key) got %q, %v want val", val, ok)
	}
}
