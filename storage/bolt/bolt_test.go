package bolt_test

import (
	"errors"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/lmtab/lmtab/storage"
	"github.com/lmtab/lmtab/storage/bolt"
	"github.com/lmtab/lmtab/storage/enginetest"
	"github.com/lmtab/lmtab/testutil"
)

func TestMain(m *testing.M) {
	flag.Parse()
	testutil.SetupLogger("bolt_test.log")
	os.Exit(m.Run())
}

func TestBoltEngine(t *testing.T) {
	err := testutil.CleanDir("testdata", []string{".gitignore"})
	if err != nil {
		t.Fatal(err)
	}

	eng, err := bolt.Open("testdata", bolt.Options{NoSync: true})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	enginetest.RunEngineTest(t, eng)
	enginetest.RunAppendTest(t, eng)
	enginetest.RunCursorTest(t, eng)
	enginetest.RunIsolationTest(t, eng)
}

func TestBoltOpenDBI(t *testing.T) {
	err := testutil.CleanDir("testdata", []string{".gitignore"})
	if err != nil {
		t.Fatal(err)
	}

	eng, err := bolt.Open("testdata", bolt.Options{NoSync: true})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	// Only default-flag databases are supported.
	for _, flags := range []storage.DBFlags{
		storage.DupSort,
		storage.IntegerKey,
		storage.ReverseKey,
		storage.DupSort | storage.DupFixed,
	} {
		_, err = eng.OpenDBI("unsupported", flags|storage.Create)
		if !errors.Is(err, storage.ErrInvalidArgument) {
			t.Errorf("OpenDBI(%s) got %v want %v", flags, err, storage.ErrInvalidArgument)
		}
	}

	_, err = eng.OpenDBI("missing", 0)
	if !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("OpenDBI(missing) got %v want %v", err, storage.ErrInvalidArgument)
	}

	dbi, err := eng.OpenDBI("plain", storage.Create)
	if err != nil {
		t.Fatal(err)
	}
	flags, ok := eng.DBIFlags(dbi)
	if !ok || flags != 0 {
		t.Errorf("DBIFlags() got %s, %v want none", flags, ok)
	}
}

func TestBoltOpenDuringWrite(t *testing.T) {
	err := testutil.CleanDir("testdata", []string{".gitignore"})
	if err != nil {
		t.Fatal(err)
	}

	eng, err := bolt.Open("testdata", bolt.Options{NoSync: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.OpenDBI("users", storage.Create); err != nil {
		t.Fatal(err)
	}
	if err := eng.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen so the bucket exists on disk but the engine has not
	// registered it yet.
	eng, err = bolt.Open("testdata", bolt.Options{NoSync: true})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	tx, err := eng.Begin(true)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Abort()

	// Opening an existing bucket must not queue behind the active write
	// transaction.
	var dbi storage.DBI
	done := make(chan error, 1)
	go func() {
		var err error
		dbi, err = eng.OpenDBI("users", 0)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("OpenDBI(users, 0) blocked behind the active write transaction")
	}

	// A missing bucket without Create errors promptly for the same reason.
	go func() {
		_, err := eng.OpenDBI("missing", 0)
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, storage.ErrInvalidArgument) {
			t.Errorf("OpenDBI(missing) got %v want %v", err, storage.ErrInvalidArgument)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("OpenDBI(missing, 0) blocked behind the active write transaction")
	}

	if err := tx.Put(dbi, []byte("key"), []byte("val"), 0); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestBoltDurability(t *testing.T) {
	err := testutil.CleanDir("testdata", []string{".gitignore"})
	if err != nil {
		t.Fatal(err)
	}

	eng, err := bolt.Open("testdata", bolt.Options{})
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

	// Committed data survives reopening the file.
	eng, err = bolt.Open("testdata", bolt.Options{})
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
