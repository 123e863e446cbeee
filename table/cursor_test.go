package table_test

import (
	"errors"
	"testing"

	"github.com/lmtab/lmtab/codec"
	"github.com/lmtab/lmtab/storage"
	"github.com/lmtab/lmtab/table"
)

func TestCursorWalk(t *testing.T) {
	env := newEnv(t, db("numbers", storage.IntegerKey))
	defer env.Close()

	err := env.Update(
		func(tx *table.WriteTxn) error {
			tbl, err := table.OpenWrite(tx, "numbers", codec.Uint64{}, codec.Raw{})
			if err != nil {
				return err
			}

			for _, kv := range []struct {
				key uint64
				val string
			}{{2, "b"}, {1, "a"}, {3, "c"}} {
				if err := tbl.Put(kv.key, []byte(kv.val)); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}

	err = env.View(
		func(tx *table.Txn) error {
			tbl, err := table.Open(tx, "numbers", codec.Uint64{}, codec.Raw{})
			if err != nil {
				return err
			}

			cr, err := tbl.Cursor()
			if err != nil {
				return err
			}
			defer cr.Close()

			want := []struct {
				key uint64
				val string
			}{{1, "a"}, {2, "b"}, {3, "c"}}

			entry, ok, err := cr.First()
			for _, w := range want {
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					t.Fatalf("cursor exhausted early; want %d", w.key)
				}
				if entry.Key != w.key {
					t.Errorf("cursor key got %d want %d", entry.Key, w.key)
				}
				v, err := entry.Value.Value()
				if err != nil {
					t.Fatal(err)
				}
				if string(v) != w.val {
					t.Errorf("cursor value got %q want %q", v, w.val)
				}
				entry, ok, err = cr.Next()
			}
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Errorf("cursor not exhausted; got key %d", entry.Key)
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCursorSeek(t *testing.T) {
	env := newEnv(t, db("words", 0))
	defer env.Close()

	err := env.Update(
		func(tx *table.WriteTxn) error {
			tbl, err := table.OpenWrite(tx, "words", codec.String{}, codec.Raw{})
			if err != nil {
				return err
			}
			for _, kv := range [][2]string{
				{"apple", "1"}, {"banana", "2"}, {"cherry", "3"},
			} {
				if err := tbl.Put(kv[0], []byte(kv[1])); err != nil {
					return err
				}
			}

			cr, err := tbl.Cursor()
			if err != nil {
				return err
			}
			defer cr.Close()

			entry, ok, err := cr.Seek("banana")
			if err != nil || !ok {
				t.Fatalf("Seek(banana) got %v, %v", ok, err)
			}
			if entry.Key != "banana" {
				t.Errorf("Seek(banana) got %q", entry.Key)
			}

			_, ok, err = cr.Seek("blueberry")
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Error("Seek(blueberry): unexpectedly present")
			}

			entry, ok, err = cr.SeekRange("blueberry")
			if err != nil || !ok {
				t.Fatalf("SeekRange(blueberry) got %v, %v", ok, err)
			}
			if entry.Key != "cherry" {
				t.Errorf("SeekRange(blueberry) got %q want cherry", entry.Key)
			}

			entry, ok, err = cr.Last()
			if err != nil || !ok {
				t.Fatalf("Last() got %v, %v", ok, err)
			}
			if entry.Key != "cherry" {
				t.Errorf("Last() got %q want cherry", entry.Key)
			}
			entry, ok, err = cr.Prev()
			if err != nil || !ok {
				t.Fatalf("Prev() got %v, %v", ok, err)
			}
			if entry.Key != "banana" {
				t.Errorf("Prev() got %q want banana", entry.Key)
			}

			entry, ok, err = cr.Current()
			if err != nil || !ok {
				t.Fatalf("Current() got %v, %v", ok, err)
			}
			if entry.Key != "banana" {
				t.Errorf("Current() got %q want banana", entry.Key)
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCursorDuplicates(t *testing.T) {
	env := newEnv(t, db("tags", storage.DupSort))
	defer env.Close()

	err := env.Update(
		func(tx *table.WriteTxn) error {
			tbl, err := table.OpenWrite(tx, "tags", codec.String{}, codec.Raw{})
			if err != nil {
				return err
			}
			for _, kv := range [][2]string{
				{"post1", "go"}, {"post1", "db"}, {"post1", "kv"}, {"post2", "go"},
			} {
				if err := tbl.Put(kv[0], []byte(kv[1])); err != nil {
					return err
				}
			}

			cr, err := tbl.Cursor()
			if err != nil {
				return err
			}
			defer cr.Close()

			entry, ok, err := cr.Seek("post1")
			if err != nil || !ok {
				t.Fatalf("Seek(post1) got %v, %v", ok, err)
			}
			v, _ := entry.Value.Value()
			if string(v) != "db" {
				t.Errorf("Seek(post1) first duplicate got %q want db", v)
			}

			var dups []string
			for {
				dups = append(dups, string(entry.Value.Bytes()))
				entry, ok, err = cr.NextDup()
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					break
				}
			}
			want := []string{"db", "go", "kv"}
			if len(dups) != len(want) {
				t.Fatalf("duplicates got %v want %v", dups, want)
			}
			for i := range want {
				if dups[i] != want[i] {
					t.Errorf("duplicates got %v want %v", dups, want)
					break
				}
			}

			entry, ok, err = cr.GetBoth("post1", []byte("go"))
			if err != nil || !ok {
				t.Fatalf("GetBoth(post1, go) got %v, %v", ok, err)
			}
			_, ok, err = cr.GetBoth("post1", []byte("rust"))
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Error("GetBoth(post1, rust): unexpectedly present")
			}

			entry, ok, err = cr.GetBothRange("post1", []byte("g"))
			if err != nil || !ok {
				t.Fatalf("GetBothRange(post1, g) got %v, %v", ok, err)
			}
			if v, _ := entry.Value.Value(); string(v) != "go" {
				t.Errorf("GetBothRange(post1, g) got %q want go", v)
			}

			entry, ok, err = cr.NextNoDup()
			if err != nil || !ok {
				t.Fatalf("NextNoDup() got %v, %v", ok, err)
			}
			if entry.Key != "post2" {
				t.Errorf("NextNoDup() got %q want post2", entry.Key)
			}

			// DeleteValue removes only the one pair.
			deleted, err := tbl.DeleteValue("post1", []byte("go"))
			if err != nil || !deleted {
				t.Fatalf("DeleteValue(post1, go) got %v, %v", deleted, err)
			}
			if _, ok, _ := tbl.Get("post1"); !ok {
				t.Error("Get(post1) after DeleteValue: key absent")
			}

			// Delete removes the remaining duplicates.
			deleted, err = tbl.Delete("post1")
			if err != nil || !deleted {
				t.Fatalf("Delete(post1) got %v, %v", deleted, err)
			}
			if _, ok, _ := tbl.Get("post1"); ok {
				t.Error("Get(post1) after Delete: still present")
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCursorBulk(t *testing.T) {
	env := newEnv(t, db("samples", storage.DupSort|storage.DupFixed))
	defer env.Close()

	err := env.Update(
		func(tx *table.WriteTxn) error {
			tbl, err := table.OpenWrite(tx, "samples", codec.String{}, codec.Raw{})
			if err != nil {
				return err
			}
			for _, val := range []string{"aa", "bb", "cc", "dd"} {
				if err := tbl.Put("sensor", []byte(val)); err != nil {
					return err
				}
			}

			cr, err := tbl.Cursor()
			if err != nil {
				return err
			}
			defer cr.Close()

			if _, ok, err := cr.Seek("sensor"); err != nil || !ok {
				t.Fatalf("Seek(sensor) got %v, %v", ok, err)
			}

			key, vals, ok, err := cr.GetMultiple()
			if err != nil || !ok {
				t.Fatalf("GetMultiple() got %v, %v", ok, err)
			}
			if key != "sensor" {
				t.Errorf("GetMultiple() key got %q want sensor", key)
			}
			want := []string{"aa", "bb", "cc", "dd"}
			if len(vals) != len(want) {
				t.Fatalf("GetMultiple() got %d values want %d", len(vals), len(want))
			}
			for i, v := range vals {
				if string(v) != want[i] {
					t.Errorf("GetMultiple()[%d] got %q want %q", i, v, want[i])
				}
			}

			_, _, ok, err = cr.NextMultiple()
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Error("NextMultiple(): unexpected second page")
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCursorClosed(t *testing.T) {
	env := newEnv(t, db("words", 0))
	defer env.Close()

	err := env.View(
		func(tx *table.Txn) error {
			tbl, err := table.Open(tx, "words", codec.String{}, codec.Raw{})
			if err != nil {
				return err
			}

			cr, err := tbl.Cursor()
			if err != nil {
				return err
			}
			cr.Close()
			cr.Close() // idempotent

			_, _, err = cr.First()
			if !errors.Is(err, storage.ErrInvalidArgument) {
				t.Errorf("First() on closed cursor got %v want %v", err,
					storage.ErrInvalidArgument)
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
}
