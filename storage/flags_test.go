package storage_test

import (
	"errors"
	"testing"

	"github.com/lmtab/lmtab/storage"
)

func TestDBFlagsValid(t *testing.T) {
	cases := []struct {
		flags storage.DBFlags
		fail  bool
	}{
		{flags: 0},
		{flags: storage.Create},
		{flags: storage.DupSort},
		{flags: storage.DupSort | storage.DupFixed},
		{flags: storage.DupSort | storage.IntegerDup | storage.Create},
		{flags: storage.IntegerKey},
		{flags: storage.ReverseKey},
		{flags: storage.DupFixed, fail: true},
		{flags: storage.IntegerDup, fail: true},
		{flags: storage.ReverseDup, fail: true},
		{flags: storage.ReverseKey | storage.IntegerKey, fail: true},
	}

	for _, c := range cases {
		err := c.flags.Valid()
		if c.fail {
			if !errors.Is(err, storage.ErrInvalidArgument) {
				t.Errorf("Valid(%s) got %v want %v", c.flags, err, storage.ErrInvalidArgument)
			}
		} else if err != nil {
			t.Errorf("Valid(%s) failed with %s", c.flags, err)
		}
	}
}

func TestParseDBFlags(t *testing.T) {
	flags, err := storage.ParseDBFlags([]string{"dupsort", "dupfixed", "create"})
	if err != nil {
		t.Fatal(err)
	}
	want := storage.DupSort | storage.DupFixed | storage.Create
	if flags != want {
		t.Errorf("ParseDBFlags() got %s want %s", flags, want)
	}

	if _, err := storage.ParseDBFlags([]string{"bogus"}); err == nil {
		t.Error("ParseDBFlags(bogus) did not fail")
	}
	if _, err := storage.ParseDBFlags([]string{"dupfixed"}); err == nil {
		t.Error("ParseDBFlags(dupfixed alone) did not fail")
	}
}

func TestDBFlagsString(t *testing.T) {
	if s := storage.DBFlags(0).String(); s != "none" {
		t.Errorf("String() got %s want none", s)
	}
	if s := (storage.DupSort | storage.ReverseDup).String(); s != "dupsort|reversedup" {
		t.Errorf("String() got %s want dupsort|reversedup", s)
	}
}

func TestPutFlagsCompatible(t *testing.T) {
	cases := []struct {
		put  storage.PutFlags
		db   storage.DBFlags
		fail bool
	}{
		{put: storage.NoOverwrite, db: 0},
		{put: storage.Append, db: 0},
		{put: storage.NoDupData, db: storage.DupSort},
		{put: storage.AppendDup, db: storage.DupSort},
		{put: storage.NoDupData, db: 0, fail: true},
		{put: storage.AppendDup, db: 0, fail: true},
	}

	for _, c := range cases {
		err := c.put.CompatibleWith(c.db)
		if c.fail {
			if !errors.Is(err, storage.ErrInvalidArgument) {
				t.Errorf("CompatibleWith(%s, %s) got %v want %v", c.put, c.db, err,
					storage.ErrInvalidArgument)
			}
		} else if err != nil {
			t.Errorf("CompatibleWith(%s, %s) failed with %s", c.put, c.db, err)
		}
	}
}

func TestCursorOpCompatible(t *testing.T) {
	dupOps := []storage.CursorOp{
		storage.FirstDup, storage.LastDup, storage.NextDup, storage.NextNoDup,
		storage.PrevDup, storage.PrevNoDup, storage.GetBoth, storage.GetBothRange,
	}
	for _, op := range dupOps {
		if err := op.CompatibleWith(0); !errors.Is(err, storage.ErrInvalidArgument) {
			t.Errorf("CompatibleWith(%s, none) got %v want %v", op, err,
				storage.ErrInvalidArgument)
		}
		if err := op.CompatibleWith(storage.DupSort); err != nil {
			t.Errorf("CompatibleWith(%s, dupsort) failed with %s", op, err)
		}
	}

	bulkOps := []storage.CursorOp{storage.GetMultiple, storage.NextMultiple}
	for _, op := range bulkOps {
		if err := op.CompatibleWith(storage.DupSort); !errors.Is(err,
			storage.ErrInvalidArgument) {
			t.Errorf("CompatibleWith(%s, dupsort) got %v want %v", op, err,
				storage.ErrInvalidArgument)
		}
		if err := op.CompatibleWith(storage.DupSort | storage.DupFixed); err != nil {
			t.Errorf("CompatibleWith(%s, dupfixed) failed with %s", op, err)
		}
	}

	for _, op := range []storage.CursorOp{storage.First, storage.Next, storage.SetRange} {
		if err := op.CompatibleWith(0); err != nil {
			t.Errorf("CompatibleWith(%s, none) failed with %s", op, err)
		}
	}
}
