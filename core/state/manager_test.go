package state

import (
	"errors"
	"testing"

	"devquestvault/storage"
)

func TestManagerStagesUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db, DefaultRentParams())
	if err := mgr.KVPut([]byte("k"), uint64(7)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if db.Len() != 0 {
		t.Fatalf("write reached database before commit")
	}
	var got uint64
	if ok, err := mgr.KVGet([]byte("k"), &got); err != nil || !ok || got != 7 {
		t.Fatalf("overlay read: ok=%v got=%d err=%v", ok, got, err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if db.Len() != 1 {
		t.Fatalf("expected 1 key after commit, got %d", db.Len())
	}

	fresh := NewManager(db, DefaultRentParams())
	got = 0
	if ok, err := fresh.KVGet([]byte("k"), &got); err != nil || !ok || got != 7 {
		t.Fatalf("committed read: ok=%v got=%d err=%v", ok, got, err)
	}
}

func TestManagerDiscardDropsWrites(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	mgr := NewManager(db, DefaultRentParams())
	if err := mgr.KVPut([]byte("k"), uint64(1)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mgr.KVDelete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := mgr.KVGet([]byte("k"), nil); ok {
		t.Fatalf("staged delete not visible")
	}
	mgr.Discard()
	if ok, _ := mgr.KVGet([]byte("k"), nil); !ok {
		t.Fatalf("discard should restore committed value")
	}
	if mgr.Dirty() != 0 {
		t.Fatalf("dirty after discard: %d", mgr.Dirty())
	}
}

func TestEnsureSchema(t *testing.T) {
	db := storage.NewMemDB()
	stamped, err := EnsureSchema(db, false)
	if err != nil {
		t.Fatalf("stamp: %v", err)
	}
	if stamped != CurrentSchema() || stamped.StateSpace != 660 {
		t.Fatalf("unexpected stamp %+v", stamped)
	}
	if _, err := EnsureSchema(db, false); err != nil {
		t.Fatalf("verify: %v", err)
	}

	mgr := NewManager(db, DefaultRentParams())
	changed := CurrentSchema()
	changed.MaxPayees++
	if err := mgr.PutSchema(changed); err != nil {
		t.Fatalf("put schema: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := EnsureSchema(db, false); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
	have, err := EnsureSchema(db, true)
	if err != nil {
		t.Fatalf("allowMigrate: %v", err)
	}
	if have != changed {
		t.Fatalf("allowMigrate returned %+v", have)
	}
}

func TestRentMinimumBalance(t *testing.T) {
	rent := DefaultRentParams()
	if got := rent.MinimumBalance(660); got != (660+128)*3480*2 {
		t.Fatalf("minimum balance = %d", got)
	}
	huge := RentParams{PerByte: 1 << 62, ExemptionBytes: 0, Multiplier: 8}
	if got := huge.MinimumBalance(1); got != ^uint64(0) {
		t.Fatalf("expected saturation, got %d", got)
	}
}
