package storage

import (
	"bytes"
	"errors"
	"testing"
)

func TestOverlayBuffersUntilCommit(t *testing.T) {
	backing := NewMemDB()
	if err := backing.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	overlay := NewOverlay(backing)
	if err := overlay.Put([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("overlay put: %v", err)
	}
	if err := overlay.Delete([]byte("a")); err != nil {
		t.Fatalf("overlay delete: %v", err)
	}

	// Overlay sees its own writes and deletes.
	if _, err := overlay.Get([]byte("a")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected deleted key hidden in overlay, got %v", err)
	}
	value, err := overlay.Get([]byte("b"))
	if err != nil || !bytes.Equal(value, []byte("2")) {
		t.Fatalf("expected buffered value, got %q err %v", value, err)
	}

	// The backing store is untouched before commit.
	if _, err := backing.Get([]byte("b")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("backing store must not see uncommitted writes, got %v", err)
	}
	if _, err := backing.Get([]byte("a")); err != nil {
		t.Fatalf("backing store must keep key until commit, got %v", err)
	}

	if err := overlay.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := backing.Get([]byte("a")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected delete applied on commit, got %v", err)
	}
	value, err = backing.Get([]byte("b"))
	if err != nil || !bytes.Equal(value, []byte("2")) {
		t.Fatalf("expected write applied on commit, got %q err %v", value, err)
	}
}

func TestOverlayReadsThrough(t *testing.T) {
	backing := NewMemDB()
	if err := backing.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	overlay := NewOverlay(backing)
	value, err := overlay.Get([]byte("k"))
	if err != nil || !bytes.Equal(value, []byte("v")) {
		t.Fatalf("expected read-through, got %q err %v", value, err)
	}
	ok, err := overlay.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("expected Has to read through, got %v %v", ok, err)
	}
}

func TestOverlayDiscardWithoutCommit(t *testing.T) {
	backing := NewMemDB()
	overlay := NewOverlay(backing)
	if err := overlay.Put([]byte("x"), []byte("y")); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Dropping the overlay without committing leaves the store unchanged.
	if _, err := backing.Get([]byte("x")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected uncommitted write discarded, got %v", err)
	}
}

func TestMemDBDefensiveCopies(t *testing.T) {
	db := NewMemDB()
	value := []byte("payload")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'
	stored, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(stored, []byte("payload")) {
		t.Fatalf("stored value aliases caller slice: %q", stored)
	}
}
