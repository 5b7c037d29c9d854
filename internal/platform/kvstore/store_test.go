package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "u1", "meals"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Put(ctx, "u1", "meals", []byte(`[1]`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "u1", "meals", []byte(`[1,2]`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "u1", "alpha", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "u2", "meals", []byte(`[]`)); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "u1", "meals")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `[1,2]` {
		t.Errorf("expected overwritten value, got %s", got)
	}

	keys, err := s.Keys(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "meals" {
		t.Errorf("expected sorted [alpha meals], got %v", keys)
	}

	ns, err := s.Namespaces(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ns) != 2 || ns[0] != "u1" || ns[1] != "u2" {
		t.Errorf("expected [u1 u2], got %v", ns)
	}

	if err := s.Delete(ctx, "u2", "meals"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "u2", "missing"); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
	ns, _ = s.Namespaces(ctx)
	if len(ns) != 1 {
		t.Errorf("expected u2 to disappear once empty, got %v", ns)
	}

	keys, err = s.Keys(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if keys == nil || len(keys) != 0 {
		t.Errorf("expected empty non-nil keys, got %#v", keys)
	}

	if err := s.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte(`"a"`)
	_ = s.Put(ctx, "u", "k", buf)
	buf[1] = 'b'
	got, _ := s.Get(ctx, "u", "k")
	if string(got) != `"a"` {
		t.Errorf("store must not alias caller buffers, got %s", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kv.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "demo-user", "sleep_sessions", []byte(`[{"quality":4}]`)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "demo-user", "sleep_sessions")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `[{"quality":4}]` {
		t.Errorf("expected persisted value, got %s", got)
	}
}
