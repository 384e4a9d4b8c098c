package state

import (
	"context"
	"sort"
	"testing"
)

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "agents.a", []byte(`{"agent_id":"a"}`)); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := s.Get(ctx, "agents.a")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != `{"agent_id":"a"}` {
		t.Errorf("Get = %s", got)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	if _, err := s.Get(context.Background(), "agents.missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	s.Put(ctx, "agents.a", []byte("x"))
	if err := s.Delete(ctx, "agents.a"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	// Deleting a missing key is not an error.
	if err := s.Delete(ctx, "agents.a"); err != nil {
		t.Errorf("second Delete error: %v", err)
	}
}

func TestMemoryStoreKeysPrefix(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	s.Put(ctx, "agents.a", []byte("1"))
	s.Put(ctx, "agents.b", []byte("2"))
	s.Put(ctx, "meta.counts", []byte("3"))

	keys, err := s.Keys(ctx, "agents.")
	if err != nil {
		t.Fatalf("Keys error: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "agents.a" || keys[1] != "agents.b" {
		t.Errorf("Keys = %v", keys)
	}
}

func TestMemoryStoreInvalidKey(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	if err := s.Put(context.Background(), "", []byte("x")); err != ErrInvalidKey {
		t.Errorf("expected ErrInvalidKey for empty key, got %v", err)
	}
	if err := s.Put(context.Background(), "has space", []byte("x")); err != ErrInvalidKey {
		t.Errorf("expected ErrInvalidKey for key with space, got %v", err)
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	s.Close()

	if err := s.Put(context.Background(), "k", []byte("x")); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := s.Get(context.Background(), "k"); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
