package registry

import (
	"context"
	"testing"
	"time"

	"github.com/vinayprograms/agentdir/state"
)

func TestCheckpointSaveRestore(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemoryStore()
	defer kv.Close()

	src := NewStore()
	src.Create(validRecord("alpha"))
	src.Create(validRecord("bravo"))

	if err := NewCheckpointer(src, kv, nil).Save(ctx); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	dst := NewStore()
	n, err := NewCheckpointer(dst, kv, nil).Restore(ctx, 30*time.Second, 90*time.Second)
	if err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	if n != 2 {
		t.Fatalf("restored = %d, want 2", n)
	}

	got, err := dst.Get("alpha")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	orig, _ := src.Get("alpha")
	if !got.RegisteredAt.Equal(orig.RegisteredAt) {
		t.Error("RegisteredAt not preserved across restore")
	}

	snap := dst.Snapshot()
	if snap[0].AgentID != "alpha" || snap[1].AgentID != "bravo" {
		t.Errorf("restore order = %s, %s", snap[0].AgentID, snap[1].AgentID)
	}
}

// A stored status is never trusted: restore derives it from last_seen.
func TestRestoreDerivesStatus(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemoryStore()
	defer kv.Close()

	// Register with a clock 10 minutes in the past so the stored last_seen
	// is far beyond both windows while the stored status still says alive.
	src := NewStore()
	src.nowFunc = func() time.Time { return time.Now().Add(-10 * time.Minute) }
	src.Create(validRecord("old"))
	src.nowFunc = time.Now

	if err := NewCheckpointer(src, kv, nil).Save(ctx); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	dst := NewStore()
	if _, err := NewCheckpointer(dst, kv, nil).Restore(ctx, 30*time.Second, 90*time.Second); err != nil {
		t.Fatalf("Restore error: %v", err)
	}

	got, _ := dst.Get("old")
	if got.Status != StatusExpired {
		t.Errorf("Status = %v, want expired (derived, not stored)", got.Status)
	}
}

func TestSaveRemovesDeletedRecords(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemoryStore()
	defer kv.Close()

	s := NewStore()
	s.Create(validRecord("keep"))
	s.Create(validRecord("drop"))

	cp := NewCheckpointer(s, kv, nil)
	if err := cp.Save(ctx); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	s.Delete("drop")
	if err := cp.Save(ctx); err != nil {
		t.Fatalf("second Save error: %v", err)
	}

	keys, _ := kv.Keys(ctx, KeyPrefix)
	if len(keys) != 1 || keys[0] != KeyPrefix+"keep" {
		t.Errorf("keys = %v, want only keep", keys)
	}
}

func TestRestoreSkipsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemoryStore()
	defer kv.Close()

	src := NewStore()
	src.Create(validRecord("good"))
	NewCheckpointer(src, kv, nil).Save(ctx)
	kv.Put(ctx, KeyPrefix+"bad", []byte("{not json"))

	dst := NewStore()
	n, err := NewCheckpointer(dst, kv, nil).Restore(ctx, 30*time.Second, 90*time.Second)
	if err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	if n != 1 {
		t.Errorf("restored = %d, want 1", n)
	}
}
