package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/agentdir/errors"
)

func validRecord(id string) *Record {
	return &Record{
		AgentID:           id,
		Name:              "Test Agent " + id,
		AgentType:         "worker",
		Endpoint:          "https://agents.example.com/" + id,
		Capabilities:      []string{"code-review"},
		ContextBrief:      "reviews pull requests",
		CommunicationMode: ModeRemote,
		PublicKey:         "0123456789abcdef0123456789abcdef",
	}
}

func TestStoreCreate(t *testing.T) {
	s := NewStore()

	created, err := s.Create(validRecord("agent-1"))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.Status != StatusAlive {
		t.Errorf("Status = %v, want alive", created.Status)
	}
	if created.RegisteredAt.IsZero() || created.LastSeen.IsZero() {
		t.Error("timestamps should be stamped on create")
	}

	got, err := s.Get("agent-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Name != "Test Agent agent-1" {
		t.Errorf("Name = %q", got.Name)
	}
}

func TestStoreCreateDuplicate(t *testing.T) {
	s := NewStore()

	if _, err := s.Create(validRecord("agent-1")); err != nil {
		t.Fatalf("first Create error: %v", err)
	}
	_, err := s.Create(validRecord("agent-1"))
	if !errors.Is(err, errors.ErrCodeDuplicateAgent) {
		t.Errorf("expected DUPLICATE_AGENT, got %v", err)
	}
}

// Of N concurrent creates for the same id, exactly one succeeds.
func TestStoreCreateConcurrentUniqueness(t *testing.T) {
	s := NewStore()

	const n = 32
	var wg sync.WaitGroup
	results := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.Create(validRecord("agent-1"))
		}(i)
	}
	wg.Wait()

	wins, dups := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, errors.ErrCodeDuplicateAgent):
			dups++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if dups != n-1 {
		t.Errorf("duplicates = %d, want %d", dups, n-1)
	}
}

func TestStoreUpdateMissing(t *testing.T) {
	s := NewStore()
	_, err := s.Update("ghost", func(r *Record) error { return nil })
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestStoreUpdateImmutableFields(t *testing.T) {
	s := NewStore()
	created, _ := s.Create(validRecord("agent-1"))

	updated, err := s.Update("agent-1", func(r *Record) error {
		r.AgentID = "evil"
		r.RegisteredAt = time.Time{}
		r.Name = "renamed"
		return nil
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.AgentID != "agent-1" {
		t.Errorf("AgentID changed to %q", updated.AgentID)
	}
	if !updated.RegisteredAt.Equal(created.RegisteredAt) {
		t.Error("RegisteredAt changed by mutator")
	}
	if updated.Name != "renamed" {
		t.Errorf("Name = %q, want renamed", updated.Name)
	}
}

// last_seen never decreases, whatever the mutator writes.
func TestStoreLastSeenMonotonic(t *testing.T) {
	s := NewStore()
	created, _ := s.Create(validRecord("agent-1"))

	updated, err := s.Update("agent-1", func(r *Record) error {
		r.LastSeen = created.LastSeen.Add(-time.Hour)
		return nil
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.LastSeen.Before(created.LastSeen) {
		t.Errorf("LastSeen regressed: %v < %v", updated.LastSeen, created.LastSeen)
	}

	later := created.LastSeen.Add(time.Minute)
	updated, _ = s.Update("agent-1", func(r *Record) error {
		r.LastSeen = later
		return nil
	})
	if !updated.LastSeen.Equal(later) {
		t.Errorf("LastSeen = %v, want %v", updated.LastSeen, later)
	}
}

func TestStoreUpdateMutatorError(t *testing.T) {
	s := NewStore()
	s.Create(validRecord("agent-1"))

	boom := errors.Validation("bad update")
	_, err := s.Update("agent-1", func(r *Record) error {
		r.Name = "should not stick"
		return boom
	})
	if err == nil {
		t.Fatal("expected mutator error")
	}

	got, _ := s.Get("agent-1")
	if got.Name == "should not stick" {
		t.Error("failed mutation was applied")
	}
}

func TestStoreDelete(t *testing.T) {
	s := NewStore()
	s.Create(validRecord("agent-1"))

	if err := s.Delete("agent-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := s.Delete("agent-1"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND on second delete, got %v", err)
	}
	if _, err := s.Get("agent-1"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND after delete, got %v", err)
	}
}

func TestStoreDeleteIf(t *testing.T) {
	s := NewStore()
	s.Create(validRecord("agent-1"))

	// Condition fails: the record stays.
	removed, err := s.DeleteIf("agent-1", func(r *Record) bool {
		return r.Status == StatusExpired
	})
	if err != nil {
		t.Fatalf("DeleteIf error: %v", err)
	}
	if removed {
		t.Error("record removed despite failing condition")
	}
	if _, err := s.Get("agent-1"); err != nil {
		t.Errorf("record gone after refused delete: %v", err)
	}

	// Condition holds: the record goes.
	removed, err = s.DeleteIf("agent-1", func(r *Record) bool {
		return r.Status == StatusAlive
	})
	if err != nil || !removed {
		t.Fatalf("DeleteIf = (%v, %v), want removal", removed, err)
	}
	if _, err := s.Get("agent-1"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND after delete, got %v", err)
	}

	if _, err := s.DeleteIf("agent-1", func(r *Record) bool { return true }); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for missing id, got %v", err)
	}
}

func TestStoreSnapshotInsertionOrder(t *testing.T) {
	s := NewStore()
	ids := []string{"charlie", "alpha", "bravo"}
	for _, id := range ids {
		if _, err := s.Create(validRecord(id)); err != nil {
			t.Fatalf("Create(%s) error: %v", id, err)
		}
	}

	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	for i, id := range ids {
		if snap[i].AgentID != id {
			t.Errorf("snapshot[%d] = %s, want %s", i, snap[i].AgentID, id)
		}
	}

	// Snapshots are copies; mutating one must not touch the store.
	snap[0].Name = "mutated"
	got, _ := s.Get("charlie")
	if got.Name == "mutated" {
		t.Error("snapshot mutation leaked into store")
	}
}

func TestStoreCounts(t *testing.T) {
	s := NewStore()
	s.Create(validRecord("a"))
	s.Create(validRecord("b"))
	s.Create(validRecord("c"))

	s.Update("b", func(r *Record) error { r.Status = StatusStale; return nil })
	s.Update("c", func(r *Record) error { r.Status = StatusExpired; return nil })

	c := s.Counts()
	if c.Alive != 1 || c.Stale != 1 || c.Expired != 1 || c.Total != 3 {
		t.Errorf("Counts = %+v", c)
	}
}

func TestStoreConcurrentUpdatesDistinctIDs(t *testing.T) {
	s := NewStore()
	s.Create(validRecord("a"))
	s.Create(validRecord("b"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Update("a", func(r *Record) error { r.Metrics.Requests++; return nil })
		}()
		go func() {
			defer wg.Done()
			s.Update("b", func(r *Record) error { r.Metrics.Requests++; return nil })
		}()
	}
	wg.Wait()

	a, _ := s.Get("a")
	b, _ := s.Get("b")
	if a.Metrics.Requests != 50 || b.Metrics.Requests != 50 {
		t.Errorf("Requests = %d/%d, want 50/50", a.Metrics.Requests, b.Metrics.Requests)
	}
}

func TestStoreClosed(t *testing.T) {
	s := NewStore()
	s.Close()

	if _, err := s.Create(validRecord("a")); err == nil {
		t.Error("Create should fail after Close")
	}
	if _, err := s.Get("a"); err == nil {
		t.Error("Get should fail after Close")
	}
}
