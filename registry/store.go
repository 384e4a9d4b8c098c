package registry

import (
	"sync"
	"time"

	"github.com/vinayprograms/agentdir/errors"
)

// Store is the in-memory record store. Create is atomic with the
// uniqueness check, mutations on the same agent id are serialized, and
// mutations on different ids proceed independently.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // insertion order, for deterministic snapshots
	closed  bool

	nowFunc func() time.Time
}

// Each entry carries its own lock so updates to different agents do not
// contend. The store lock only guards the map and insertion order.
type entry struct {
	mu  sync.Mutex
	rec *Record
}

// ErrClosed is returned after Close.
var ErrClosed = errors.Internal("record store closed")

// NewStore creates an empty record store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		nowFunc: time.Now,
	}
}

// Create inserts a new record. The uniqueness check and the insert are a
// single critical section: of any number of concurrent creates for the
// same id, exactly one succeeds and the rest get DUPLICATE_AGENT.
// The store stamps RegisteredAt, LastSeen, UpdatedAt, and Status.
func (s *Store) Create(rec *Record) (*Record, error) {
	if rec.AgentID == "" {
		return nil, errors.Validation("agent_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if _, exists := s.entries[rec.AgentID]; exists {
		return nil, errors.DuplicateAgent(rec.AgentID)
	}

	now := s.nowFunc()
	stored := rec.Clone()
	stored.RegisteredAt = now
	stored.LastSeen = now
	stored.UpdatedAt = now
	stored.Status = StatusAlive

	s.entries[rec.AgentID] = &entry{rec: stored}
	s.order = append(s.order, rec.AgentID)

	return stored.Clone(), nil
}

// Update applies a mutator to the record under the per-id lock. The
// mutator receives a copy; the store writes it back only if the mutator
// succeeds. AgentID and RegisteredAt are immutable and LastSeen is clamped
// to be monotonically non-decreasing regardless of what the mutator set.
func (s *Store) Update(id string, mutate func(*Record) error) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	e, ok := s.entries[id]
	if !ok {
		return nil, errors.NotFound(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.rec.Clone()
	if err := mutate(work); err != nil {
		return nil, err
	}

	work.AgentID = e.rec.AgentID
	work.RegisteredAt = e.rec.RegisteredAt
	if work.LastSeen.Before(e.rec.LastSeen) {
		work.LastSeen = e.rec.LastSeen
	}
	work.UpdatedAt = s.nowFunc()

	e.rec = work
	return work.Clone(), nil
}

// Get returns a copy of the record.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	e, ok := s.entries[id]
	if !ok {
		return nil, errors.NotFound(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Clone(), nil
}

// Delete removes a record.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, ok := s.entries[id]; !ok {
		return errors.NotFound(id)
	}

	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteIf removes a record only while cond holds for its current value.
// The check and the delete are one critical section, so a mutation that
// lands first turns the delete into a no-op. Reports whether the record
// was removed.
func (s *Store) DeleteIf(id string, cond func(*Record) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	e, ok := s.entries[id]
	if !ok {
		return false, errors.NotFound(id)
	}
	if !cond(e.rec.Clone()) {
		return false, nil
	}

	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Snapshot returns copies of all records in insertion order.
func (s *Store) Snapshot() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.order))
	for _, id := range s.order {
		e, ok := s.entries[id]
		if !ok {
			continue
		}
		e.mu.Lock()
		out = append(out, e.rec.Clone())
		e.mu.Unlock()
	}
	return out
}

// Counts returns liveness totals across the store.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Counts
	for _, e := range s.entries {
		e.mu.Lock()
		switch e.rec.Status {
		case StatusAlive:
			c.Alive++
		case StatusStale:
			c.Stale++
		case StatusExpired:
			c.Expired++
		}
		e.mu.Unlock()
		c.Total++
	}
	return c
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Restore inserts a record preserving its stored timestamps. Used by the
// checkpoint restore path; callers must have re-derived Status from
// LastSeen first.
func (s *Store) Restore(rec *Record) error {
	if rec.AgentID == "" {
		return errors.Validation("agent_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, exists := s.entries[rec.AgentID]; exists {
		return errors.DuplicateAgent(rec.AgentID)
	}

	s.entries[rec.AgentID] = &entry{rec: rec.Clone()}
	s.order = append(s.order, rec.AgentID)
	return nil
}

// Close marks the store closed. Subsequent operations fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
