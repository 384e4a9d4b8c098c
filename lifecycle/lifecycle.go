package lifecycle

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/vinayprograms/agentdir/bus"
	"github.com/vinayprograms/agentdir/errors"
	"github.com/vinayprograms/agentdir/logging"
	"github.com/vinayprograms/agentdir/registry"
	"github.com/vinayprograms/agentdir/telemetry"
)

// Config holds supervisor timing configuration.
type Config struct {
	// StaleAfter is how long after the last heartbeat a record turns stale.
	// Default: 30s
	StaleAfter time.Duration

	// ExpireAfter is how long a record stays stale before expiring.
	// Default: 90s
	ExpireAfter time.Duration

	// RemoveAfter is the grace window after expiry before the sweep
	// removes the record, so "just expired" stays observable.
	// Default: 60s
	RemoveAfter time.Duration

	// Interval is the sweep period. Default: 5s
	Interval time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StaleAfter:  30 * time.Second,
		ExpireAfter: 90 * time.Second,
		RemoveAfter: 60 * time.Second,
		Interval:    5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.ExpireAfter <= 0 {
		c.ExpireAfter = d.ExpireAfter
	}
	if c.RemoveAfter <= 0 {
		c.RemoveAfter = d.RemoveAfter
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	return c
}

// errUnchanged aborts a status update whose record is already in the
// derived state, keeping re-evaluation a true no-op.
var errUnchanged = stderrors.New("status unchanged")

// Supervisor drives the per-record state machine alive -> stale ->
// expired -> removed on a fixed interval. It is the only component that
// demotes records; heartbeats promote them back through the facade.
type Supervisor struct {
	store  *registry.Store
	bus    bus.Bus
	cfg    Config
	log    *logging.Logger
	tracer *telemetry.Tracer

	nowFunc func() time.Time
}

// NewSupervisor creates a lifecycle supervisor over the given store.
func NewSupervisor(store *registry.Store, b bus.Bus, cfg Config, log *logging.Logger) *Supervisor {
	if log == nil {
		log = logging.New()
	}
	return &Supervisor{
		store:   store,
		bus:     b,
		cfg:     cfg.withDefaults(),
		log:     log.WithComponent("lifecycle"),
		tracer:  telemetry.GetTracer(),
		nowFunc: time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Ticks
// are self-paced and never wait on external I/O.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep re-evaluates every record once. Records already in their
// derived state are untouched. Each transition publishes one event;
// records expired past the removal grace are deleted. A record that
// vanished mid-sweep was unregistered concurrently, which counts as
// success.
func (s *Supervisor) Sweep() {
	now := s.nowFunc()
	_, span := s.tracer.StartSweepSpan(context.Background())

	var transitions, removals int
	for _, rec := range s.store.Snapshot() {
		if s.removable(rec, now) {
			if s.remove(rec, now) {
				removals++
			}
			continue
		}
		if s.transition(rec.AgentID, now) {
			transitions++
		}
	}
	s.tracer.EndSweepSpan(span, transitions, removals)
}

func (s *Supervisor) removable(rec *registry.Record, now time.Time) bool {
	deadline := rec.LastSeen.Add(s.cfg.StaleAfter + s.cfg.ExpireAfter + s.cfg.RemoveAfter)
	return rec.Status == registry.StatusExpired && now.After(deadline)
}

func (s *Supervisor) transition(id string, now time.Time) bool {
	var old, derived registry.Status
	_, err := s.store.Update(id, func(r *registry.Record) error {
		old = r.Status
		derived = registry.DeriveStatus(r.LastSeen, now, s.cfg.StaleAfter, s.cfg.ExpireAfter)
		if derived == r.Status {
			return errUnchanged
		}
		r.Status = derived
		return nil
	})
	if err != nil {
		if !stderrors.Is(err, errUnchanged) && !errors.Is(err, errors.ErrCodeNotFound) {
			s.log.Error("status update failed", map[string]interface{}{"agent_id": id, "error": err.Error()})
		}
		return false
	}

	s.log.Transition(id, string(old), string(derived))
	s.publishTransition(id, old, derived, now)
	return true
}

// remove deletes an expired record, re-checking removability inside the
// store's critical section so a heartbeat that lands after the sweep's
// snapshot keeps the record.
func (s *Supervisor) remove(rec *registry.Record, now time.Time) bool {
	removed, err := s.store.DeleteIf(rec.AgentID, func(r *registry.Record) bool {
		return s.removable(r, now)
	})
	if err != nil {
		// Concurrent unregister already removed it.
		if !errors.Is(err, errors.ErrCodeNotFound) {
			s.log.Error("sweep delete failed", map[string]interface{}{"agent_id": rec.AgentID, "error": err.Error()})
		}
		return false
	}
	if !removed {
		return false
	}

	s.log.Swept(rec.AgentID)
	s.publishRemoval(rec.AgentID, rec.Status, now)
	return true
}

func (s *Supervisor) publishTransition(id string, old, next registry.Status, now time.Time) {
	if s.bus == nil {
		return
	}
	for _, topic := range []bus.Topic{bus.TopicPublic, bus.TopicAdmin} {
		s.bus.Publish(bus.Event{
			Topic:     topic,
			Type:      bus.EventStatusChanged,
			AgentID:   id,
			OldStatus: old,
			NewStatus: next,
			Timestamp: now,
		})
	}
	s.publishCounts(now)
}

func (s *Supervisor) publishRemoval(id string, old registry.Status, now time.Time) {
	if s.bus == nil {
		return
	}
	for _, topic := range []bus.Topic{bus.TopicPublic, bus.TopicAdmin} {
		s.bus.Publish(bus.Event{
			Topic:     topic,
			Type:      bus.EventRemoved,
			AgentID:   id,
			OldStatus: old,
			Timestamp: now,
		})
	}
	s.publishCounts(now)
}

func (s *Supervisor) publishCounts(now time.Time) {
	counts := s.store.Counts()
	s.bus.Publish(bus.Event{
		Topic:     bus.TopicPublic,
		Type:      bus.EventCounts,
		Counts:    &counts,
		Timestamp: now,
	})
}
