package directory

import (
	"context"
	"time"

	"github.com/vinayprograms/agentdir/auth"
	"github.com/vinayprograms/agentdir/bus"
	"github.com/vinayprograms/agentdir/errors"
	"github.com/vinayprograms/agentdir/registry"
	"github.com/vinayprograms/agentdir/telemetry"
)

// Heartbeat refreshes an agent's last_seen and resets it to alive. Only
// the agent itself or an admin may heartbeat; last_seen never moves
// backwards.
func (s *Service) Heartbeat(ctx context.Context, ident auth.Identity, id string) (*registry.Record, error) {
	reqID := requestID(ident)
	ctx, span := s.tracer.StartOperationSpan(ctx, "heartbeat")

	rec, err := s.heartbeat(ctx, ident, reqID, id)

	s.tracer.EndOperationSpan(span, telemetry.OperationSpanOptions{
		AgentID: id, RequestID: reqID,
	}, err)
	return rec, err
}

func (s *Service) heartbeat(ctx context.Context, ident auth.Identity, reqID, id string) (*registry.Record, error) {
	if _, err := s.authorizeOwner(ctx, ident, reqID, id, "heartbeat"); err != nil {
		return nil, err
	}

	var old registry.Status
	updated, err := s.store.Update(id, func(r *registry.Record) error {
		old = r.Status
		r.LastSeen = time.Now()
		r.Status = registry.StatusAlive
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.Event{
		Topic:   bus.TopicAgent,
		Type:    bus.EventHeartbeat,
		AgentID: id,
		Record:  updated.Clone(),
	})
	s.publish(bus.Event{
		Topic:   bus.TopicAdmin,
		Type:    bus.EventHeartbeat,
		AgentID: id,
	})
	if old != updated.Status {
		s.publish(bus.Event{
			Topic:     bus.TopicPublic,
			Type:      bus.EventStatusChanged,
			AgentID:   id,
			OldStatus: old,
			NewStatus: updated.Status,
		})
		s.publishCounts()
	}

	return updated, nil
}

// Unregister removes an agent record. Destructive, so it requires the
// PIN-elevated admin tier. Removing an id that is already gone counts
// as success to tolerate races with the lifecycle sweep.
func (s *Service) Unregister(ctx context.Context, ident auth.Identity, id string) error {
	reqID := requestID(ident)
	ctx, span := s.tracer.StartOperationSpan(ctx, "unregister")

	err := s.unregister(ctx, ident, reqID, id)

	s.tracer.EndOperationSpan(span, telemetry.OperationSpanOptions{
		AgentID: id, RequestID: reqID,
	}, err)
	return err
}

func (s *Service) unregister(ctx context.Context, ident auth.Identity, reqID, id string) error {
	if _, err := s.oracle.Authorize(ctx, ident, auth.TierAdminPIN); err != nil {
		s.denied("unregister", reqID, err)
		return err
	}

	prev, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			return nil
		}
		return err
	}

	if err := s.store.Delete(id); err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			return nil
		}
		return err
	}

	s.log.WithRequestID(reqID).Info("agent unregistered", map[string]interface{}{"agent_id": id})

	for _, topic := range []bus.Topic{bus.TopicPublic, bus.TopicAgent, bus.TopicAdmin} {
		s.publish(bus.Event{
			Topic:     topic,
			Type:      bus.EventRemoved,
			AgentID:   id,
			OldStatus: prev.Status,
		})
	}
	s.publishCounts()
	return nil
}

// MetricsUpdate is one reported batch of operational counters.
type MetricsUpdate struct {
	// Requests and Successes are deltas, added to the stored totals.
	Requests  int64 `json:"requests"`
	Successes int64 `json:"successes"`

	// AvgLatencyMs is the observed latency for this batch. Zero leaves
	// the stored average untouched.
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

func (u MetricsUpdate) validate(reqID string) error {
	if u.Requests < 0 || u.Successes < 0 || u.AvgLatencyMs < 0 {
		return errors.Validation("metrics values must be non-negative",
			errors.WithRequestID(reqID))
	}
	if u.Successes > u.Requests {
		return errors.Validation("successes exceed requests",
			errors.WithRequestID(reqID))
	}
	return nil
}

// UpdateMetrics merges a reported batch into the record's metrics and
// recomputes its reputation. Only the agent itself or an admin may
// report.
func (s *Service) UpdateMetrics(ctx context.Context, ident auth.Identity, id string, update MetricsUpdate) (*registry.Record, error) {
	reqID := requestID(ident)
	ctx, span := s.tracer.StartOperationSpan(ctx, "update_metrics")

	rec, err := s.updateMetrics(ctx, ident, reqID, id, update)

	s.tracer.EndOperationSpan(span, telemetry.OperationSpanOptions{
		AgentID: id, RequestID: reqID,
	}, err)
	return rec, err
}

func (s *Service) updateMetrics(ctx context.Context, ident auth.Identity, reqID, id string, update MetricsUpdate) (*registry.Record, error) {
	if _, err := s.authorizeOwner(ctx, ident, reqID, id, "update_metrics"); err != nil {
		return nil, err
	}
	if err := update.validate(reqID); err != nil {
		return nil, err
	}

	updated, err := s.store.Update(id, func(r *registry.Record) error {
		merge(&r.Metrics, update)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, topic := range []bus.Topic{bus.TopicAgent, bus.TopicAdmin} {
		s.publish(bus.Event{
			Topic:   topic,
			Type:    bus.EventMetrics,
			AgentID: id,
			Record:  updated.Clone(),
		})
	}

	return updated, nil
}

// merge folds one reported batch into the stored metrics. The latency
// average is an exponential blend so old behavior fades rather than
// dominating forever.
func merge(m *registry.Metrics, u MetricsUpdate) {
	m.Requests += u.Requests
	m.Successes += u.Successes
	if m.Requests > 0 {
		m.SuccessRate = float64(m.Successes) / float64(m.Requests)
	}
	if u.AvgLatencyMs > 0 {
		if m.AvgLatencyMs == 0 {
			m.AvgLatencyMs = u.AvgLatencyMs
		} else {
			m.AvgLatencyMs = 0.8*m.AvgLatencyMs + 0.2*u.AvgLatencyMs
		}
	}
	m.Reputation = reputation(m.SuccessRate, m.AvgLatencyMs)
}

// reputation blends success rate with a latency score that decays as
// average latency grows past one second. The result stays in [0,1].
func reputation(successRate, avgLatencyMs float64) float64 {
	latencyScore := 1.0
	if avgLatencyMs > 0 {
		latencyScore = 1000 / (1000 + avgLatencyMs)
	}
	r := 0.7*successRate + 0.3*latencyScore
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// authorizeOwner admits the owning agent or an admin.
func (s *Service) authorizeOwner(ctx context.Context, ident auth.Identity, reqID, id, op string) (auth.Decision, error) {
	decision, err := s.oracle.Authorize(ctx, ident, auth.TierAgent)
	if err != nil {
		s.denied(op, reqID, err)
		return auth.Decision{}, err
	}
	if !decision.Tier.Satisfies(auth.TierAdmin) && decision.ActingID != id {
		err := errors.PermissionDenied("caller does not own agent "+id,
			errors.WithRequestID(reqID), errors.WithAgentID(id))
		s.denied(op, reqID, err)
		return auth.Decision{}, err
	}
	return decision, nil
}
