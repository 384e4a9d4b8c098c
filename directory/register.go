package directory

import (
	"context"

	"github.com/vinayprograms/agentdir/auth"
	"github.com/vinayprograms/agentdir/bus"
	"github.com/vinayprograms/agentdir/errors"
	"github.com/vinayprograms/agentdir/registry"
	"github.com/vinayprograms/agentdir/telemetry"
)

// Register validates and stores a new agent record. The embedding is
// computed best-effort: a gateway outage degrades search quality for
// this record but never fails the registration.
func (s *Service) Register(ctx context.Context, ident auth.Identity, rec *registry.Record) (*registry.Record, error) {
	reqID := requestID(ident)
	ctx, span := s.tracer.StartOperationSpan(ctx, "register")

	created, err := s.register(ctx, ident, reqID, rec)

	opts := telemetry.OperationSpanOptions{RequestID: reqID}
	if rec != nil {
		opts.AgentID = rec.AgentID
	}
	s.tracer.EndOperationSpan(span, opts, err)
	return created, err
}

func (s *Service) register(ctx context.Context, ident auth.Identity, reqID string, rec *registry.Record) (*registry.Record, error) {
	decision, err := s.oracle.Authorize(ctx, ident, auth.TierAgent)
	if err != nil {
		s.denied("register", reqID, err)
		return nil, err
	}

	if s.limiter != nil && !s.limiter.Allow(callerKey(ident, decision)) {
		return nil, errors.RateLimited("registration rate exceeded",
			errors.WithRequestID(reqID))
	}

	if rec == nil {
		return nil, errors.Validation("record is required", errors.WithRequestID(reqID))
	}
	if err := registry.Validate(rec, s.cfg.Validation); err != nil {
		return nil, errors.Wrap(err, "registration rejected", errors.WithRequestID(reqID))
	}

	work := rec.Clone()
	work.Embedding = s.embed(ctx, work.EmbeddingText(), reqID)

	created, err := s.store.Create(work)
	if err != nil {
		return nil, errors.Wrap(err, "registration failed", errors.WithRequestID(reqID))
	}

	s.log.WithRequestID(reqID).Info("agent registered", map[string]interface{}{
		"agent_id":   created.AgentID,
		"agent_type": created.AgentType,
	})

	for _, topic := range []bus.Topic{bus.TopicAgent, bus.TopicAdmin} {
		s.publish(bus.Event{
			Topic:     topic,
			Type:      bus.EventRegistered,
			AgentID:   created.AgentID,
			NewStatus: created.Status,
			Record:    created.Clone(),
		})
	}
	s.publish(bus.Event{
		Topic:     bus.TopicPublic,
		Type:      bus.EventRegistered,
		AgentID:   created.AgentID,
		NewStatus: created.Status,
	})
	s.publishCounts()

	return created, nil
}

// embed computes the record embedding with a bounded timeout, retrying
// once. Failure returns nil so the record registers without semantic
// search until a later update fills it in.
func (s *Service) embed(ctx context.Context, text, reqID string) []float32 {
	if s.embedder == nil || text == "" {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		ectx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		vec, err := s.embedder.Embed(ectx, text)
		cancel()
		if err == nil {
			return vec
		}
		lastErr = err
	}

	s.log.WithRequestID(reqID).Degraded("embedding", lastErr)
	return nil
}
