package directory

import (
	"context"

	"github.com/vinayprograms/agentdir/auth"
	"github.com/vinayprograms/agentdir/ranking"
	"github.com/vinayprograms/agentdir/registry"
	"github.com/vinayprograms/agentdir/telemetry"
)

// Get returns one agent record, projected for the caller's tier.
func (s *Service) Get(ctx context.Context, ident auth.Identity, id string) (*registry.Record, error) {
	reqID := requestID(ident)
	ctx, span := s.tracer.StartOperationSpan(ctx, "get")

	rec, tier, err := s.get(ctx, ident, id)

	s.tracer.EndOperationSpan(span, telemetry.OperationSpanOptions{
		AgentID: id, RequestID: reqID, Tier: tier.String(),
	}, err)
	return rec, err
}

func (s *Service) get(ctx context.Context, ident auth.Identity, id string) (*registry.Record, auth.Tier, error) {
	decision, err := s.oracle.Authorize(ctx, ident, auth.TierPublic)
	if err != nil {
		return nil, auth.TierPublic, err
	}

	rec, err := s.store.Get(id)
	if err != nil {
		return nil, decision.Tier, err
	}
	return project(rec, decision), decision.Tier, nil
}

// List returns all records matching the filter, in insertion order,
// projected for the caller's tier. Expired records are hidden unless the
// filter asks for them.
func (s *Service) List(ctx context.Context, ident auth.Identity, filter registry.Filter) ([]*registry.Record, error) {
	reqID := requestID(ident)
	ctx, span := s.tracer.StartOperationSpan(ctx, "list")

	decision, err := s.oracle.Authorize(ctx, ident, auth.TierPublic)
	if err != nil {
		s.tracer.EndOperationSpan(span, telemetry.OperationSpanOptions{RequestID: reqID}, err)
		return nil, err
	}

	var out []*registry.Record
	for _, rec := range s.store.Snapshot() {
		if !filter.Matches(rec) {
			continue
		}
		out = append(out, project(rec, decision))
	}

	s.tracer.EndOperationSpan(span, telemetry.OperationSpanOptions{
		RequestID: reqID, Tier: decision.Tier.String(), Results: len(out),
	}, nil)
	return out, nil
}

// Search ranks the registry against a free-text query. Callable at any
// tier; results are projected so public callers never see credentials
// or raw metadata. An empty result set is a valid answer, not an error.
func (s *Service) Search(ctx context.Context, ident auth.Identity, q ranking.Query) ([]ranking.Result, error) {
	reqID := requestID(ident)
	ctx, span := s.tracer.StartOperationSpan(ctx, "search")

	results, tier, err := s.search(ctx, ident, q)

	s.tracer.EndOperationSpan(span, telemetry.OperationSpanOptions{
		RequestID: reqID, Tier: tier.String(), Results: len(results),
	}, err)
	return results, err
}

func (s *Service) search(ctx context.Context, ident auth.Identity, q ranking.Query) ([]ranking.Result, auth.Tier, error) {
	decision, err := s.oracle.Authorize(ctx, ident, auth.TierPublic)
	if err != nil {
		return nil, auth.TierPublic, err
	}

	results, err := s.ranker.Rank(ctx, s.store.Snapshot(), q)
	if err != nil {
		return nil, decision.Tier, err
	}

	for i := range results {
		results[i].Record = project(results[i].Record, decision)
	}
	return results, decision.Tier, nil
}
