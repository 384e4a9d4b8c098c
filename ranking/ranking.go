package ranking

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/vinayprograms/agentdir/embedding"
	"github.com/vinayprograms/agentdir/registry"
)

// Weights controls the blend of scoring signals. They are not required
// to sum to one; relative magnitude is what matters.
type Weights struct {
	Semantic   float64 `toml:"semantic"`
	Keyword    float64 `toml:"keyword"`
	Reputation float64 `toml:"reputation"`
}

// DefaultWeights returns the semantic-dominant default blend.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.6, Keyword: 0.25, Reputation: 0.15}
}

// Query describes one discovery request.
type Query struct {
	Text               string
	Capabilities       []string
	AgentType          string
	IncludeUnavailable bool
}

// Result pairs a record with its blended score.
type Result struct {
	Record *registry.Record
	Score  float64
}

// Engine ranks registry snapshots against free-text queries. It only
// reads record copies and holds no mutable state besides its weights,
// so it is safe for concurrent use.
type Engine struct {
	gateway embedding.Gateway
	weights Weights
}

// NewEngine creates a ranking engine. gateway may be nil, in which case
// scoring is keyword and reputation only.
func NewEngine(gateway embedding.Gateway, weights Weights) *Engine {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Engine{gateway: gateway, weights: weights}
}

// Rank filters and orders a snapshot against the query. Records with
// status expired are excluded unless IncludeUnavailable is set, in
// which case they follow every non-expired match regardless of score.
// An unavailable embedding backend degrades the semantic term to zero
// for the whole query instead of failing it.
func (e *Engine) Rank(ctx context.Context, records []*registry.Record, q Query) ([]Result, error) {
	var queryVec []float32
	if e.gateway != nil && q.Text != "" {
		if vec, err := e.gateway.Embed(ctx, q.Text); err == nil {
			queryVec = vec
		}
	}

	queryTokens := tokenize(q.Text)

	var live, expired []Result
	for _, rec := range records {
		if !matches(rec, q) {
			continue
		}
		res := Result{Record: rec, Score: e.score(queryVec, queryTokens, rec)}
		if rec.Status == registry.StatusExpired {
			expired = append(expired, res)
		} else {
			live = append(live, res)
		}
	}

	sortResults(live)
	sortResults(expired)
	return append(live, expired...), nil
}

func matches(rec *registry.Record, q Query) bool {
	if rec.Status == registry.StatusExpired && !q.IncludeUnavailable {
		return false
	}
	if q.AgentType != "" && rec.AgentType != q.AgentType {
		return false
	}
	for _, cap := range q.Capabilities {
		if !rec.HasCapability(cap) {
			return false
		}
	}
	return true
}

func (e *Engine) score(queryVec []float32, queryTokens []string, rec *registry.Record) float64 {
	semantic := cosine(queryVec, rec.Embedding)
	keyword := overlap(queryTokens, rec)
	reputation := clamp01(rec.Metrics.Reputation)
	return e.weights.Semantic*semantic + e.weights.Keyword*keyword + e.weights.Reputation*reputation
}

// sortResults orders by score descending, then last_seen descending,
// then agent_id ascending, so a fixed snapshot always yields the same
// ordering.
func sortResults(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Score != rs[j].Score {
			return rs[i].Score > rs[j].Score
		}
		if !rs[i].Record.LastSeen.Equal(rs[j].Record.LastSeen) {
			return rs[i].Record.LastSeen.After(rs[j].Record.LastSeen)
		}
		return rs[i].Record.AgentID < rs[j].Record.AgentID
	})
}

// cosine returns the cosine similarity of two vectors, or 0 when either
// is empty or their lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// overlap returns |query tokens ∩ record tokens| / |query tokens|,
// where record tokens are drawn from capabilities and the context
// brief. An empty query scores 0.
func overlap(queryTokens []string, rec *registry.Record) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	corpus := make(map[string]struct{})
	for _, cap := range rec.Capabilities {
		for _, tok := range tokenize(cap) {
			corpus[tok] = struct{}{}
		}
	}
	for _, tok := range tokenize(rec.ContextBrief) {
		corpus[tok] = struct{}{}
	}

	seen := make(map[string]struct{}, len(queryTokens))
	hits := 0
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := corpus[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(seen))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
