package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
)

// StaticGateway produces deterministic embeddings derived from token
// hashes. It needs no network and gives stable, repeatable vectors, so
// single-node deployments and tests can run without an API key. Texts
// sharing tokens land near each other, which is enough for coarse
// semantic ranking.
type StaticGateway struct {
	dimensions  int
	unavailable atomic.Bool
}

// NewStaticGateway creates a deterministic local embedder.
func NewStaticGateway(dimensions int) *StaticGateway {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &StaticGateway{dimensions: dimensions}
}

// SetUnavailable toggles forced failure. Tests use it to exercise
// degraded-mode fallbacks.
func (g *StaticGateway) SetUnavailable(v bool) {
	g.unavailable.Store(v)
}

// Embed implements Gateway.
func (g *StaticGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.unavailable.Load() {
		return nil, ErrUnavailable
	}
	if text == "" {
		return nil, ErrUnavailable
	}

	vec := make([]float32, g.dimensions)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(g.dimensions))
		// Alternate sign from a hash bit so distinct tokens do not all
		// pull in the same direction.
		if sum&(1<<63) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Dimensions implements Gateway.
func (g *StaticGateway) Dimensions() int {
	return g.dimensions
}
