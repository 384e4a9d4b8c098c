package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding backend cannot serve requests
// right now. Callers treat it as a degraded-mode signal, not a failure
// of the surrounding operation.
var ErrUnavailable = errors.New("embedding backend unavailable")

// Gateway produces vector embeddings for agent descriptions and search
// queries. Implementations must be safe for concurrent use.
type Gateway interface {
	// Embed returns the embedding vector for text. An empty text is an
	// error. Backend outages surface as ErrUnavailable (possibly
	// wrapped) so callers can fall back to keyword-only behavior.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the length of vectors produced by Embed.
	Dimensions() int
}
