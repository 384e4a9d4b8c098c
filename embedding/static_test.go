package embedding

import (
	"context"
	"math"
	"testing"
)

func TestStaticDeterministic(t *testing.T) {
	g := NewStaticGateway(64)

	a, err := g.Embed(context.Background(), "summarize financial reports")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	b, err := g.Embed(context.Background(), "summarize financial reports")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}

	if len(a) != 64 || len(b) != 64 {
		t.Fatalf("dimensions = %d, %d, want 64", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestStaticNormalized(t *testing.T) {
	g := NewStaticGateway(32)

	vec, err := g.Embed(context.Background(), "translate legal documents")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", norm)
	}
}

func TestStaticSharedTokensScoreCloser(t *testing.T) {
	g := NewStaticGateway(64)
	ctx := context.Background()

	q, _ := g.Embed(ctx, "summarize quarterly reports")
	near, _ := g.Embed(ctx, "summarize annual reports")
	far, _ := g.Embed(ctx, "route network packets")

	if cos(q, near) <= cos(q, far) {
		t.Errorf("expected overlapping text to score higher: near=%v far=%v", cos(q, near), cos(q, far))
	}
}

func TestStaticUnavailable(t *testing.T) {
	g := NewStaticGateway(16)
	g.SetUnavailable(true)

	if _, err := g.Embed(context.Background(), "anything"); err != ErrUnavailable {
		t.Errorf("Embed = %v, want ErrUnavailable", err)
	}

	g.SetUnavailable(false)
	if _, err := g.Embed(context.Background(), "anything"); err != nil {
		t.Errorf("Embed after reset = %v", err)
	}
}

func cos(a, b []float32) float64 {
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
