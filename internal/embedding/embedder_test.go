package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ragcore/internal/config"
	"ragcore/internal/domain"
)

type fakeEmbedder struct {
	dim   int
	vec   []float64
	err   error
	delay time.Duration
	// ignoreCtx makes Embed sleep without watching the context.
	ignoreCtx bool
}

func (f *fakeEmbedder) Name() string                  { return "fake" }
func (f *fakeEmbedder) Prepare(corpus []string) error { return f.err }
func (f *fakeEmbedder) Dimension() int                { return f.dim }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.delay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.delay)
		} else {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.delay):
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func TestGuardPassesValidVector(t *testing.T) {
	g := NewGuard(&fakeEmbedder{vec: []float64{0.6, 0.8}}, 2, time.Second)
	v, err := g.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 2 {
		t.Fatalf("unexpected vector %v", v)
	}
}

func TestGuardTimeout(t *testing.T) {
	g := NewGuard(&fakeEmbedder{vec: []float64{1}, delay: 2 * time.Second, ignoreCtx: true}, 0, 20*time.Millisecond)
	start := time.Now()
	_, err := g.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected ErrEmbeddingFailure, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("guard waited %s for a hung provider", elapsed)
	}
}

func TestGuardRejectsBadVectors(t *testing.T) {
	cases := map[string]struct {
		dim int
		vec []float64
	}{
		"empty":     {dim: 0, vec: nil},
		"nan":       {dim: 0, vec: []float64{math.NaN(), 1}},
		"inf":       {dim: 0, vec: []float64{math.Inf(1)}},
		"dimension": {dim: 3, vec: []float64{1, 0}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			g := NewGuard(&fakeEmbedder{vec: tc.vec}, tc.dim, time.Second)
			if _, err := g.Embed(context.Background(), "x"); !errors.Is(err, domain.ErrEmbeddingFailure) {
				t.Fatalf("expected ErrEmbeddingFailure, got %v", err)
			}
		})
	}
}

func TestGuardLearnsDimension(t *testing.T) {
	f := &fakeEmbedder{vec: []float64{1, 0, 0}}
	g := NewGuard(f, 0, time.Second)
	if _, err := g.Embed(context.Background(), "a"); err != nil {
		t.Fatalf("first Embed: %v", err)
	}
	if g.Dimension() != 3 {
		t.Fatalf("expected learned dimension 3, got %d", g.Dimension())
	}
	f.vec = []float64{1, 0}
	if _, err := g.Embed(context.Background(), "b"); !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestGuardWrapsProviderErrors(t *testing.T) {
	boom := errors.New("boom")
	g := NewGuard(&fakeEmbedder{err: boom}, 0, time.Second)
	_, err := g.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingFailure) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
	if err := g.Prepare([]string{"x"}); !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected Prepare failure, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float64{3, 4})
	if math.Abs(v[0]-0.6) > 1e-12 || math.Abs(v[1]-0.8) > 1e-12 {
		t.Fatalf("unexpected %v", v)
	}
	z := Normalize([]float64{0, 0})
	if z[0] != 0 || z[1] != 0 {
		t.Fatalf("zero vector changed: %v", z)
	}
	if d := Dot(v, v); math.Abs(d-1) > 1e-12 {
		t.Fatalf("unit vector dot itself = %f", d)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	g, err := New(config.EmbedderConfig{Type: "tfidf", TimeoutMS: 100})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.Name() != "tfidf" {
		t.Fatalf("unexpected provider %s", g.Name())
	}

	t.Setenv("RAGCORE_TEST_KEY", "")
	_, err = New(config.EmbedderConfig{Type: "openai", OpenAI: &config.OpenAIEmbedderConfig{APIKeyEnv: "RAGCORE_TEST_KEY"}})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing key, got %v", err)
	}

	if _, err := New(config.EmbedderConfig{Type: "word2vec"}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
