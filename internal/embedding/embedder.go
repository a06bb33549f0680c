package embedding

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"ragcore/internal/domain"
)

const DefaultTimeout = 5 * time.Second

// Guard wraps an Embedder with a per-call timeout and output validation.
// Every failure it returns wraps domain.ErrEmbeddingFailure.
//
// The expected dimension is the configured one when non-zero, otherwise the
// provider's own Dimension after Prepare, otherwise the length of the first
// vector observed.
type Guard struct {
	inner      domain.Embedder
	timeout    time.Duration
	configured int
	learned    atomic.Int64
}

func NewGuard(inner domain.Embedder, dimension int, timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if dimension < 0 {
		dimension = 0
	}
	return &Guard{inner: inner, timeout: timeout, configured: dimension}
}

// Name returns the identifier of the wrapped embedder.
func (g *Guard) Name() string { return g.inner.Name() }

// Unwrap returns the wrapped embedder.
func (g *Guard) Unwrap() domain.Embedder { return g.inner }

// Prepare forwards the corpus and resets the learned dimension.
func (g *Guard) Prepare(corpus []string) error {
	if err := g.inner.Prepare(corpus); err != nil {
		return fmt.Errorf("%w: %s prepare: %w", domain.ErrEmbeddingFailure, g.inner.Name(), err)
	}
	g.learned.Store(int64(g.inner.Dimension()))
	return nil
}

// Dimension returns the dimension every vector must have, or 0 if unknown.
func (g *Guard) Dimension() int {
	if g.configured > 0 {
		return g.configured
	}
	if d := g.learned.Load(); d > 0 {
		return int(d)
	}
	return g.inner.Dimension()
}

type embedResult struct {
	vec []float64
	err error
}

// Embed calls the wrapped embedder in its own goroutine so that a provider
// ignoring its context still cannot hold the caller past the timeout.
func (g *Guard) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan embedResult, 1)
	go func() {
		v, err := g.inner.Embed(ctx, text)
		done <- embedResult{vec: v, err: err}
	}()

	var r embedResult
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrEmbeddingFailure, g.inner.Name(), ctx.Err())
	case r = <-done:
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrEmbeddingFailure, g.inner.Name(), r.err)
	}
	if err := g.validate(r.vec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEmbeddingFailure, g.inner.Name(), err)
	}
	return r.vec, nil
}

func (g *Guard) validate(vec []float64) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector")
	}
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value at position %d", i)
		}
	}
	want := g.Dimension()
	if want == 0 {
		if g.learned.CompareAndSwap(0, int64(len(vec))) {
			return nil
		}
		want = int(g.learned.Load())
	}
	if len(vec) != want {
		return fmt.Errorf("dimension mismatch: got %d, want %d", len(vec), want)
	}
	return nil
}

// Normalize returns a unit-length copy of v. A zero vector is returned as a
// zero copy since it has no direction.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// Dot returns the inner product of two vectors of equal length.
func Dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
