package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"ragcore/internal/domain"
	"ragcore/internal/embedding"
	"ragcore/internal/vectorstore"
)

// BuildOptions tunes index construction.
type BuildOptions struct {
	// Concurrency bounds parallel Embed calls. Values below 1 mean 1.
	Concurrency int
	// Progress, when set, is called after each chunk is embedded with the
	// number of chunks done so far. It may be called from several goroutines.
	Progress func(done, total int)
}

// Index is an exact in-memory vector index using brute-force cosine similarity.
// It is never modified after Build returns.
type Index struct {
	dimension int
	entries   []domain.EmbeddedChunk
}

var _ vectorstore.Index = (*Index)(nil)

// Build prepares the embedder on the chunk texts, embeds every chunk and
// stores its unit-length vector. Any provider error or dimension mismatch
// fails the whole build; no partial index is returned.
func Build(ctx context.Context, chunks []domain.Chunk, embedder domain.Embedder, opts BuildOptions) (*Index, error) {
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyDocument
	}
	corpus := make([]string, len(chunks))
	for i, c := range chunks {
		corpus[i] = c.Text
	}
	if err := embedder.Prepare(corpus); err != nil {
		return nil, wrapEmbedding(err)
	}

	vectors := make([][]float64, len(chunks))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i := range chunks {
		g.Go(func() error {
			v, err := embedder.Embed(gctx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", chunks[i].ID, err)
			}
			vectors[i] = v
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), len(chunks))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, wrapEmbedding(err)
	}

	dim := len(vectors[0])
	entries := make([]domain.EmbeddedChunk, len(chunks))
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: chunk %d has dimension %d, want %d", domain.ErrEmbeddingFailure, chunks[i].ID, len(v), dim)
		}
		entries[i] = domain.EmbeddedChunk{Chunk: chunks[i], Vector: embedding.Normalize(v)}
	}
	return &Index{dimension: dim, entries: entries}, nil
}

func wrapEmbedding(err error) error {
	if errors.Is(err, domain.ErrEmbeddingFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.entries) }

// Dimension returns the vector size of the index.
func (ix *Index) Dimension() int { return ix.dimension }

// Chunks returns the indexed chunks in id order.
func (ix *Index) Chunks() []domain.Chunk {
	out := make([]domain.Chunk, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = e.Chunk
	}
	return out
}

// Entries returns a copy of the indexed chunks and their vectors.
func (ix *Index) Entries() []domain.EmbeddedChunk {
	out := make([]domain.EmbeddedChunk, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = domain.EmbeddedChunk{Chunk: e.Chunk, Vector: append([]float64(nil), e.Vector...)}
	}
	return out
}

// Search normalizes the query and scores it against every stored vector.
func (ix *Index) Search(query []float64, k int) ([]domain.ScoredChunk, error) {
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", domain.ErrEmbeddingFailure, len(query), ix.dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	q := embedding.Normalize(query)
	scored := make([]domain.ScoredChunk, len(ix.entries))
	for i, e := range ix.entries {
		scored[i] = domain.ScoredChunk{Chunk: e.Chunk, Score: embedding.Dot(e.Vector, q)}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}
