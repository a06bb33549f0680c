package domain

import "context"

// Chunker splits a document into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus; Prepare is
// called once per index build with every chunk text before any Embed call of
// that build.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	// Dimension returns the vector size, or 0 while it is not yet known.
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}
