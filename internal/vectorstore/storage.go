package vectorstore

import "ragcore/internal/domain"

// Index answers similarity queries over embedded chunks. Implementations are
// immutable once built and safe for concurrent Search calls.
type Index interface {
	// Search returns at most k chunks ordered by descending score, ties by
	// ascending chunk id.
	Search(query []float64, k int) ([]domain.ScoredChunk, error)
	Len() int
	Dimension() int
}
