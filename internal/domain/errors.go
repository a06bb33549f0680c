package domain

import "errors"

var (
	// ErrEmbeddingFailure covers an unreachable provider, a malformed response,
	// a timeout, or a vector of the wrong dimension.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrIndexUnavailable means the vector index was never built or is being built.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrEmptyDocument means chunking produced zero chunks.
	ErrEmptyDocument = errors.New("empty document")
	// ErrInvalidConfig reports out-of-range configuration values.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrEngineClosed is returned by engine operations after Shutdown.
	ErrEngineClosed = errors.New("engine closed")
)
