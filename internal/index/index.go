// Package index defines the backend interface every retrievable index
// implements. Backends are injected into the retriever and pipeline; each
// owns its own concurrency discipline and score scale. Cross-index score
// normalization is the retriever's job, never the backend's.
package index

import (
	"context"
	"fmt"

	"github.com/quarrylabs/quarry/internal/models"
)

// Well-known backend names.
const (
	Lexical    = "lexical"
	Dense      = "dense"
	Structured = "structured"
)

// Hit is one raw-scored result from a single backend.
type Hit struct {
	ChunkID string
	Score   float64
}

// Backend is one retrievable index over chunks.
//
// Index is idempotent per chunk ID: re-indexing an existing ID replaces its
// entry. Remove deletes every entry owned by a document and must be safe to
// retry, so the pipeline's two-phase cleanup can re-run it after a partial
// failure.
type Backend interface {
	Name() string
	Index(ctx context.Context, chunks []*models.Chunk) error
	Remove(ctx context.Context, documentID string) error
	Search(ctx context.Context, query models.Query, k int) ([]Hit, error)
	Close() error
}

// IndexingError reports a backend write failure. Retryable.
type IndexingError struct {
	Backend string
	Err     error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("indexing into %s: %v", e.Backend, e.Err)
}

func (e *IndexingError) Unwrap() error {
	return e.Err
}
