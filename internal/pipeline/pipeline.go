// Package pipeline orchestrates ingestion and query flows across the
// extractor, chunker, storage, and index backends. It owns cross-component
// failure handling; components below it only report errors.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/internal/attribution"
	"github.com/quarrylabs/quarry/internal/chunker"
	"github.com/quarrylabs/quarry/internal/extract"
	"github.com/quarrylabs/quarry/internal/index"
	"github.com/quarrylabs/quarry/internal/retriever"
	"github.com/quarrylabs/quarry/internal/storage"
)

// Ingestion states. A document moves forward only; failed and complete are
// terminal for one ingestion run.
const (
	StatePending      = "pending"
	StateInvalidating = "invalidating"
	StateExtracting   = "extracting"
	StateChunking     = "chunking"
	StateIndexing     = "indexing"
	StateComplete     = "complete"
	StateFailed       = "failed"
)

// IngestError reports which stage an ingestion failed in. By the time it is
// returned, any partial writes have been rolled back.
type IngestError struct {
	DocumentID string
	Stage      string
	Err        error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s failed during %s: %v", e.DocumentID, e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// Pipeline wires the ingestion and query flows together. Safe for concurrent
// use; ingestions of distinct documents run in parallel while a per-document
// lock keeps stages of one document strictly sequential.
type Pipeline struct {
	store     storage.Storage
	backends  []index.Backend
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	retriever *retriever.Retriever
	resolver  *attribution.Resolver
	logger    *zap.Logger

	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
	states   map[string]string
}

// New creates a Pipeline over the given components.
func New(
	store storage.Storage,
	backends []index.Backend,
	extractor *extract.Extractor,
	ch *chunker.Chunker,
	ret *retriever.Retriever,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		backends:  backends,
		extractor: extractor,
		chunker:   ch,
		retriever: ret,
		resolver:  attribution.NewResolver(store),
		logger:    logger,
		docLocks:  make(map[string]*sync.Mutex),
		states:    make(map[string]string),
	}
}

// lockDocument serializes operations on one document ID.
func (p *Pipeline) lockDocument(docID string) func() {
	p.mu.Lock()
	lock, ok := p.docLocks[docID]
	if !ok {
		lock = &sync.Mutex{}
		p.docLocks[docID] = lock
	}
	p.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (p *Pipeline) setState(docID, state string) {
	p.mu.Lock()
	p.states[docID] = state
	p.mu.Unlock()
	p.logger.Debug("ingestion state", zap.String("document_id", docID), zap.String("state", state))
}

// State returns the last recorded ingestion state for a document, or "" if
// the document was never ingested this run.
func (p *Pipeline) State(docID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[docID]
}

// Status is a point-in-time snapshot of the corpus.
type Status struct {
	Documents int64             `json:"documents"`
	Chunks    int64             `json:"chunks"`
	Indexes   []string          `json:"indexes"`
	States    map[string]string `json:"ingestion_states,omitempty"`
}

// Status reports document and chunk counts plus active index names.
func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	docs, err := p.store.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := p.store.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(p.backends))
	for i, b := range p.backends {
		names[i] = b.Name()
	}
	p.mu.Lock()
	states := make(map[string]string, len(p.states))
	for id, s := range p.states {
		states[id] = s
	}
	p.mu.Unlock()
	return &Status{Documents: docs, Chunks: chunks, Indexes: names, States: states}, nil
}

// Close closes every backend and the storage layer.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, b := range p.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := p.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
