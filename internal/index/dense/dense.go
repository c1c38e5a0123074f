package dense

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/internal/embedding"
	"github.com/quarrylabs/quarry/internal/index"
	"github.com/quarrylabs/quarry/internal/models"
	"github.com/quarrylabs/quarry/pkg/utils"
)

// Backend implements index.Backend over a vector Store fronted by an
// embedder. Query text is embedded at search time; chunk text at index time.
type Backend struct {
	store    *Store
	embedder embedding.Embedder
	path     string
	logger   *zap.Logger

	mu      sync.RWMutex
	skipped map[string]struct{} // chunk IDs whose embedding failed (degraded)
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets a logger for degraded-chunk warnings.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// New creates a dense backend. path is where the store persists between runs
// (empty disables persistence); an existing file is loaded.
func New(embedder embedding.Embedder, path string, opts ...Option) (*Backend, error) {
	store, err := NewStore(embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	if err := store.Load(path); err != nil {
		return nil, fmt.Errorf("load dense index: %w", err)
	}
	b := &Backend{
		store:    store,
		embedder: embedder,
		path:     path,
		skipped:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return index.Dense
}

// Index embeds and stores chunks. An embedding failure after the embedder's
// bounded retries degrades: the chunk's dense entry is marked absent and a
// warning logged, but indexing of the remaining chunks continues.
func (b *Backend) Index(ctx context.Context, chunks []*models.Chunk) error {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = embedText(ch)
	}
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		// Batch failed outright; fall back to per-chunk embedding so one bad
		// chunk doesn't take down the document.
		return b.indexOneByOne(ctx, chunks, texts)
	}
	for _, v := range vectors {
		utils.NormalizeL2(v)
	}
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	if err := b.store.Upsert(ids, vectors); err != nil {
		return &index.IndexingError{Backend: index.Dense, Err: err}
	}
	return nil
}

func (b *Backend) indexOneByOne(ctx context.Context, chunks []*models.Chunk, texts []string) error {
	for i, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		vec, err := b.embedder.Embed(ctx, texts[i])
		if err != nil {
			b.mu.Lock()
			b.skipped[ch.ID] = struct{}{}
			b.mu.Unlock()
			if b.logger != nil {
				b.logger.Warn("dense entry absent after embedding retries",
					zap.String("chunk_id", ch.ID), zap.Error(err))
			}
			continue
		}
		utils.NormalizeL2(vec)
		if err := b.store.Upsert([]string{ch.ID}, [][]float32{vec}); err != nil {
			return &index.IndexingError{Backend: index.Dense, Err: err}
		}
	}
	return nil
}

// embedText prepends chunk metadata (section path) so document-level context
// is baked into the vector at index time instead of joined at query time.
func embedText(ch *models.Chunk) string {
	if ch.SectionTitle == "" {
		return ch.Text
	}
	return ch.SectionTitle + "\n" + ch.Text
}

// Remove drops every vector owned by documentID. Safe to retry.
func (b *Backend) Remove(ctx context.Context, documentID string) error {
	prefix := documentID + "#"
	b.store.RemoveFunc(func(id string) bool {
		return id == documentID || strings.HasPrefix(id, prefix)
	})
	b.mu.Lock()
	for id := range b.skipped {
		if id == documentID || strings.HasPrefix(id, prefix) {
			delete(b.skipped, id)
		}
	}
	b.mu.Unlock()
	return nil
}

// Search embeds the query and returns the top-k chunks by cosine similarity.
func (b *Backend) Search(ctx context.Context, query models.Query, k int) ([]index.Hit, error) {
	vec, err := b.embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	utils.NormalizeL2(vec)
	scored, err := b.store.Search(vec, k)
	if err != nil {
		return nil, err
	}
	hits := make([]index.Hit, len(scored))
	for i, s := range scored {
		hits[i] = index.Hit{ChunkID: s.id, Score: s.score}
	}
	return hits, nil
}

// Size returns the number of stored vectors.
func (b *Backend) Size() int {
	return b.store.Size()
}

// Save persists the store to the configured path.
func (b *Backend) Save() error {
	return b.store.Save(b.path)
}

// Close persists the store and closes the embedder.
func (b *Backend) Close() error {
	if err := b.store.Save(b.path); err != nil {
		return err
	}
	return b.embedder.Close()
}
