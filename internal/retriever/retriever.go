package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/index"
	"github.com/quarrylabs/quarry/internal/models"
)

// ErrNoIndexes means retrieval was attempted with no backend configured or
// all backends failed. Fatal; there is nothing to degrade to.
var ErrNoIndexes = errors.New("no index available for retrieval")

// PartialError records backends that failed during fan-out while at least
// one succeeded. Retrieval proceeds on the surviving backends; callers log
// it and surface the degraded names, they do not abort.
type PartialError struct {
	Failed map[string]error
}

func (e *PartialError) Error() string {
	names := e.Indexes()
	return fmt.Sprintf("retrieval degraded, failed indexes: %s", strings.Join(names, ", "))
}

// Indexes returns the failed backend names, sorted.
func (e *PartialError) Indexes() []string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChunkLookup is the slice of storage the retriever needs to resolve table
// sibling groups.
type ChunkLookup interface {
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
}

// Options tunes fan-out and fusion.
type Options struct {
	// Weights maps backend name to fusion weight; missing names get 1.0.
	Weights map[string]float64
	// CandidateMultiplier times TopK is requested from each backend before
	// fusion, so the fused head isn't starved by single-index truncation.
	CandidateMultiplier int
	// IndexTimeout bounds each backend's search call.
	IndexTimeout time.Duration
	// CollapseTables folds split-table siblings into their best-ranked member.
	CollapseTables bool
}

// OptionsFromConfig builds Options from the retrieval config section.
func OptionsFromConfig(cfg *config.RetrievalConfig) Options {
	return Options{
		Weights:             cfg.IndexWeights,
		CandidateMultiplier: cfg.CandidateMultiplier,
		IndexTimeout:        time.Duration(cfg.IndexTimeoutMillis) * time.Millisecond,
		CollapseTables:      cfg.CollapseTablesOrDefault(),
	}
}

// Retriever fans queries out to its backends concurrently and fuses the
// results. Stateless between calls; safe for concurrent use.
type Retriever struct {
	backends []index.Backend
	chunks   ChunkLookup
	opts     Options
	logger   *zap.Logger
}

// New creates a Retriever over the given backends.
func New(backends []index.Backend, chunks ChunkLookup, opts Options, logger *zap.Logger) *Retriever {
	if opts.CandidateMultiplier <= 0 {
		opts.CandidateMultiplier = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		backends: backends,
		chunks:   chunks,
		opts:     opts,
		logger:   logger,
	}
}

type backendResult struct {
	name string
	hits []index.Hit
	err  error
}

// Retrieve runs the query against every backend, fuses the hits, and returns
// the top TopK candidates with ranks assigned. The returned PartialError is
// non-nil when some backends failed but retrieval still produced results
// from the rest; it has already been logged.
func (r *Retriever) Retrieve(ctx context.Context, query *models.Query) ([]*models.Candidate, *PartialError, error) {
	if err := query.Validate(); err != nil {
		return nil, nil, err
	}
	if len(r.backends) == 0 {
		return nil, nil, ErrNoIndexes
	}

	poolSize := query.TopK * r.opts.CandidateMultiplier
	results := make(chan backendResult, len(r.backends))
	for _, backend := range r.backends {
		go func(b index.Backend) {
			searchCtx := ctx
			if r.opts.IndexTimeout > 0 {
				var cancel context.CancelFunc
				searchCtx, cancel = context.WithTimeout(ctx, r.opts.IndexTimeout)
				defer cancel()
			}
			hits, err := b.Search(searchCtx, *query, poolSize)
			results <- backendResult{name: b.Name(), hits: hits, err: err}
		}(backend)
	}

	perIndex := make(map[string][]index.Hit)
	failed := make(map[string]error)
	for range r.backends {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case res := <-results:
			if res.err != nil {
				failed[res.name] = res.err
				continue
			}
			perIndex[res.name] = res.hits
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if len(perIndex) == 0 {
		return nil, nil, fmt.Errorf("%w: all %d backends failed", ErrNoIndexes, len(failed))
	}

	var partial *PartialError
	if len(failed) > 0 {
		partial = &PartialError{Failed: failed}
		for name, err := range failed {
			r.logger.Warn("index failed during fan-out, continuing degraded",
				zap.String("index", name), zap.Error(err))
		}
	}

	candidates := Fuse(perIndex, r.opts.Weights)
	if r.opts.CollapseTables {
		parentOf, err := r.parentMap(ctx, candidates)
		if err != nil {
			return nil, nil, err
		}
		candidates = CollapseTableGroups(candidates, parentOf)
	}
	if len(candidates) > query.TopK {
		candidates = candidates[:query.TopK]
	}
	for i, c := range candidates {
		c.Rank = i + 1
	}
	return candidates, partial, nil
}

// parentMap resolves each candidate's parent chunk ID from stored metadata.
// A chunk missing from storage (stale index entry) maps to no group and is
// left for attribution to reject.
func (r *Retriever) parentMap(ctx context.Context, candidates []*models.Candidate) (map[string]string, error) {
	parentOf := make(map[string]string, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ch, err := r.chunks.GetChunk(ctx, c.ChunkID)
		if err != nil {
			parentOf[c.ChunkID] = ""
			continue
		}
		parentOf[c.ChunkID] = ch.ParentChunkID
	}
	return parentOf, nil
}
