package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/internal/models"
)

// Query runs the full query flow: retrieve, attribute, respond. Backend
// failures during fan-out and chunks that fail attribution degrade the
// response instead of failing it; only an empty index set or a cancelled
// context is fatal.
func (p *Pipeline) Query(ctx context.Context, query *models.Query) (*models.RetrievalResponse, error) {
	start := time.Now()

	candidates, partial, err := p.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	results, failures := p.resolver.ResolveAll(ctx, candidates)
	for _, ferr := range failures {
		p.logger.Warn("result dropped during attribution", zap.Error(ferr))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &models.RetrievalResponse{
		Results:        results,
		Query:          query.Text,
		QueryTime:      time.Since(start).Milliseconds(),
		DroppedResults: len(failures),
	}
	if partial != nil {
		resp.DegradedIndexes = partial.Indexes()
	}

	p.logger.Info("query answered",
		zap.String("query", query.Text),
		zap.Int("results", len(results)),
		zap.Strings("degraded", resp.DegradedIndexes),
		zap.Duration("took", time.Since(start)),
	)
	return resp, nil
}
