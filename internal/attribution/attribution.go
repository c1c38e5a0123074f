// Package attribution maps retrieved chunks back to page-accurate citations.
// Citations are derived purely from the provenance metadata stored with each
// chunk at ingestion time; nothing is recomputed from text at query time.
package attribution

import (
	"context"
	"fmt"

	"github.com/quarrylabs/quarry/internal/models"
	"github.com/quarrylabs/quarry/internal/storage"
)

// Error reports a chunk whose provenance could not be resolved to a valid
// citation. This means corrupted or inconsistent metadata; the result is
// dropped rather than returned with a wrong page.
type Error struct {
	ChunkID string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("attribution failed for chunk %s: %s", e.ChunkID, e.Reason)
}

// Resolver turns candidates into attributed results.
type Resolver struct {
	store storage.Storage
}

// NewResolver creates a Resolver backed by the given storage.
func NewResolver(store storage.Storage) *Resolver {
	return &Resolver{store: store}
}

// Resolve builds the citation for a single candidate. The chunk's stored
// page number must fall within its document's page range; anything else is
// an attribution error, never a silently clamped page.
func (r *Resolver) Resolve(ctx context.Context, cand *models.Candidate) (*models.RetrievalResult, error) {
	chunk, err := r.store.GetChunk(ctx, cand.ChunkID)
	if err != nil {
		return nil, &Error{ChunkID: cand.ChunkID, Reason: fmt.Sprintf("chunk not in storage: %v", err)}
	}
	doc, err := r.store.GetDocument(ctx, chunk.DocumentID)
	if err != nil {
		return nil, &Error{ChunkID: cand.ChunkID, Reason: fmt.Sprintf("document %s not in storage: %v", chunk.DocumentID, err)}
	}
	if chunk.PageNumber < 1 || chunk.PageNumber > doc.PageCount {
		return nil, &Error{
			ChunkID: cand.ChunkID,
			Reason:  fmt.Sprintf("page %d outside document range [1,%d]", chunk.PageNumber, doc.PageCount),
		}
	}
	return &models.RetrievalResult{
		ChunkID:    chunk.ID,
		ChunkText:  chunk.Text,
		FusedScore: cand.FusedScore,
		Citation: models.Citation{
			DocumentID:   doc.ID,
			PageNumber:   chunk.PageNumber,
			SectionTitle: chunk.SectionTitle,
			Confidence:   1.0,
		},
	}, nil
}

// ResolveAll attributes a ranked candidate list, preserving order. Candidates
// that fail attribution are dropped and returned separately so the caller
// can log them; a single bad chunk never fails the whole response.
func (r *Resolver) ResolveAll(ctx context.Context, candidates []*models.Candidate) ([]*models.RetrievalResult, []error) {
	results := make([]*models.RetrievalResult, 0, len(candidates))
	var failures []error
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			return results, failures
		}
		res, err := r.Resolve(ctx, cand)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		results = append(results, res)
	}
	return results, failures
}
