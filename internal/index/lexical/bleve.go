// Package lexical provides the Bleve (BM25-style term scoring) chunk index.
package lexical

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/quarrylabs/quarry/internal/index"
	"github.com/quarrylabs/quarry/internal/models"
)

// removeBatchSize bounds how many chunk entries one deletion query pages
// through at a time.
const removeBatchSize = 1000

// chunkDoc is the shape indexed per chunk.
type chunkDoc struct {
	Text       string `json:"text"`
	Section    string `json:"section"`
	DocumentID string `json:"document_id"`
}

// Index implements index.Backend using Bleve.
type Index struct {
	index bleve.Index
}

// New creates or opens a Bleve index at path. An existing index is opened
// and reused. If the mapping changes in code, remove the index directory to
// force a full re-index.
func New(path string) (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so financial
	// terms like "EBITDA" or "Q4" match exactly as written.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("section", textFieldMapping)
	docIDFieldMapping := bleve.NewTextFieldMapping()
	docIDFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("document_id", docIDFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: idx}, nil
}

// Name returns the backend name.
func (b *Index) Name() string {
	return index.Lexical
}

// Index indexes chunks in one batch. Bleve replaces entries with the same ID,
// so re-indexing a chunk ID is idempotent.
func (b *Index) Index(ctx context.Context, chunks []*models.Chunk) error {
	batch := b.index.NewBatch()
	for _, ch := range chunks {
		doc := chunkDoc{Text: ch.Text, Section: ch.SectionTitle, DocumentID: ch.DocumentID}
		if err := batch.Index(ch.ID, doc); err != nil {
			return &index.IndexingError{Backend: index.Lexical, Err: err}
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return &index.IndexingError{Backend: index.Lexical, Err: err}
	}
	return nil
}

// Remove deletes every chunk entry owned by documentID. Pages through
// matches until none remain, so a retried removal is a no-op.
func (b *Index) Remove(ctx context.Context, documentID string) error {
	for {
		q := bleve.NewTermQuery(documentID)
		q.SetField("document_id")
		req := bleve.NewSearchRequest(q)
		req.Size = removeBatchSize
		results, err := b.index.Search(req)
		if err != nil {
			return fmt.Errorf("lexical removal query: %w", err)
		}
		if len(results.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("lexical removal batch: %w", err)
		}
	}
}

// Search runs a match query over text and section and returns up to k raw-
// scored hits. Scores are Bleve's tf-idf scale; not comparable across
// backends.
func (b *Index) Search(ctx context.Context, query models.Query, k int) ([]index.Hit, error) {
	q := bleve.NewMatchQuery(query.Text)
	req := bleve.NewSearchRequest(q)
	req.Size = k
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	hits := make([]index.Hit, len(results.Hits))
	for i, hit := range results.Hits {
		hits[i] = index.Hit{ChunkID: hit.ID, Score: hit.Score}
	}
	return hits, nil
}

// Close closes the Bleve index.
func (b *Index) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of chunk entries in the index.
func (b *Index) DocCount() (uint64, error) {
	return b.index.DocCount()
}
