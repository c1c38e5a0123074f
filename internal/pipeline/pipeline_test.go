package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quarrylabs/quarry/internal/chunker"
	"github.com/quarrylabs/quarry/internal/embedding"
	"github.com/quarrylabs/quarry/internal/extract"
	"github.com/quarrylabs/quarry/internal/index"
	"github.com/quarrylabs/quarry/internal/index/dense"
	"github.com/quarrylabs/quarry/internal/index/lexical"
	"github.com/quarrylabs/quarry/internal/index/structured"
	"github.com/quarrylabs/quarry/internal/models"
	"github.com/quarrylabs/quarry/internal/retriever"
	"github.com/quarrylabs/quarry/internal/storage"
)

const reviewDoc = `# Financial Review

Revenue increased strongly this year. Margins improved across all segments.

Line Item	FY2024	FY2025
Net revenue	1200	1450
Operating income	300	410

Cash flow from operations remained robust. The balance sheet stays healthy.
`

// newTestPipeline wires real backends in temp dirs with the mock embedder.
// extraBackends are appended after the standard three.
func newTestPipeline(t *testing.T, extraBackends ...index.Backend) (*Pipeline, storage.Storage) {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "quarry.db"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	lex, err := lexical.New(filepath.Join(dir, "lexical.bleve"))
	if err != nil {
		t.Fatalf("lexical: %v", err)
	}
	den, err := dense.New(embedding.NewMockEmbedder(32), "")
	if err != nil {
		t.Fatalf("dense: %v", err)
	}
	str, err := structured.New(filepath.Join(dir, "rows.db"))
	if err != nil {
		t.Fatalf("structured: %v", err)
	}
	backends := append([]index.Backend{lex, den, str}, extraBackends...)

	ch, err := chunker.New(chunker.Policy{
		TargetTokens:   20,
		OverlapTokens:  5,
		MaxTableTokens: 30,
		TableSplit:     chunker.TableSplitByRow,
	})
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	ret := retriever.New(backends, store, retriever.Options{CollapseTables: true}, nil)
	p := New(store, backends, extract.NewExtractor(), ch, ret, nil)
	t.Cleanup(func() { _ = p.Close() })
	return p, store
}

func TestIngestAndQuery(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	docID, chunks, err := p.IngestBytes(ctx, "review.txt", []byte(reviewDoc))
	if err != nil {
		t.Fatalf("IngestBytes: %v", err)
	}
	if chunks == 0 {
		t.Fatal("no chunks produced")
	}
	if p.State(docID) != StateComplete {
		t.Errorf("state = %q, want complete", p.State(docID))
	}

	doc, err := store.GetDocument(ctx, docID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.PageCount != 1 {
		t.Errorf("page count = %d, want 1", doc.PageCount)
	}

	resp, err := p.Query(ctx, &models.Query{Text: "net revenue", TopK: 5})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("no results for \"net revenue\"")
	}
	if len(resp.DegradedIndexes) != 0 {
		t.Errorf("degraded = %v on a healthy pipeline", resp.DegradedIndexes)
	}
	top := resp.Results[0]
	if top.Citation.DocumentID != docID {
		t.Errorf("citation document = %q, want %q", top.Citation.DocumentID, docID)
	}
	if top.Citation.PageNumber != 1 {
		t.Errorf("citation page = %d, want 1", top.Citation.PageNumber)
	}
	if top.Citation.Confidence != 1.0 {
		t.Errorf("confidence = %v", top.Citation.Confidence)
	}
	if !strings.HasPrefix(top.ChunkID, docID+"#") {
		t.Errorf("chunk ID %q not derived from document ID", top.ChunkID)
	}
}

func TestReingestReplacesDocument(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	long := "# Report\n\n" + strings.Repeat("Alpha beta gamma delta epsilon sentence here now. ", 20) +
		"\n\nThe word zymurgy appears only in the first version."
	docID, firstCount, err := p.IngestBytes(ctx, "report.txt", []byte(long))
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	short := "# Report\n\nOnly a small replacement paragraph remains now."
	docID2, secondCount, err := p.IngestBytes(ctx, "report.txt", []byte(short))
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if docID2 != docID {
		t.Fatalf("re-ingest produced a new document ID: %q vs %q", docID2, docID)
	}
	if secondCount >= firstCount {
		t.Fatalf("expected fewer chunks after re-ingest: %d -> %d", firstCount, secondCount)
	}

	count, err := store.CountChunks(ctx)
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}
	if int(count) != secondCount {
		t.Errorf("stored chunks = %d, want %d (no stale chunks)", count, secondCount)
	}

	// Content only in the first version must be gone from every index.
	resp, err := p.Query(ctx, &models.Query{Text: "zymurgy", TopK: 5})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, res := range resp.Results {
		if strings.Contains(res.ChunkText, "zymurgy") {
			t.Error("stale chunk from the previous version is still retrievable")
		}
	}
}

// failingBackend accepts nothing; every write fails.
type failingBackend struct{}

func (f *failingBackend) Name() string { return "failing" }

func (f *failingBackend) Index(ctx context.Context, chunks []*models.Chunk) error {
	return errors.New("disk full")
}

func (f *failingBackend) Remove(ctx context.Context, documentID string) error { return nil }

func (f *failingBackend) Search(ctx context.Context, query models.Query, k int) ([]index.Hit, error) {
	return nil, errors.New("unavailable")
}

func (f *failingBackend) Close() error { return nil }

func TestIngestRollsBackOnIndexFailure(t *testing.T) {
	p, store := newTestPipeline(t, &failingBackend{})
	ctx := context.Background()

	docID, _, err := p.IngestBytes(ctx, "review.txt", []byte(reviewDoc))
	if err == nil {
		t.Fatal("expected ingestion to fail")
	}
	var ingErr *IngestError
	if !errors.As(err, &ingErr) {
		t.Fatalf("err type %T, want *IngestError", err)
	}
	if ingErr.Stage != StateIndexing {
		t.Errorf("failed stage = %q, want indexing", ingErr.Stage)
	}
	if p.State(docID) != StateFailed {
		t.Errorf("state = %q, want failed", p.State(docID))
	}

	// Nothing of the failed ingestion is visible anywhere.
	docs, _ := store.CountDocuments(ctx)
	chunks, _ := store.CountChunks(ctx)
	if docs != 0 || chunks != 0 {
		t.Errorf("rollback left %d docs, %d chunks in storage", docs, chunks)
	}
}

func TestDeleteDocumentRemovesEverywhere(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	docID, _, err := p.IngestBytes(ctx, "review.txt", []byte(reviewDoc))
	if err != nil {
		t.Fatalf("IngestBytes: %v", err)
	}
	if err := p.DeleteDocument(ctx, docID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	docs, _ := store.CountDocuments(ctx)
	chunks, _ := store.CountChunks(ctx)
	if docs != 0 || chunks != 0 {
		t.Errorf("delete left %d docs, %d chunks", docs, chunks)
	}
	resp, err := p.Query(ctx, &models.Query{Text: "net revenue", TopK: 5})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("deleted document still retrievable: %d results", len(resp.Results))
	}
	// Deletion is idempotent.
	if err := p.DeleteDocument(ctx, docID); err != nil {
		t.Errorf("repeated delete: %v", err)
	}
}

// searchFailBackend indexes fine but cannot serve queries, like a dense
// index whose embedding service is down at query time.
type searchFailBackend struct{}

func (f *searchFailBackend) Name() string { return "flaky" }

func (f *searchFailBackend) Index(ctx context.Context, chunks []*models.Chunk) error { return nil }

func (f *searchFailBackend) Remove(ctx context.Context, documentID string) error { return nil }

func (f *searchFailBackend) Search(ctx context.Context, query models.Query, k int) ([]index.Hit, error) {
	return nil, errors.New("embedding service down")
}

func (f *searchFailBackend) Close() error { return nil }

func TestQueryReportsDegradedIndexes(t *testing.T) {
	p, _ := newTestPipeline(t, &searchFailBackend{})
	ctx := context.Background()

	if _, _, err := p.IngestBytes(ctx, "review.txt", []byte(reviewDoc)); err != nil {
		t.Fatalf("IngestBytes: %v", err)
	}
	resp, err := p.Query(ctx, &models.Query{Text: "revenue", TopK: 5})
	if err != nil {
		t.Fatalf("Query should degrade, not fail: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("healthy backends produced no results")
	}
	if len(resp.DegradedIndexes) != 1 || resp.DegradedIndexes[0] != "flaky" {
		t.Errorf("degraded = %v, want [flaky]", resp.DegradedIndexes)
	}
}

// zeroPageStore serves documents with a zero page count, which makes every
// citation fail its range check.
type zeroPageStore struct {
	storage.Storage
}

func (s *zeroPageStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.Storage.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.PageCount = 0
	return doc, nil
}

func TestQueryReportsDroppedResults(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "quarry.db"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	lex, err := lexical.New(filepath.Join(dir, "lexical.bleve"))
	if err != nil {
		t.Fatalf("lexical: %v", err)
	}
	backends := []index.Backend{lex}
	ch, err := chunker.New(chunker.Policy{
		TargetTokens:   20,
		OverlapTokens:  5,
		MaxTableTokens: 30,
		TableSplit:     chunker.TableSplitByRow,
	})
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	wrapped := &zeroPageStore{Storage: store}
	ret := retriever.New(backends, wrapped, retriever.Options{}, nil)
	p := New(wrapped, backends, extract.NewExtractor(), ch, ret, nil)
	t.Cleanup(func() { _ = p.Close() })
	ctx := context.Background()

	if _, _, err := p.IngestBytes(ctx, "review.txt", []byte(reviewDoc)); err != nil {
		t.Fatalf("IngestBytes: %v", err)
	}
	resp, err := p.Query(ctx, &models.Query{Text: "net revenue", TopK: 5})
	if err != nil {
		t.Fatalf("attribution failures must degrade, not fail: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("unattributable chunks returned: %d results", len(resp.Results))
	}
	if resp.DroppedResults == 0 {
		t.Error("dropped results not surfaced in the response")
	}
}

func TestStatusCounts(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()
	if _, _, err := p.IngestBytes(ctx, "review.txt", []byte(reviewDoc)); err != nil {
		t.Fatalf("IngestBytes: %v", err)
	}
	status, err := p.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Documents != 1 {
		t.Errorf("documents = %d, want 1", status.Documents)
	}
	if status.Chunks == 0 {
		t.Error("chunks = 0")
	}
	if len(status.Indexes) != 3 {
		t.Errorf("indexes = %v, want 3 backends", status.Indexes)
	}
}

func TestIngestRejectsEmptyContent(t *testing.T) {
	p, _ := newTestPipeline(t)
	if _, _, err := p.IngestBytes(context.Background(), "empty.txt", []byte("   \n\n  ")); err == nil {
		t.Error("expected error for content with no extractable elements")
	}
}
