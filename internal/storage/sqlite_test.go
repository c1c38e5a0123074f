package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/quarrylabs/quarry/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "quarry.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeChunk(id, docID string, index, page int) *models.Chunk {
	return &models.Chunk{
		ID:          id,
		DocumentID:  docID,
		Text:        "chunk text",
		TokenCount:  2,
		PageNumber:  page,
		ElementType: models.ElementParagraph,
		ChunkIndex:  index,
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	doc := &models.Document{ID: "doc1", Filename: "annual.pdf", PageCount: 120}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	got, err := s.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Filename != "annual.pdf" || got.PageCount != 120 {
		t.Errorf("got %+v", got)
	}
	if got.IngestedAt.IsZero() {
		t.Error("IngestedAt not set")
	}
	if _, err := s.GetDocument(ctx, "missing"); err == nil {
		t.Error("expected error for unknown document")
	}
}

func TestChunkRoundTripWithOptionalFields(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	if err := s.CreateDocument(ctx, &models.Document{ID: "doc1", Filename: "f.pdf", PageCount: 9}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	ch := makeChunk("doc1#0002", "doc1", 2, 4)
	ch.SectionTitle = "Segment Results"
	ch.ParentChunkID = "doc1#0001"
	ch.OverlapTokens = 5
	if err := s.BatchCreateChunks(ctx, []*models.Chunk{ch}); err != nil {
		t.Fatalf("BatchCreateChunks: %v", err)
	}
	got, err := s.GetChunk(ctx, "doc1#0002")
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if got.SectionTitle != "Segment Results" || got.ParentChunkID != "doc1#0001" {
		t.Errorf("optional fields lost: %+v", got)
	}
	if got.PageNumber != 4 || got.OverlapTokens != 5 {
		t.Errorf("provenance fields lost: %+v", got)
	}

	// Empty optional fields come back empty, not "null".
	bare := makeChunk("doc1#0003", "doc1", 3, 5)
	if err := s.BatchCreateChunks(ctx, []*models.Chunk{bare}); err != nil {
		t.Fatalf("BatchCreateChunks: %v", err)
	}
	got, err = s.GetChunk(ctx, "doc1#0003")
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if got.SectionTitle != "" || got.ParentChunkID != "" {
		t.Errorf("empty optionals mangled: %+v", got)
	}
}

func TestBatchCreateChunksReplacesExistingIDs(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	_ = s.CreateDocument(ctx, &models.Document{ID: "doc1", Filename: "f.pdf", PageCount: 3})

	ch := makeChunk("doc1#0000", "doc1", 0, 1)
	if err := s.BatchCreateChunks(ctx, []*models.Chunk{ch}); err != nil {
		t.Fatalf("BatchCreateChunks: %v", err)
	}
	ch.Text = "updated text"
	if err := s.BatchCreateChunks(ctx, []*models.Chunk{ch}); err != nil {
		t.Fatalf("second BatchCreateChunks: %v", err)
	}
	count, err := s.CountChunks(ctx)
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (replace, not duplicate)", count)
	}
	got, _ := s.GetChunk(ctx, "doc1#0000")
	if got.Text != "updated text" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestGetChunksByDocumentIDOrdered(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	_ = s.CreateDocument(ctx, &models.Document{ID: "doc1", Filename: "f.pdf", PageCount: 3})
	chunks := []*models.Chunk{
		makeChunk("doc1#0002", "doc1", 2, 3),
		makeChunk("doc1#0000", "doc1", 0, 1),
		makeChunk("doc1#0001", "doc1", 1, 2),
	}
	if err := s.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatalf("BatchCreateChunks: %v", err)
	}
	got, err := s.GetChunksByDocumentID(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetChunksByDocumentID: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d chunks", len(got))
	}
	for i, ch := range got {
		if ch.ChunkIndex != i {
			t.Errorf("position %d holds chunk index %d", i, ch.ChunkIndex)
		}
	}
}

func TestDeleteChunksAndDocument(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	_ = s.CreateDocument(ctx, &models.Document{ID: "doc1", Filename: "f.pdf", PageCount: 3})
	_ = s.CreateDocument(ctx, &models.Document{ID: "doc2", Filename: "g.pdf", PageCount: 3})
	_ = s.BatchCreateChunks(ctx, []*models.Chunk{
		makeChunk("doc1#0000", "doc1", 0, 1),
		makeChunk("doc2#0000", "doc2", 0, 1),
	})

	if err := s.DeleteChunksByDocumentID(ctx, "doc1"); err != nil {
		t.Fatalf("DeleteChunksByDocumentID: %v", err)
	}
	if err := s.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	docs, _ := s.CountDocuments(ctx)
	chunks, _ := s.CountChunks(ctx)
	if docs != 1 || chunks != 1 {
		t.Errorf("counts = %d docs, %d chunks; want 1, 1", docs, chunks)
	}
	// Idempotent.
	if err := s.DeleteChunksByDocumentID(ctx, "doc1"); err != nil {
		t.Errorf("repeated delete: %v", err)
	}
	if err := s.DeleteDocument(ctx, "doc1"); err != nil {
		t.Errorf("repeated delete: %v", err)
	}
}

func TestListDocumentsPagination(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := s.CreateDocument(ctx, &models.Document{ID: id, Filename: id + ".pdf", PageCount: 1}); err != nil {
			t.Fatalf("CreateDocument: %v", err)
		}
	}
	docs, err := s.ListDocuments(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("page size = %d, want 2", len(docs))
	}
	rest, err := s.ListDocuments(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListDocuments offset: %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("second page size = %d, want 1", len(rest))
	}
}
