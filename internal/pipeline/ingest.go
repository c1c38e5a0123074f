package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/internal/chunkid"
	"github.com/quarrylabs/quarry/internal/models"
)

// IngestFile ingests a document from disk. The document ID is derived from
// the path, so re-ingesting the same file replaces the previous version.
// Returns the document ID and the number of chunks produced.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (string, int, error) {
	docID := chunkid.FileDocID(path)
	extraction, err := p.extractor.Extract(path)
	if err != nil {
		p.setState(docID, StateFailed)
		return docID, 0, &IngestError{DocumentID: docID, Stage: StateExtracting, Err: err}
	}
	n, err := p.ingest(ctx, docID, filepath.Base(path), extraction.Elements, extraction.PageCount, extraction.Validate())
	return docID, n, err
}

// IngestBytes ingests in-memory content, as from an HTTP upload. The document
// ID is derived from the filename, so re-uploading the same name replaces the
// previous version. Anonymous uploads get a random ID and never replace.
func (p *Pipeline) IngestBytes(ctx context.Context, filename string, content []byte) (string, int, error) {
	docID := chunkid.FileDocID(filename)
	if filename == "" {
		docID = "upload:" + uuid.NewString()
	}
	extraction, err := p.extractor.ExtractBytes(content, filepath.Ext(filename))
	if err != nil {
		p.setState(docID, StateFailed)
		return docID, 0, &IngestError{DocumentID: docID, Stage: StateExtracting, Err: err}
	}
	n, err := p.ingest(ctx, docID, filename, extraction.Elements, extraction.PageCount, extraction.Validate())
	return docID, n, err
}

// ingest runs the staged ingestion for one document: invalidate any previous
// version, chunk, persist, then index. Any failure after the first write
// rolls the document back out of storage and every index, so a failed
// ingestion leaves no retrievable trace.
func (p *Pipeline) ingest(ctx context.Context, docID, filename string, elements []models.Element, pageCount int, validationErr error) (int, error) {
	unlock := p.lockDocument(docID)
	defer unlock()

	start := time.Now()
	p.setState(docID, StatePending)

	fail := func(stage string, err error, wrote bool) (int, error) {
		if wrote {
			p.rollback(docID)
		}
		p.setState(docID, StateFailed)
		return 0, &IngestError{DocumentID: docID, Stage: stage, Err: err}
	}

	p.setState(docID, StateExtracting)
	if validationErr != nil {
		return fail(StateExtracting, validationErr, false)
	}
	if len(elements) == 0 {
		return fail(StateExtracting, fmt.Errorf("no extractable content"), false)
	}

	// Re-ingestion: the old version disappears before the new one lands, so
	// no query can mix chunks from both.
	if _, err := p.store.GetDocument(ctx, docID); err == nil {
		p.setState(docID, StateInvalidating)
		if err := p.removeEverywhere(ctx, docID); err != nil {
			return fail(StateInvalidating, err, false)
		}
	}

	p.setState(docID, StateChunking)
	chunks, err := p.chunker.Chunk(docID, elements)
	if err != nil {
		return fail(StateChunking, err, false)
	}

	doc := &models.Document{ID: docID, Filename: filename, PageCount: pageCount}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return fail(StateChunking, err, true)
	}
	if err := p.store.BatchCreateChunks(ctx, chunks); err != nil {
		return fail(StateChunking, err, true)
	}

	p.setState(docID, StateIndexing)
	for _, backend := range p.backends {
		if err := backend.Index(ctx, chunks); err != nil {
			return fail(StateIndexing, err, true)
		}
	}

	p.setState(docID, StateComplete)
	p.logger.Info("document ingested",
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.Int("pages", pageCount),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(start)),
	)
	return len(chunks), nil
}

// DeleteDocument removes a document from storage and every index. Unknown
// IDs are not an error; deletion is idempotent.
func (p *Pipeline) DeleteDocument(ctx context.Context, docID string) error {
	unlock := p.lockDocument(docID)
	defer unlock()
	if err := p.removeEverywhere(ctx, docID); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.states, docID)
	p.mu.Unlock()
	p.logger.Info("document deleted", zap.String("document_id", docID))
	return nil
}

// removeEverywhere deletes a document's entries from all backends and then
// from storage. Index removal goes first: a chunk ID must never be
// retrievable after its metadata is gone.
func (p *Pipeline) removeEverywhere(ctx context.Context, docID string) error {
	for _, backend := range p.backends {
		if err := backend.Remove(ctx, docID); err != nil {
			return fmt.Errorf("remove from %s: %w", backend.Name(), err)
		}
	}
	if err := p.store.DeleteChunksByDocumentID(ctx, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := p.store.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// rollback is best-effort cleanup after a failed ingestion. Each Remove is
// retry-safe, so a rollback that itself fails can be re-run by the next
// ingestion of the same document.
func (p *Pipeline) rollback(docID string) {
	// Fresh context: rollback must run even when the ingest context is
	// already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.removeEverywhere(ctx, docID); err != nil {
		p.logger.Error("rollback incomplete, stale entries possible until re-ingest",
			zap.String("document_id", docID), zap.Error(err))
	}
}
