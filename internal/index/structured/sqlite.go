// Package structured provides the optional key/value table-row index. Table
// chunks are decomposed into labeled rows (first cell is the row label, e.g.
// "Net revenue"), so queries naming a line item hit the exact row.
package structured

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quarrylabs/quarry/internal/index"
	"github.com/quarrylabs/quarry/internal/models"
)

// Index implements index.Backend over a SQLite table of labeled rows.
type Index struct {
	db *sql.DB
}

// New opens or creates the row index database at dbPath.
func New(dbPath string) (*Index, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open row index: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS table_rows (
		chunk_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		row_label TEXT NOT NULL,
		row_text TEXT NOT NULL,
		PRIMARY KEY (chunk_id, row_label, row_text)
	);
	CREATE INDEX IF NOT EXISTS idx_rows_document ON table_rows(document_id);
	CREATE INDEX IF NOT EXISTS idx_rows_label ON table_rows(row_label);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize row index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Name returns the backend name.
func (s *Index) Name() string {
	return index.Structured
}

// Index stores one row per table line. Existing rows for a chunk are
// replaced first, so re-indexing a chunk ID is idempotent. Non-table chunks
// are skipped; this backend only answers row-label queries.
func (s *Index) Index(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &index.IndexingError{Backend: index.Structured, Err: err}
	}
	defer tx.Rollback()

	del, err := tx.PrepareContext(ctx, `DELETE FROM table_rows WHERE chunk_id = ?`)
	if err != nil {
		return &index.IndexingError{Backend: index.Structured, Err: err}
	}
	defer del.Close()
	ins, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO table_rows (chunk_id, document_id, row_label, row_text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return &index.IndexingError{Backend: index.Structured, Err: err}
	}
	defer ins.Close()

	for _, ch := range chunks {
		if ch.ElementType != models.ElementTable {
			continue
		}
		if _, err := del.ExecContext(ctx, ch.ID); err != nil {
			return &index.IndexingError{Backend: index.Structured, Err: err}
		}
		for _, line := range strings.Split(ch.Text, "\n") {
			label, text := splitRow(line)
			if label == "" {
				continue
			}
			if _, err := ins.ExecContext(ctx, ch.ID, ch.DocumentID, label, text); err != nil {
				return &index.IndexingError{Backend: index.Structured, Err: err}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return &index.IndexingError{Backend: index.Structured, Err: err}
	}
	return nil
}

// splitRow returns the lowercased row label (first cell) and the full row
// text. Lines without a tab or multi-space separator still index under their
// whole text as label.
func splitRow(line string) (label, text string) {
	text = strings.TrimSpace(line)
	if text == "" {
		return "", ""
	}
	cells := strings.FieldsFunc(text, func(r rune) bool { return r == '\t' })
	if len(cells) == 0 {
		return "", ""
	}
	return strings.ToLower(strings.TrimSpace(cells[0])), text
}

// Remove deletes every row owned by documentID. Safe to retry.
func (s *Index) Remove(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM table_rows WHERE document_id = ?`, documentID)
	return err
}

// Search matches query terms against row labels. Score is the fraction of
// query terms found in the label, summed over matching rows of a chunk, so a
// chunk whose labels cover more of the query ranks higher. Raw scale; the
// retriever normalizes.
func (s *Index) Search(ctx context.Context, query models.Query, k int) ([]index.Hit, error) {
	terms := strings.Fields(strings.ToLower(query.Text))
	if len(terms) == 0 {
		return nil, nil
	}
	scores := make(map[string]float64)
	for _, term := range terms {
		rows, err := s.db.QueryContext(ctx,
			`SELECT DISTINCT chunk_id FROM table_rows WHERE row_label LIKE ?`, "%"+term+"%")
		if err != nil {
			return nil, fmt.Errorf("row index search: %w", err)
		}
		for rows.Next() {
			var chunkID string
			if err := rows.Scan(&chunkID); err != nil {
				rows.Close()
				return nil, err
			}
			scores[chunkID] += 1.0 / float64(len(terms))
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	hits := make([]index.Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, index.Hit{ChunkID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close closes the database.
func (s *Index) Close() error {
	return s.db.Close()
}
