// Package models defines core data structures for documents, elements, chunks,
// queries, and retrieval results.
package models

import "time"

// Document is the immutable identity of one ingested source file.
// Re-ingestion supersedes a document (all prior chunks and index entries are
// invalidated first); a Document is never edited in place.
type Document struct {
	ID         string    `json:"id" db:"id"`
	Filename   string    `json:"filename" db:"filename"`
	PageCount  int       `json:"page_count" db:"page_count"`
	IngestedAt time.Time `json:"ingested_at" db:"ingested_at"`
}

// ElementType tags the layout role of an extracted element.
type ElementType string

const (
	ElementParagraph ElementType = "paragraph"
	ElementHeader    ElementType = "header"
	ElementTable     ElementType = "table"
	ElementList      ElementType = "list"
)

// Element is one atomic unit produced by the extractor, in document order.
// PageNumber is true source provenance; extractors must never estimate it.
type Element struct {
	Type       ElementType `json:"type"`
	Text       string      `json:"text"`
	PageNumber int         `json:"page_number"`
	OrderIndex int         `json:"order_index"`
	// TableRows holds the cell grid for table elements. Row 0 is the header.
	TableRows [][]string `json:"table_rows,omitempty"`
}
