package models

import "time"

// Chunk is the unit stored and retrieved. PageNumber is the page of the first
// source element the chunk contains, carried through unchanged from the
// Element; it is never recomputed from text position.
type Chunk struct {
	ID            string      `json:"id" db:"id"`
	DocumentID    string      `json:"document_id" db:"document_id"`
	Text          string      `json:"text" db:"text"`
	TokenCount    int         `json:"token_count" db:"token_count"`
	PageNumber    int         `json:"page_number" db:"page_number"`
	ElementType   ElementType `json:"element_type" db:"element_type"`
	SectionTitle  string      `json:"section_title,omitempty" db:"section_title"`
	ParentChunkID string      `json:"parent_chunk_id,omitempty" db:"parent_chunk_id"`
	ChunkIndex    int         `json:"chunk_index" db:"chunk_index"`
	// OverlapTokens is the number of leading tokens repeated from the previous
	// chunk. Subtracting them reconstructs the element stream losslessly.
	OverlapTokens int       `json:"overlap_tokens,omitempty" db:"overlap_tokens"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
