package models

// Candidate is one fused retrieval hit. Transient result of a single
// retrieve call.
type Candidate struct {
	ChunkID        string             `json:"chunk_id"`
	PerIndexScores map[string]float64 `json:"per_index_scores"`
	FusedScore     float64            `json:"fused_score"`
	Rank           int                `json:"rank"`
	// SiblingChunkIDs lists other chunks of the same split table that were
	// collapsed into this candidate.
	SiblingChunkIDs []string `json:"sibling_chunk_ids,omitempty"`
}

// Citation maps a chunk back to its source. Derived from the chunk's stored
// metadata at attribution time; never stored independently.
type Citation struct {
	DocumentID   string  `json:"document_id"`
	PageNumber   int     `json:"page_number"`
	SectionTitle string  `json:"section_title,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// RetrievalResult is one attributed result returned to the caller.
type RetrievalResult struct {
	ChunkText  string   `json:"chunk_text"`
	Citation   Citation `json:"citation"`
	FusedScore float64  `json:"fused_score"`
	ChunkID    string   `json:"chunk_id"`
}

// RetrievalResponse is the full response for one query.
type RetrievalResponse struct {
	Results   []*RetrievalResult `json:"results"`
	Query     string             `json:"query"`
	QueryTime int64              `json:"query_time_ms"`
	// DegradedIndexes names backends that failed during fan-out while others
	// succeeded. Empty on a fully healthy retrieval.
	DegradedIndexes []string `json:"degraded_indexes,omitempty"`
	// DroppedResults counts candidates removed because their citation could
	// not be resolved, so callers can tell a short answer from a clean one.
	DroppedResults int `json:"dropped_results,omitempty"`
}
