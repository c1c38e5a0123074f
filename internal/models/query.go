package models

import "fmt"

// Query is a retrieval request. Transient, never persisted.
type Query struct {
	Text    string            `json:"text"`
	TopK    int               `json:"top_k,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

// Validate ensures the query has valid fields and sets defaults.
// Returns an error if the text is empty; otherwise normalizes TopK.
func (q *Query) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("query text cannot be empty")
	}
	if q.TopK <= 0 {
		q.TopK = 10
	}
	if q.TopK > 100 {
		q.TopK = 100
	}
	return nil
}
