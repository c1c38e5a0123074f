// Package chunkid provides the stable ID scheme for documents and chunks.
// Chunk IDs are document_id plus sequence number, so re-ingesting a document
// reproduces the same IDs and deletion/replacement is unambiguous.
package chunkid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

const filePrefix = "file:"

// FileDocID returns a stable document ID for the given absolute path.
// Same path always yields the same ID, so a watched file that changes
// re-ingests into the same document identity.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return filePrefix + hex.EncodeToString(hash[:])
}

// ChunkID returns the deterministic ID for the seq-th chunk of a document.
func ChunkID(docID string, seq int) string {
	return fmt.Sprintf("%s#%04d", docID, seq)
}

// DocIDOf returns the document ID encoded in a chunk ID, or the input
// unchanged when it carries no sequence suffix.
func DocIDOf(chunkID string) string {
	if i := strings.LastIndex(chunkID, "#"); i >= 0 {
		return chunkID[:i]
	}
	return chunkID
}
