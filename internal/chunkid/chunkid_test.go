package chunkid

import (
	"strings"
	"testing"
)

func TestFileDocIDStable(t *testing.T) {
	a := FileDocID("/data/reports/annual.pdf")
	b := FileDocID("/data/reports/annual.pdf")
	if a != b {
		t.Errorf("same path gave different IDs: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "file:") {
		t.Errorf("ID %q missing file prefix", a)
	}
	// Clean-equivalent paths map to the same document.
	if FileDocID("/data/reports/../reports/annual.pdf") != a {
		t.Error("equivalent paths gave different IDs")
	}
	if FileDocID("/data/reports/other.pdf") == a {
		t.Error("different paths gave the same ID")
	}
}

func TestChunkIDFormat(t *testing.T) {
	if got := ChunkID("doc1", 0); got != "doc1#0000" {
		t.Errorf("ChunkID = %q", got)
	}
	if got := ChunkID("doc1", 42); got != "doc1#0042" {
		t.Errorf("ChunkID = %q", got)
	}
	// Documents with more than 9999 chunks widen naturally.
	if got := ChunkID("doc1", 12345); got != "doc1#12345" {
		t.Errorf("ChunkID = %q", got)
	}
}

func TestDocIDOf(t *testing.T) {
	if got := DocIDOf("doc1#0007"); got != "doc1" {
		t.Errorf("DocIDOf = %q", got)
	}
	if got := DocIDOf("plain-id"); got != "plain-id" {
		t.Errorf("DocIDOf without suffix = %q", got)
	}
	docID := FileDocID("/tmp/x.pdf")
	if got := DocIDOf(ChunkID(docID, 3)); got != docID {
		t.Errorf("round trip lost the document ID: %q", got)
	}
}
