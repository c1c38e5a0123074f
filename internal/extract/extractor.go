// Package extract turns source documents into ordered, page-attributed
// elements. Page numbers always come from true document structure (PDF page
// objects, spreadsheet sheet order); they are never estimated from offsets.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quarrylabs/quarry/internal/models"
)

// ErrMissingProvenance is returned when a source yields content whose page
// cannot be determined. Elements are flagged, never assigned a guessed page.
var ErrMissingProvenance = errors.New("element has no page provenance")

// Extraction is the output of extracting one document.
type Extraction struct {
	Elements  []models.Element
	PageCount int
}

// Extractor extracts typed elements from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its elements in document order.
// Supported: .pdf (per-page), .xlsx (per-sheet tables), .docx,
// .txt/.md/.rst. Returns an error if the file cannot be read or parsed.
func (e *Extractor) Extract(path string) (*Extraction, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts elements from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Extraction, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".xlsx":
		return extractExcel(content)
	case ".docx":
		return extractDOCX(content)
	case ".txt", ".md", ".rst", "":
		return extractPlain(content)
	default:
		// Unknown extension: treat as plain text
		return extractPlain(content)
	}
}

// Validate checks the extractor output contract: every element carries a page
// inside [1, PageCount] and elements are in order. Returns
// ErrMissingProvenance (wrapped) on the first violation.
func (x *Extraction) Validate() error {
	prevPage := 0
	for i, el := range x.Elements {
		if el.PageNumber < 1 || el.PageNumber > x.PageCount {
			return fmt.Errorf("element %d (page %d of %d): %w", i, el.PageNumber, x.PageCount, ErrMissingProvenance)
		}
		if el.PageNumber < prevPage {
			return fmt.Errorf("element %d: page %d before page %d: %w", i, el.PageNumber, prevPage, ErrMissingProvenance)
		}
		prevPage = el.PageNumber
		if el.OrderIndex != i {
			return fmt.Errorf("element %d has order index %d", i, el.OrderIndex)
		}
	}
	return nil
}
