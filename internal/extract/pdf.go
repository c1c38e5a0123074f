package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/quarrylabs/quarry/internal/models"
)

func extractPDF(content []byte) (*Extraction, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	out := &Extraction{PageCount: numPages}
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		for _, el := range pageElements(text, i) {
			el.OrderIndex = len(out.Elements)
			out.Elements = append(out.Elements, el)
		}
	}
	return out, nil
}

// pageElements segments one page's plain text into typed elements. Blocks are
// blank-line separated; a block whose lines are mostly multi-column (tab or
// wide-gap separated) becomes a table with its cell grid, a short terminal-
// punctuation-free single line becomes a header, and "-"/"*" bulleted blocks
// become lists.
func pageElements(text string, pageNumber int) []models.Element {
	var elements []models.Element
	for _, block := range splitBlocks(text) {
		el := classifyBlock(block)
		el.PageNumber = pageNumber
		elements = append(elements, el)
	}
	return elements
}
