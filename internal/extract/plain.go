package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/quarrylabs/quarry/internal/models"
)

// extractPlain segments text/Markdown content into elements. Invalid UTF-8
// sequences are replaced with the replacement character. Markdown "#" lines
// become headers. Plain files have no pagination, so everything is page 1.
func extractPlain(content []byte) (*Extraction, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	out := &Extraction{PageCount: 1}
	for _, block := range splitBlocks(string(content)) {
		var el models.Element
		if len(block) == 1 && strings.HasPrefix(strings.TrimSpace(block[0]), "#") {
			el = models.Element{
				Type: models.ElementHeader,
				Text: strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(block[0]), "# ")),
			}
		} else {
			el = classifyBlock(block)
		}
		if el.Text == "" {
			continue
		}
		el.PageNumber = 1
		el.OrderIndex = len(out.Elements)
		out.Elements = append(out.Elements, el)
	}
	return out, nil
}
