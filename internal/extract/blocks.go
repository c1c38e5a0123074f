package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/quarrylabs/quarry/internal/models"
)

// columnGap matches a tab or a run of two or more spaces, the separators
// layout-preserving PDF text uses between table columns.
var columnGap = regexp.MustCompile(`\t+| {2,}`)

const maxHeaderLen = 80

// splitBlocks splits page text into blank-line separated blocks of
// non-empty lines.
func splitBlocks(text string) [][]string {
	var blocks [][]string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(trimmed) == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, trimmed)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// classifyBlock assigns an element type to a block of lines and builds the
// element payload. Page number and order index are filled in by the caller.
func classifyBlock(lines []string) models.Element {
	if rows := tableRows(lines); rows != nil {
		return models.Element{
			Type:      models.ElementTable,
			Text:      strings.Join(lines, "\n"),
			TableRows: rows,
		}
	}
	if len(lines) == 1 && isHeaderLine(lines[0]) {
		return models.Element{Type: models.ElementHeader, Text: strings.TrimSpace(lines[0])}
	}
	if isListBlock(lines) {
		return models.Element{Type: models.ElementList, Text: strings.Join(lines, "\n")}
	}
	joined := strings.Join(lines, " ")
	return models.Element{Type: models.ElementParagraph, Text: strings.Join(strings.Fields(joined), " ")}
}

// tableRows returns the cell grid when at least two lines split into two or
// more columns each, nil otherwise. Row 0 is treated as the header row.
func tableRows(lines []string) [][]string {
	if len(lines) < 2 {
		return nil
	}
	rows := make([][]string, 0, len(lines))
	multiColumn := 0
	for _, line := range lines {
		cells := splitColumns(line)
		if len(cells) >= 2 {
			multiColumn++
		}
		rows = append(rows, cells)
	}
	// Require most lines to look columnar so prose with incidental double
	// spaces is not misread as a table.
	if multiColumn < 2 || multiColumn*2 < len(lines) {
		return nil
	}
	return rows
}

func splitColumns(line string) []string {
	parts := columnGap.Split(strings.TrimSpace(line), -1)
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

func isHeaderLine(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" || len(s) > maxHeaderLen {
		return false
	}
	last := rune(s[len(s)-1])
	if last == '.' || last == ';' || last == ',' {
		return false
	}
	// Headers start with a letter or a section number ("3.2 Revenue").
	first := rune(s[0])
	return unicode.IsLetter(first) || unicode.IsDigit(first)
}

func isListBlock(lines []string) bool {
	for _, line := range lines {
		s := strings.TrimSpace(line)
		if !strings.HasPrefix(s, "- ") && !strings.HasPrefix(s, "* ") && !strings.HasPrefix(s, "• ") {
			return false
		}
	}
	return len(lines) > 0
}
