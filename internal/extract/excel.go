package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/quarrylabs/quarry/internal/models"
)

// extractExcel turns each sheet into one table element. The sheet's position
// in the workbook is its page number, so citations point at the right sheet.
func extractExcel(content []byte) (*Extraction, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	out := &Extraction{PageCount: len(sheets)}
	for si, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		grid := make([][]string, 0, len(rows))
		var text strings.Builder
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			grid = append(grid, row)
			text.WriteString(strings.Join(row, "\t"))
			text.WriteByte('\n')
		}
		if len(grid) == 0 {
			continue
		}
		out.Elements = append(out.Elements, models.Element{
			Type:       models.ElementTable,
			Text:       strings.TrimSpace(text.String()),
			PageNumber: si + 1,
			OrderIndex: len(out.Elements),
			TableRows:  grid,
		})
	}
	return out, nil
}
