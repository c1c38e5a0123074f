package chunker

import (
	"strings"

	"github.com/quarrylabs/quarry/internal/chunkid"
	"github.com/quarrylabs/quarry/internal/models"
	"github.com/quarrylabs/quarry/pkg/utils"
)

// chunkTable converts one table element into chunks. Tables under
// MaxTableTokens (or under the atomic strategy) become exactly one chunk.
// Larger tables split at row boundaries only: every split repeats the header
// row and carries the same parent chunk ID, so a header is never separated
// from the rows it explains.
func (c *Chunker) chunkTable(docID string, seq, elementIndex int, el models.Element, section string) ([]*models.Chunk, error) {
	tokens := utils.CountTokens(el.Text)
	if c.policy.TableSplit == TableSplitAtomic || tokens <= c.policy.MaxTableTokens {
		return []*models.Chunk{{
			ID:           chunkid.ChunkID(docID, seq),
			DocumentID:   docID,
			Text:         el.Text,
			TokenCount:   tokens,
			PageNumber:   el.PageNumber,
			ElementType:  models.ElementTable,
			SectionTitle: section,
			ChunkIndex:   seq,
		}}, nil
	}

	if len(el.TableRows) < 2 {
		// Oversized but no row structure to split on: emit whole rather than
		// truncate.
		return []*models.Chunk{{
			ID:           chunkid.ChunkID(docID, seq),
			DocumentID:   docID,
			Text:         el.Text,
			TokenCount:   tokens,
			PageNumber:   el.PageNumber,
			ElementType:  models.ElementTable,
			SectionTitle: section,
			ChunkIndex:   seq,
		}}, nil
	}

	header := strings.Join(el.TableRows[0], "\t")
	headerTokens := utils.CountTokens(header)
	budget := c.policy.MaxTableTokens - headerTokens
	if budget <= 0 {
		return nil, &ChunkingError{ElementIndex: elementIndex, Reason: "table header alone exceeds max_table_tokens"}
	}

	// The first split's ID is the logical parent all splits share.
	parentID := chunkid.ChunkID(docID, seq)
	var chunks []*models.Chunk
	var rows []string
	rowTokens := 0

	emit := func() {
		if len(rows) == 0 {
			return
		}
		text := header + "\n" + strings.Join(rows, "\n")
		chunks = append(chunks, &models.Chunk{
			ID:            chunkid.ChunkID(docID, seq+len(chunks)),
			DocumentID:    docID,
			Text:          text,
			TokenCount:    headerTokens + rowTokens,
			PageNumber:    el.PageNumber,
			ElementType:   models.ElementTable,
			SectionTitle:  section,
			ParentChunkID: parentID,
			ChunkIndex:    seq + len(chunks),
		})
		rows, rowTokens = nil, 0
	}

	for _, cells := range el.TableRows[1:] {
		row := strings.Join(cells, "\t")
		t := utils.CountTokens(row)
		if rowTokens+t > budget && len(rows) > 0 {
			emit()
		}
		rows = append(rows, row)
		rowTokens += t
	}
	emit()
	return chunks, nil
}
