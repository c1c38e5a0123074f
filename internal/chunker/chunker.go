// Package chunker groups extracted elements into retrievable chunks under an
// explicit sizing and boundary policy. Page numbers travel from Element to
// Chunk unchanged; the chunker never invents or estimates provenance.
package chunker

import (
	"fmt"
	"strings"

	"github.com/quarrylabs/quarry/internal/chunkid"
	"github.com/quarrylabs/quarry/internal/models"
	"github.com/quarrylabs/quarry/pkg/utils"
)

// Table split strategies.
const (
	TableSplitAtomic = "atomic"
	TableSplitByRow  = "row-split"
)

// Policy is the explicit chunking configuration. Every call is parameterized;
// there are no hidden global defaults.
type Policy struct {
	TargetTokens   int
	OverlapTokens  int
	MaxTableTokens int
	TableSplit     string // TableSplitAtomic or TableSplitByRow
}

// Validate reports whether the policy is internally consistent.
func (p Policy) Validate() error {
	if p.TargetTokens <= 0 {
		return fmt.Errorf("target_tokens must be positive, got %d", p.TargetTokens)
	}
	if p.OverlapTokens < 0 || p.OverlapTokens >= p.TargetTokens {
		return fmt.Errorf("overlap_tokens %d must be in [0, target_tokens)", p.OverlapTokens)
	}
	if p.MaxTableTokens <= 0 {
		return fmt.Errorf("max_table_tokens must be positive, got %d", p.MaxTableTokens)
	}
	switch p.TableSplit {
	case TableSplitAtomic, TableSplitByRow:
	default:
		return fmt.Errorf("unknown table_split strategy %q", p.TableSplit)
	}
	return nil
}

// ChunkingError reports malformed input or an unsatisfiable policy.
type ChunkingError struct {
	ElementIndex int
	Reason       string
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chunking element %d: %s", e.ElementIndex, e.Reason)
}

// Chunker splits element streams into chunks.
type Chunker struct {
	policy Policy
}

// New creates a chunker with the given policy.
func New(policy Policy) (*Chunker, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{policy: policy}, nil
}

// unit is one indivisible piece of text (a sentence or list line) with its
// source page.
type unit struct {
	text   string
	tokens int
	page   int
}

// Chunk converts an ordered element stream into chunks. Non-table elements
// are packed into windows of roughly TargetTokens, split only at sentence or
// line boundaries, with OverlapTokens of trailing content repeated into the
// next window. Tables go through the table path (atomic or row-split).
func (c *Chunker) Chunk(docID string, elements []models.Element) ([]*models.Chunk, error) {
	var (
		chunks      []*models.Chunk
		window      []unit
		overlap     int // tokens at the head of window repeated from the previous chunk
		section     string
		sectionUsed bool // some chunk carries the current section title
		sectionPage int
	)

	flush := func() {
		if len(window) == 0 {
			return
		}
		chunks = append(chunks, c.buildChunk(docID, len(chunks), window, overlap, section))
		sectionUsed = true
		window, overlap = c.carryOverlap(window)
	}

	for i, el := range elements {
		if strings.TrimSpace(el.Text) == "" {
			return nil, &ChunkingError{ElementIndex: i, Reason: "element has no usable text"}
		}
		if el.PageNumber < 1 {
			return nil, &ChunkingError{ElementIndex: i, Reason: "element is missing page provenance"}
		}

		switch el.Type {
		case models.ElementHeader:
			// A header starts a new section; the open window belongs to the
			// previous one.
			flush()
			window, overlap = nil, 0
			title := strings.TrimSpace(el.Text)
			if section != "" && !sectionUsed {
				// Consecutive headers: no chunk carried the previous title
				// yet, so keep it as a path instead of overwriting it.
				section = section + " > " + title
			} else {
				section = title
			}
			sectionUsed = false
			sectionPage = el.PageNumber
			continue
		case models.ElementTable:
			flush()
			window, overlap = nil, 0
			tableChunks, err := c.chunkTable(docID, len(chunks), i, el, section)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, tableChunks...)
			sectionUsed = sectionUsed || len(tableChunks) > 0
			continue
		}

		for _, u := range elementUnits(el) {
			if u.tokens > c.policy.TargetTokens {
				// A single sentence over budget is emitted whole rather than
				// truncated; no silent data loss.
				flush()
				window, overlap = nil, 0
				chunks = append(chunks, c.buildChunk(docID, len(chunks), []unit{u}, 0, section))
				sectionUsed = true
				continue
			}
			if windowTokens(window)+u.tokens > c.policy.TargetTokens {
				flush()
			}
			window = append(window, u)
		}
	}
	flush()
	if section != "" && !sectionUsed {
		// A document-trailing header owns no content; emit it as its own
		// chunk so its text is not dropped.
		chunks = append(chunks, &models.Chunk{
			ID:           chunkid.ChunkID(docID, len(chunks)),
			DocumentID:   docID,
			Text:         section,
			TokenCount:   utils.CountTokens(section),
			PageNumber:   sectionPage,
			ElementType:  models.ElementHeader,
			SectionTitle: section,
			ChunkIndex:   len(chunks),
		})
	}
	return chunks, nil
}

// elementUnits splits an element into indivisible units: sentences for
// paragraphs, lines for lists.
func elementUnits(el models.Element) []unit {
	var parts []string
	if el.Type == models.ElementList {
		for _, line := range strings.Split(el.Text, "\n") {
			if s := strings.TrimSpace(line); s != "" {
				parts = append(parts, s)
			}
		}
	} else {
		parts = utils.SplitSentences(el.Text)
	}
	units := make([]unit, 0, len(parts))
	for _, p := range parts {
		units = append(units, unit{text: p, tokens: utils.CountTokens(p), page: el.PageNumber})
	}
	return units
}

func windowTokens(window []unit) int {
	total := 0
	for _, u := range window {
		total += u.tokens
	}
	return total
}

func (c *Chunker) buildChunk(docID string, seq int, window []unit, overlap int, section string) *models.Chunk {
	texts := make([]string, len(window))
	for i, u := range window {
		texts[i] = u.text
	}
	return &models.Chunk{
		ID:            chunkid.ChunkID(docID, seq),
		DocumentID:    docID,
		Text:          strings.Join(texts, " "),
		TokenCount:    windowTokens(window),
		PageNumber:    window[0].page, // page of the first source element
		ElementType:   models.ElementParagraph,
		SectionTitle:  section,
		ChunkIndex:    seq,
		OverlapTokens: overlap,
	}
}

// carryOverlap returns the trailing units of the flushed window that start
// the next window, and their token total (the next chunk's overlap).
func (c *Chunker) carryOverlap(window []unit) ([]unit, int) {
	if c.policy.OverlapTokens == 0 {
		return nil, 0
	}
	total := 0
	start := len(window)
	for start > 0 && total+window[start-1].tokens <= c.policy.OverlapTokens {
		total += window[start-1].tokens
		start--
	}
	if start == len(window) {
		return nil, 0
	}
	carried := make([]unit, len(window)-start)
	copy(carried, window[start:])
	return carried, total
}
