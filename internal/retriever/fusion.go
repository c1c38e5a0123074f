// Package retriever fans a query out to the active index backends and fuses
// their results into one ranked candidate list.
package retriever

import (
	"sort"

	"github.com/quarrylabs/quarry/internal/index"
	"github.com/quarrylabs/quarry/internal/models"
)

// NormalizeScores min-max normalizes one backend's raw scores to [0,1]
// within the returned set. Raw scores from different backends are never
// comparable, so normalization always happens per index before fusion.
// A constant-score set maps to 1.0.
func NormalizeScores(hits []index.Hit) map[string]float64 {
	if len(hits) == 0 {
		return map[string]float64{}
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	normalized := make(map[string]float64, len(hits))
	for _, h := range hits {
		if max > min {
			normalized[h.ChunkID] = (h.Score - min) / (max - min)
		} else {
			normalized[h.ChunkID] = 1.0
		}
	}
	return normalized
}

// Fuse combines per-backend hits into candidates scored by a weighted sum of
// normalized scores. A chunk present in only one index gets that index's
// contribution alone; missing indexes contribute zero, not a penalty.
// Weights default to 1.0 for backends not in the map.
func Fuse(perIndex map[string][]index.Hit, weights map[string]float64) []*models.Candidate {
	byChunk := make(map[string]*models.Candidate)
	rawLexical := make(map[string]float64)

	for name, hits := range perIndex {
		normalized := NormalizeScores(hits)
		weight := 1.0
		if w, ok := weights[name]; ok {
			weight = w
		}
		for _, h := range hits {
			c, ok := byChunk[h.ChunkID]
			if !ok {
				c = &models.Candidate{
					ChunkID:        h.ChunkID,
					PerIndexScores: make(map[string]float64),
				}
				byChunk[h.ChunkID] = c
			}
			c.PerIndexScores[name] = h.Score
			c.FusedScore += weight * normalized[h.ChunkID]
			if name == index.Lexical {
				rawLexical[h.ChunkID] = h.Score
			}
		}
	}

	candidates := make([]*models.Candidate, 0, len(byChunk))
	for _, c := range byChunk {
		candidates = append(candidates, c)
	}
	// Ties break by higher raw lexical score, then lower chunk ID, so two
	// identical retrievals return bit-identical order.
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		if rawLexical[a.ChunkID] != rawLexical[b.ChunkID] {
			return rawLexical[a.ChunkID] > rawLexical[b.ChunkID]
		}
		return a.ChunkID < b.ChunkID
	})
	return candidates
}

// CollapseTableGroups reduces each parent-chunk group to its single highest-
// ranked member, recording the dropped siblings on the survivor, so one
// split table cannot flood the result list. parentOf maps chunk ID to parent
// chunk ID ("" for chunks outside any group). Candidates must already be
// sorted by rank.
func CollapseTableGroups(candidates []*models.Candidate, parentOf map[string]string) []*models.Candidate {
	seen := make(map[string]*models.Candidate) // parent ID -> surviving member
	out := candidates[:0]
	for _, c := range candidates {
		parent := parentOf[c.ChunkID]
		if parent == "" {
			out = append(out, c)
			continue
		}
		if survivor, ok := seen[parent]; ok {
			survivor.SiblingChunkIDs = append(survivor.SiblingChunkIDs, c.ChunkID)
			continue
		}
		seen[parent] = c
		out = append(out, c)
	}
	return out
}
