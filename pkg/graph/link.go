package graph

import (
	"slices"
	"strings"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

// LinkChunks records the predecessor of a chunk in RelatedChunks when the two
// share a concept, compared case-insensitively by substring containment in
// either direction. Documents with two chunks or fewer are left alone.
//
// The slice is modified in place and returned.
func LinkChunks(chunks []common.StructuredChunk) []common.StructuredChunk {
	if len(chunks) <= 2 {
		return chunks
	}

	for i := 1; i < len(chunks); i++ {
		cur, prev := &chunks[i], chunks[i-1]
		if cur.Order == 0 {
			continue
		}
		if !sharesConcept(cur.DetailedConcepts, prev.DetailedConcepts) {
			continue
		}
		if !slices.Contains(cur.RelatedChunks, prev.ID) {
			cur.RelatedChunks = append(cur.RelatedChunks, prev.ID)
		}
	}
	return chunks
}

func sharesConcept(a, b []common.DetailedConcept) bool {
	for _, ca := range a {
		na := strings.ToLower(strings.TrimSpace(ca.Concept))
		if na == "" {
			continue
		}
		for _, cb := range b {
			nb := strings.ToLower(strings.TrimSpace(cb.Concept))
			if nb == "" {
				continue
			}
			if strings.Contains(na, nb) || strings.Contains(nb, na) {
				return true
			}
		}
	}
	return false
}
