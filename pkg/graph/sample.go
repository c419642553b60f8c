package graph

import (
	"sort"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

// Share of the free slots given to the best scoring chunks; the rest is
// spread evenly over the document.
const topScoreShare = 0.6

// SampleChunks selects at most maxChunks chunks. The first and the last chunk
// are always kept, up to 60% of the remaining slots go to the highest
// scoring chunks and the rest are picked at even spacing from what is left.
// The result is sorted by Order.
//
// With maxChunks <= 0 or len(chunks) <= maxChunks the input is returned
// unchanged.
func SampleChunks(chunks []common.StructuredChunk, maxChunks int) []common.StructuredChunk {
	if maxChunks <= 0 || len(chunks) <= maxChunks {
		return chunks
	}

	sorted := make([]common.StructuredChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	if maxChunks == 1 {
		return sorted[:1]
	}

	last := len(sorted) - 1
	selected := map[int]struct{}{0: {}, last: {}}

	budget := maxChunks - 2
	candidates := make([]int, 0, len(sorted)-2)
	for i := 1; i < last; i++ {
		candidates = append(candidates, i)
	}

	byScore := make([]int, len(candidates))
	copy(byScore, candidates)
	sort.SliceStable(byScore, func(a, b int) bool {
		return chunkScore(sorted[byScore[a]]) > chunkScore(sorted[byScore[b]])
	})
	top := int(float64(budget) * topScoreShare)
	for _, idx := range byScore[:top] {
		selected[idx] = struct{}{}
	}

	rest := budget - top
	if rest > 0 {
		remaining := make([]int, 0, len(candidates)-top)
		for _, idx := range candidates {
			if _, ok := selected[idx]; !ok {
				remaining = append(remaining, idx)
			}
		}
		step := float64(len(remaining)) / float64(rest)
		for i := range rest {
			selected[remaining[int(float64(i)*step)]] = struct{}{}
		}
	}

	out := make([]common.StructuredChunk, 0, len(selected))
	for i, c := range sorted {
		if _, ok := selected[i]; ok {
			out = append(out, c)
		}
	}
	return out
}

// chunkScore rates how much a chunk is likely to contribute to the graph.
func chunkScore(c common.StructuredChunk) float64 {
	score := float64(3*len(c.DetailedConcepts) + len(c.KeyIdeas) + 2*len(c.Dependencies))
	if c.Metadata.Importance == common.ImportanceHigh {
		score *= 1.5
	}
	switch c.Metadata.ChunkType {
	case "definition":
		score += 5
	case "introduction", "conclusion":
		score += 3
	}
	return score
}
