package graph

import (
	"fmt"
	"testing"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

func numberedChunks(n int) []common.StructuredChunk {
	chunks := make([]common.StructuredChunk, n)
	for i := range chunks {
		chunks[i] = common.StructuredChunk{
			ID:       fmt.Sprintf("c%d", i),
			Order:    i,
			Metadata: common.ChunkMetadata{Importance: common.ImportanceMedium},
		}
	}
	return chunks
}

func TestSampleChunks(t *testing.T) {
	rich := numberedChunks(100)
	rich[50].DetailedConcepts = make([]common.DetailedConcept, 5)
	rich[50].Metadata.ChunkType = "definition"
	rich[50].Metadata.Importance = common.ImportanceHigh
	rich[73].KeyIdeas = []string{"a", "b", "c"}

	tests := []struct {
		name      string
		chunks    []common.StructuredChunk
		max       int
		wantLen   int
		mustHave  []int
		mustOrder bool
	}{
		{
			name:      "hundred chunks to ten",
			chunks:    numberedChunks(100),
			max:       10,
			wantLen:   10,
			mustHave:  []int{0, 99},
			mustOrder: true,
		},
		{
			name:      "high value chunks are kept",
			chunks:    rich,
			max:       10,
			wantLen:   10,
			mustHave:  []int{0, 50, 73, 99},
			mustOrder: true,
		},
		{
			name:    "identity when under budget",
			chunks:  numberedChunks(5),
			max:     10,
			wantLen: 5,
		},
		{
			name:    "identity when budget is not positive",
			chunks:  numberedChunks(5),
			max:     0,
			wantLen: 5,
		},
		{
			name:      "two slots keep first and last",
			chunks:    numberedChunks(30),
			max:       2,
			wantLen:   2,
			mustHave:  []int{0, 29},
			mustOrder: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleChunks(tt.chunks, tt.max)
			if len(got) != tt.wantLen {
				t.Fatalf("SampleChunks() returned %d chunks, want %d", len(got), tt.wantLen)
			}

			orders := map[int]bool{}
			for i, c := range got {
				orders[c.Order] = true
				if tt.mustOrder && i > 0 && got[i-1].Order >= c.Order {
					t.Errorf("output not sorted by order at %d: %d >= %d", i, got[i-1].Order, c.Order)
				}
			}
			for _, o := range tt.mustHave {
				if !orders[o] {
					t.Errorf("SampleChunks() is missing chunk %d", o)
				}
			}
		})
	}
}

func TestSampleChunksSpreadsRemainingSlots(t *testing.T) {
	got := SampleChunks(numberedChunks(100), 12)

	// With no scores the evenly spaced picks must reach the second half.
	late := 0
	for _, c := range got {
		if c.Order >= 50 && c.Order != 99 {
			late++
		}
	}
	if late == 0 {
		t.Errorf("SampleChunks() picked nothing from the second half: %v", got)
	}
}

func TestChunkScore(t *testing.T) {
	tests := []struct {
		name  string
		chunk common.StructuredChunk
		want  float64
	}{
		{
			name: "counts",
			chunk: common.StructuredChunk{
				DetailedConcepts: make([]common.DetailedConcept, 2),
				KeyIdeas:         []string{"a"},
				Dependencies:     []string{"x"},
			},
			want: 9,
		},
		{
			name: "high importance multiplies",
			chunk: common.StructuredChunk{
				DetailedConcepts: make([]common.DetailedConcept, 2),
				Metadata:         common.ChunkMetadata{Importance: common.ImportanceHigh},
			},
			want: 9,
		},
		{
			name: "definition bonus",
			chunk: common.StructuredChunk{
				Metadata: common.ChunkMetadata{ChunkType: "definition"},
			},
			want: 5,
		},
		{
			name: "conclusion bonus",
			chunk: common.StructuredChunk{
				KeyIdeas: []string{"a"},
				Metadata: common.ChunkMetadata{ChunkType: "conclusion"},
			},
			want: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chunkScore(tt.chunk); got != tt.want {
				t.Errorf("chunkScore() = %v, want %v", got, tt.want)
			}
		})
	}
}
