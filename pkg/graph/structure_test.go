package graph

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

func rawChunks(n int) []common.RawChunk {
	chunks := make([]common.RawChunk, n)
	for i := range chunks {
		chunks[i] = common.RawChunk{
			Content: fmt.Sprintf("Section %d explains how the Spartan army fought in a phalanx. ", i) +
				strings.Repeat("Soldiers stood shoulder to shoulder and advanced together. ", 6),
			Order: i,
		}
	}
	return chunks
}

func TestStructureChunks(t *testing.T) {
	g := newTestClient(t)
	client := spartaClient()

	got, failed := g.StructureChunks(context.Background(), rawChunks(5), "sparta.txt", 2, client)

	if failed != 0 {
		t.Errorf("failed = %d, want 0", failed)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if calls := client.calls.Load(); calls != 3 {
		t.Errorf("calls = %d, want 3 batches", calls)
	}

	ids := map[string]bool{}
	for i, sc := range got {
		if sc.Order != i {
			t.Errorf("chunk %d has order %d", i, sc.Order)
		}
		if ids[sc.ID] {
			t.Errorf("duplicate chunk id %q", sc.ID)
		}
		ids[sc.ID] = true
		if sc.Metadata.Importance != common.ImportanceHigh {
			t.Errorf("chunk %d importance = %q, want high", i, sc.Metadata.Importance)
		}
		if len(sc.DetailedConcepts) != 1 || sc.DetailedConcepts[0].Concept != "Spartan army" {
			t.Errorf("chunk %d concepts = %+v", i, sc.DetailedConcepts)
		}
		if sc.RawText == "" || sc.TokenCount == 0 {
			t.Errorf("chunk %d lost its text", i)
		}
	}
}

func TestStructureChunksFallback(t *testing.T) {
	g := newTestClient(t)

	got, failed := g.StructureChunks(context.Background(), rawChunks(5), "sparta.txt", 2, failingClient())

	if failed != 3 {
		t.Errorf("failed = %d, want 3", failed)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want one chunk per input", len(got))
	}
	for i, sc := range got {
		if sc.Order != i {
			t.Errorf("chunk %d has order %d", i, sc.Order)
		}
		if sc.Summary == "" {
			t.Errorf("chunk %d has no summary", i)
		}
		if len(sc.KeyIdeas) == 0 || len(sc.KeyIdeas) > fallbackKeyIdeas {
			t.Errorf("chunk %d has %d key ideas", i, len(sc.KeyIdeas))
		}
		if sc.Metadata.Importance != common.ImportanceMedium {
			t.Errorf("chunk %d importance = %q, want medium", i, sc.Metadata.Importance)
		}
	}
	if got[0].Metadata.ChunkType != "introduction" || got[4].Metadata.ChunkType != "conclusion" {
		t.Errorf("chunk types = %q/%q, want introduction/conclusion",
			got[0].Metadata.ChunkType, got[4].Metadata.ChunkType)
	}
}

func TestStructureChunksSmallDocument(t *testing.T) {
	g := newTestClient(t)
	client := spartaClient()
	raw := []common.RawChunk{{Content: "Sparta was a city in Laconia. It had two kings.", Order: 0}}

	got, failed := g.StructureChunks(context.Background(), raw, "note", 2, client)

	if failed != 0 || len(got) != 1 {
		t.Fatalf("got %d chunks, %d failed", len(got), failed)
	}
	if calls := client.calls.Load(); calls != 0 {
		t.Errorf("calls = %d, want 0 for a small single chunk", calls)
	}
	if got[0].Summary != "Sparta was a city in Laconia." {
		t.Errorf("Summary = %q", got[0].Summary)
	}
	if got[0].Metadata.ChunkType != "other" {
		t.Errorf("ChunkType = %q, want other", got[0].Metadata.ChunkType)
	}
}

func TestStructureChunksMissingEntry(t *testing.T) {
	g := newTestClient(t)
	client := &fakeClient{respond: func(string, string, string) (string, error) {
		return `{"chunks": [{"chunkIndex": 1, "summary": "Only the second.", "importance": "low", "chunkType": "Glossary"}]}`, nil
	}}

	got, failed := g.StructureChunks(context.Background(), rawChunks(2), "x", 2, client)

	if failed != 0 || len(got) != 2 {
		t.Fatalf("got %d chunks, %d failed", len(got), failed)
	}
	if got[1].Summary != "Only the second." || got[1].Metadata.Importance != common.ImportanceLow {
		t.Errorf("second chunk = %+v", got[1])
	}
	if got[1].Metadata.ChunkType != "other" {
		t.Errorf("unknown chunk type mapped to %q, want other", got[1].Metadata.ChunkType)
	}
	if got[0].Summary == "Only the second." || got[0].Metadata.Importance != common.ImportanceMedium {
		t.Errorf("first chunk should use the local summary, got %+v", got[0])
	}
}

func TestAssignEntries(t *testing.T) {
	entry := func(idx int, summary string) structureEntry {
		return structureEntry{ChunkIndex: idx, Summary: summary}
	}

	tests := []struct {
		name    string
		entries []structureEntry
		n       int
		want    []string
	}{
		{"by index", []structureEntry{entry(1, "b"), entry(0, "a")}, 2, []string{"a", "b"}},
		{"repeated index uses position", []structureEntry{entry(0, "a"), entry(0, "b")}, 2, []string{"a", "b"}},
		{"out of range uses position", []structureEntry{entry(7, "a")}, 2, []string{"a", ""}},
		{"extra entries ignored", []structureEntry{entry(0, "a"), entry(1, "b"), entry(2, "c")}, 2, []string{"a", "b"}},
		{"missing entries stay empty", nil, 2, []string{"", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assignEntries(tt.entries, tt.n)
			for i, w := range tt.want {
				s := ""
				if got[i] != nil {
					s = got[i].Summary
				}
				if s != w {
					t.Errorf("slot %d = %q, want %q", i, s, w)
				}
			}
		})
	}
}

func TestBatchRange(t *testing.T) {
	got := batchRange(5, 2)
	want := [][2]int{{0, 2}, {2, 4}, {4, 5}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("batchRange(5, 2) = %v, want %v", got, want)
	}
	if got := batchRange(0, 3); len(got) != 0 {
		t.Errorf("batchRange(0, 3) = %v, want empty", got)
	}
}
