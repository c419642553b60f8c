package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/lumen/backend/internal/util"
	"github.com/OFFIS-RIT/lumen/backend/pkg/ai"
	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
	"github.com/OFFIS-RIT/lumen/backend/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// A single chunk below this many tokens is structured locally.
const minStructureTokens = 60

const (
	structureTokensPerChunk = 700
	fallbackSummaryRunes    = 240
	fallbackKeyIdeaWords    = 12
	fallbackKeyIdeas        = 3
)

var chunkTypes = map[string]struct{}{
	"introduction": {},
	"definition":   {},
	"explanation":  {},
	"example":      {},
	"process":      {},
	"conclusion":   {},
	"reference":    {},
	"other":        {},
}

type structureEntry struct {
	ChunkIndex       int                      `json:"chunkIndex" jsonschema_description:"Number of the excerpt this entry describes"`
	Title            string                   `json:"title" jsonschema_description:"Short heading for the excerpt"`
	Summary          string                   `json:"summary" jsonschema_description:"One to three sentences on what the excerpt teaches"`
	KeyIdeas         []string                 `json:"keyIdeas" jsonschema_description:"Statements a student should remember"`
	DetailedConcepts []common.DetailedConcept `json:"detailedConcepts" jsonschema_description:"Concepts explained in the excerpt"`
	ChunkType        string                   `json:"chunkType" jsonschema_description:"introduction, definition, explanation, example, process, conclusion, reference or other"`
	Importance       string                   `json:"importance" jsonschema_description:"low, medium or high"`
	Dependencies     []string                 `json:"dependencies" jsonschema_description:"Concepts the reader must already know"`
}

type structureResponse struct {
	Chunks []structureEntry `json:"chunks" jsonschema_description:"One entry per excerpt"`
}

func validateStructureResponse(res *structureResponse) error {
	if len(res.Chunks) == 0 {
		return fmt.Errorf("response contains no chunks")
	}
	return nil
}

// StructureChunks turns every raw chunk into a StructuredChunk. Chunks are
// sent to the completion collaborator in batches of batchSize, in waves of
// the configured parallelism. A batch that fails after all retries is
// structured with the local heuristic instead, so the result always has one
// entry per input chunk, in input order. The second return value is the
// number of batches that fell back.
func (g *GraphClient) StructureChunks(
	ctx context.Context,
	raw []common.RawChunk,
	sourceName string,
	batchSize int,
	client ai.CompletionClient,
) ([]common.StructuredChunk, int) {
	if len(raw) == 0 {
		return []common.StructuredChunk{}, 0
	}

	sorted := make([]common.RawChunk, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	if len(sorted) == 1 && g.tokens.Count(sorted[0].Content) < minStructureTokens {
		logger.Debug("[Structure] Single small chunk, structuring locally")
		return []common.StructuredChunk{g.localStructure(sorted[0], 1)}, 0
	}

	if batchSize <= 0 {
		batchSize = 1
	}
	batches := batchRange(len(sorted), batchSize)

	results := runWaves(ctx, len(batches), g.parallelAiRequests, g.waveDelay,
		func(ctx context.Context, i int) ([]common.StructuredChunk, error) {
			b := batches[i]
			return g.structureBatch(ctx, sorted[b[0]:b[1]], len(sorted), sourceName, client)
		})

	out := make([]common.StructuredChunk, 0, len(sorted))
	failed := 0
	for i, res := range results {
		b := batches[i]
		if res.err != nil {
			failed++
			batchesTotal.WithLabelValues(stageStructure, statusFallback).Inc()
			logger.Warn("[Structure] Batch failed, using local summaries", "batch", i, "err", res.err)
			for _, rc := range sorted[b[0]:b[1]] {
				out = append(out, g.localStructure(rc, len(sorted)))
			}
			continue
		}
		batchesTotal.WithLabelValues(stageStructure, statusOK).Inc()
		out = append(out, res.value...)
	}

	logger.Debug("[Structure] Structured chunks", "count", len(out), "batches", len(batches), "failed", failed)
	return out, failed
}

func (g *GraphClient) structureBatch(
	ctx context.Context,
	batch []common.RawChunk,
	total int,
	sourceName string,
	client ai.CompletionClient,
) ([]common.StructuredChunk, error) {
	var prompt strings.Builder
	for i, rc := range batch {
		fmt.Fprintf(&prompt, "## Excerpt %d\n%s\n\n", i, rc.Content)
	}

	res, err := completeTyped(ctx, g, client,
		"structure_chunks",
		"Summarize document excerpts into structured study notes.",
		prompt.String(),
		validateStructureResponse,
		ai.WithSystemPrompts(fmt.Sprintf(ai.StructurePrompt, len(batch), sourceName)),
		ai.WithModel(g.defaultModel),
		ai.WithTemperature(0.2),
		ai.WithMaxTokens(structureTokensPerChunk*len(batch)),
	)
	if err != nil {
		return nil, err
	}

	entries := assignEntries(res.Chunks, len(batch))
	out := make([]common.StructuredChunk, len(batch))
	for i, rc := range batch {
		if entries[i] == nil {
			logger.Debug("[Structure] Missing entry in response, using local summary", "order", rc.Order)
			out[i] = g.localStructure(rc, total)
			continue
		}
		out[i] = g.structuredFromEntry(rc, *entries[i], total)
	}
	return out, nil
}

// assignEntries maps response entries to batch positions by chunkIndex and
// falls back to the entry position when the index is missing or repeated.
func assignEntries(entries []structureEntry, n int) []*structureEntry {
	assigned := make([]*structureEntry, n)
	for pos := range entries {
		idx := entries[pos].ChunkIndex
		if idx < 0 || idx >= n || assigned[idx] != nil {
			idx = pos
		}
		if idx >= n || assigned[idx] != nil {
			continue
		}
		assigned[idx] = &entries[pos]
	}
	return assigned
}

func (g *GraphClient) structuredFromEntry(
	rc common.RawChunk,
	e structureEntry,
	total int,
) common.StructuredChunk {
	sc := g.localStructure(rc, total)

	if s := strings.TrimSpace(e.Summary); s != "" {
		sc.Summary = s
	}
	if t := strings.TrimSpace(e.Title); t != "" {
		sc.Title = t
	}
	if ideas := cleanStrings(e.KeyIdeas); len(ideas) > 0 {
		sc.KeyIdeas = ideas
	}

	concepts := make([]common.DetailedConcept, 0, len(e.DetailedConcepts))
	for _, c := range e.DetailedConcepts {
		c.Concept = strings.TrimSpace(c.Concept)
		if c.Concept == "" {
			continue
		}
		c.Explanation = strings.TrimSpace(c.Explanation)
		c.Examples = cleanStrings(c.Examples)
		c.Category = strings.TrimSpace(c.Category)
		concepts = append(concepts, c)
	}
	if len(concepts) > 0 {
		sc.DetailedConcepts = concepts
	}

	sc.Dependencies = cleanStrings(e.Dependencies)

	chunkType := strings.ToLower(strings.TrimSpace(e.ChunkType))
	if _, ok := chunkTypes[chunkType]; ok {
		sc.Metadata.ChunkType = chunkType
	} else if chunkType != "" {
		sc.Metadata.ChunkType = "other"
	}
	sc.Metadata.Importance = parseImportance(e.Importance)

	return sc
}

// localStructure builds a StructuredChunk without the completion
// collaborator: the first sentence becomes the summary and consecutive word
// groups become key ideas.
func (g *GraphClient) localStructure(rc common.RawChunk, total int) common.StructuredChunk {
	first := util.FirstSentence(rc.Content)

	words := strings.Fields(rc.Content)
	ideas := make([]string, 0, fallbackKeyIdeas)
	for i := 0; i < len(words) && len(ideas) < fallbackKeyIdeas; i += fallbackKeyIdeaWords {
		end := min(i+fallbackKeyIdeaWords, len(words))
		ideas = append(ideas, strings.Join(words[i:end], " "))
	}

	concepts := []common.DetailedConcept{}
	for _, phrase := range capitalizedPhrases(rc.Content, 1, 3) {
		concepts = append(concepts, common.DetailedConcept{
			Concept:     phrase.text,
			Explanation: util.Truncate(sentenceContaining(rc.Content, phrase.text), 200),
		})
	}

	chunkType := "other"
	switch {
	case total > 1 && rc.Order == 0:
		chunkType = "introduction"
	case total > 1 && rc.Order == total-1:
		chunkType = "conclusion"
	}

	return common.StructuredChunk{
		ID:               newChunkID(rc.Order),
		Summary:          util.Truncate(first, fallbackSummaryRunes),
		KeyIdeas:         ideas,
		DetailedConcepts: concepts,
		Title:            util.Truncate(first, 60),
		RelatedChunks:    []string{},
		Dependencies:     []string{},
		RawText:          rc.Content,
		Order:            rc.Order,
		TokenCount:       g.tokens.Count(rc.Content),
		Metadata: common.ChunkMetadata{
			ChunkType:  chunkType,
			Importance: common.ImportanceMedium,
		},
	}
}

func newChunkID(order int) string {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Sprintf("chunk-%d", order)
	}
	return id
}

func parseImportance(s string) common.Importance {
	switch common.Importance(strings.ToLower(strings.TrimSpace(s))) {
	case common.ImportanceHigh:
		return common.ImportanceHigh
	case common.ImportanceLow:
		return common.ImportanceLow
	default:
		return common.ImportanceMedium
	}
}

func cleanStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// batchRange splits n items into [start, end) ranges of at most size.
func batchRange(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

func sentenceContaining(text, phrase string) string {
	for _, s := range splitLineIntoSentences(util.CollapseWhitespace(text)) {
		if strings.Contains(s, phrase) {
			return s
		}
	}
	return ""
}
