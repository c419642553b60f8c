package graph

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/lumen/backend/internal/util"
	"github.com/OFFIS-RIT/lumen/backend/pkg/ai"
	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

// ContentType selects which entities EnrichContentWithGraph adds.
type ContentType string

const (
	ContentFlashcards ContentType = "flashcards"
	ContentQuiz       ContentType = "quiz"
	ContentNotes      ContentType = "notes"
	ContentSummary    ContentType = "summary"
)

// EntityFilter narrows GetEntities. Zero values do not filter.
type EntityFilter struct {
	Types         []common.EntityType
	Categories    []string
	MinConfidence float64
	MaxResults    int
	HasExamples   bool
}

// GetEntities returns the entities matching filter, by descending
// confidence, then name, then id.
func GetEntities(g *KnowledgeGraph, filter EntityFilter) []common.KnowledgeEntity {
	var out []common.KnowledgeEntity
	for _, e := range g.Entities() {
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, e.Type) {
			continue
		}
		if len(filter.Categories) > 0 && !containsFold(filter.Categories, e.Category) {
			continue
		}
		if e.Confidence < filter.MinConfidence {
			continue
		}
		if filter.HasExamples && len(entityExamples(e)) == 0 {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})

	if filter.MaxResults > 0 && len(out) > filter.MaxResults {
		out = out[:filter.MaxResults]
	}
	return out
}

// GetDefinitions returns definition entities.
func GetDefinitions(g *KnowledgeGraph, maxResults int) []common.KnowledgeEntity {
	return GetEntities(g, EntityFilter{
		Types:      []common.EntityType{common.EntityDefinition},
		MaxResults: maxResults,
	})
}

// GetExamples returns entities that carry examples.
func GetExamples(g *KnowledgeGraph, maxResults int) []common.KnowledgeEntity {
	return GetEntities(g, EntityFilter{HasExamples: true, MaxResults: maxResults})
}

// GetProcesses returns process and method entities.
func GetProcesses(g *KnowledgeGraph, maxResults int) []common.KnowledgeEntity {
	return GetEntities(g, EntityFilter{
		Types:      []common.EntityType{common.EntityProcess, common.EntityMethod},
		MaxResults: maxResults,
	})
}

// GraphStats summarizes a graph for diagnostics.
type GraphStats struct {
	TotalEntities     int                       `json:"totalEntities"`
	TotalRelations    int                       `json:"totalRelations"`
	ByType            map[common.EntityType]int `json:"byType"`
	ByCategory        map[string]int            `json:"byCategory"`
	AverageConfidence float64                   `json:"averageConfidence"`
}

// GetStats counts entities by type and category and averages confidence.
func GetStats(g *KnowledgeGraph) GraphStats {
	stats := GraphStats{
		ByType:     map[common.EntityType]int{},
		ByCategory: map[string]int{},
	}
	sum := 0.0
	for _, e := range g.Entities() {
		stats.TotalEntities++
		stats.ByType[e.Type]++
		if e.Category != "" {
			stats.ByCategory[e.Category]++
		}
		sum += e.Confidence
	}
	stats.TotalRelations = len(g.Relations())
	if stats.TotalEntities > 0 {
		stats.AverageConfidence = math.Round(sum/float64(stats.TotalEntities)*1000) / 1000
	}
	return stats
}

// EnrichContentWithGraph appends a digest of the entities relevant for
// contentType to baseText. Flashcards get definitions and concepts, quizzes
// definitions, examples and processes, notes a broad slice and summaries only
// high confidence entities. baseText is returned unchanged when nothing
// matches.
func EnrichContentWithGraph(baseText string, g *KnowledgeGraph, contentType ContentType) string {
	entities := selectForContent(g, contentType)
	if len(entities) == 0 {
		return baseText
	}

	var b strings.Builder
	b.WriteString(baseText)
	b.WriteString(ai.EnrichHeader)
	for _, e := range entities {
		fmt.Fprintf(&b, "- %s (%s)", e.Name, e.Type)
		if len(e.Descriptions) > 0 {
			fmt.Fprintf(&b, ": %s", util.Truncate(e.Descriptions[0], 200))
		}
		if len(e.Aliases) > 0 {
			fmt.Fprintf(&b, " [also: %s]", strings.Join(e.Aliases, ", "))
		}
		if ex := entityExamples(e); len(ex) > 0 {
			fmt.Fprintf(&b, " Examples: %s", strings.Join(ex[:min(len(ex), 3)], "; "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func selectForContent(g *KnowledgeGraph, contentType ContentType) []common.KnowledgeEntity {
	switch contentType {
	case ContentFlashcards:
		return GetEntities(g, EntityFilter{
			Types:      []common.EntityType{common.EntityDefinition, common.EntityConcept},
			MaxResults: 15,
		})
	case ContentQuiz:
		var picked []common.KnowledgeEntity
		seen := map[string]struct{}{}
		for _, group := range [][]common.KnowledgeEntity{
			GetDefinitions(g, 8),
			GetExamples(g, 6),
			GetProcesses(g, 6),
		} {
			for _, e := range group {
				if _, ok := seen[e.ID]; ok {
					continue
				}
				seen[e.ID] = struct{}{}
				picked = append(picked, e)
			}
		}
		return picked
	case ContentNotes:
		return GetEntities(g, EntityFilter{MaxResults: 30})
	case ContentSummary:
		return GetEntities(g, EntityFilter{MinConfidence: 0.8, MaxResults: 10})
	default:
		return nil
	}
}

func entityExamples(e common.KnowledgeEntity) []string {
	switch ex := e.Properties["examples"].(type) {
	case []string:
		return ex
	case []any:
		out := make([]string, 0, len(ex))
		for _, v := range ex {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
