package graph

import (
	"regexp"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

const (
	emergencyChunks     = 5
	emergencyEntities   = 10
	emergencyConfidence = 0.5
)

var capitalizedPhraseRe = regexp.MustCompile(`\p{Lu}[\p{L}\-]+(?:[ \t]+\p{Lu}[\p{L}\-]+)*`)

// Sentence starters that are capitalized for grammatical reasons only.
var phraseStopwords = map[string]struct{}{
	"A": {}, "An": {}, "The": {}, "This": {}, "That": {}, "These": {}, "Those": {},
	"It": {}, "Its": {}, "In": {}, "On": {}, "At": {}, "For": {}, "From": {},
	"And": {}, "But": {}, "Or": {}, "If": {}, "When": {}, "While": {}, "As": {},
	"We": {}, "You": {}, "They": {}, "He": {}, "She": {}, "His": {}, "Her": {},
	"There": {}, "Here": {}, "After": {}, "Before": {}, "With": {}, "By": {},
	"To": {}, "Of": {}, "Is": {}, "Are": {}, "Was": {}, "Were": {}, "Also": {},
	"However": {}, "Therefore": {}, "Thus": {}, "Each": {}, "Every": {}, "Some": {},
}

type phraseCount struct {
	text  string
	count int
}

// capitalizedPhrases counts runs of capitalized words in text and returns at
// most limit phrases seen at least minCount times, most frequent first.
func capitalizedPhrases(text string, minCount int, limit int) []phraseCount {
	counts := map[string]int{}
	for _, m := range capitalizedPhraseRe.FindAllString(text, -1) {
		words := strings.Fields(m)
		for len(words) > 0 {
			if _, stop := phraseStopwords[words[0]]; !stop {
				break
			}
			words = words[1:]
		}
		if len(words) == 0 {
			continue
		}
		phrase := strings.Join(words, " ")
		if len([]rune(phrase)) < 3 {
			continue
		}
		counts[phrase]++
	}

	phrases := make([]phraseCount, 0, len(counts))
	for p, c := range counts {
		if c >= minCount {
			phrases = append(phrases, phraseCount{text: p, count: c})
		}
	}
	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].count != phrases[j].count {
			return phrases[i].count > phrases[j].count
		}
		return phrases[i].text < phrases[j].text
	})
	if limit > 0 && len(phrases) > limit {
		phrases = phrases[:limit]
	}
	return phrases
}

// emergencyFallback structures the first few chunks locally and derives
// concept entities from capitalized phrases that repeat across the document.
// It must not call anything that can fail.
func (g *GraphClient) emergencyFallback(
	raw []common.RawChunk,
) ([]common.StructuredChunk, []common.KnowledgeEntity) {
	n := min(len(raw), emergencyChunks)
	chunks := make([]common.StructuredChunk, 0, n)
	for _, rc := range raw[:n] {
		chunks = append(chunks, g.localStructure(rc, len(raw)))
	}

	var all strings.Builder
	for _, rc := range raw {
		all.WriteString(rc.Content)
		all.WriteString("\n")
	}

	entities := []common.KnowledgeEntity{}
	for _, p := range capitalizedPhrases(all.String(), 2, emergencyEntities) {
		sources := []string{}
		for _, sc := range chunks {
			if strings.Contains(sc.RawText, p.text) {
				sources = append(sources, sc.ID)
			}
		}
		entities = append(entities, common.KnowledgeEntity{
			ID:           entityID(common.EntityConcept, p.text),
			Type:         common.EntityConcept,
			Name:         p.text,
			Aliases:      []string{},
			Properties:   map[string]any{"mentions": p.count},
			Descriptions: []string{},
			SourceChunks: sources,
			Confidence:   emergencyConfidence,
		})
	}
	return chunks, entities
}
