package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/lumen/backend/internal/util"
	"github.com/OFFIS-RIT/lumen/backend/pkg/ai"
	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
	"github.com/OFFIS-RIT/lumen/backend/pkg/logger"
)

const (
	defaultEntityConfidence   = 0.75
	defaultRelationConfidence = 0.7

	balancedExcerptRunes = 1200
	samplingExcerptRunes = 600
)

// confidence accepts numbers and numeric strings, models produce both.
// Anything else decodes to NaN, which confidenceOr replaces by the default,
// so one odd field does not fail the whole batch.
type confidence float64

func (c *confidence) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*c = confidence(f)
		return nil
	}
	*c = confidence(math.NaN())
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
	if err != nil {
		return nil
	}
	if strings.HasSuffix(s, "%") {
		f /= 100
	}
	*c = confidence(f)
	return nil
}

type extractElement struct {
	Name       string         `json:"name" jsonschema_description:"Canonical name of the element"`
	Type       string         `json:"type" jsonschema_description:"One of the allowed element types"`
	Aliases    []string       `json:"aliases,omitempty" jsonschema_description:"Other names used in the text"`
	Desc       string         `json:"desc" jsonschema_description:"Explanation of the element based on the text"`
	Cat        string         `json:"cat,omitempty" jsonschema_description:"Short subject category"`
	Conf       *confidence    `json:"conf,omitempty" jsonschema_description:"Confidence between 0 and 1"`
	Examples   []string       `json:"examples,omitempty" jsonschema_description:"Concrete examples given in the text"`
	Properties map[string]any `json:"properties,omitempty"`
}

type extractRelation struct {
	From string      `json:"from" jsonschema_description:"Name of the source element"`
	To   string      `json:"to" jsonschema_description:"Name of the target element"`
	Type string      `json:"type" jsonschema_description:"Kind of relationship, e.g. part_of or causes"`
	Desc string      `json:"desc,omitempty" jsonschema_description:"Why the elements are related"`
	Conf *confidence `json:"conf,omitempty" jsonschema_description:"Confidence between 0 and 1"`
}

// extractResponse accepts the generic elements list as well as the older
// type-partitioned lists.
type extractResponse struct {
	Elements      []extractElement  `json:"elements,omitempty"`
	People        []extractElement  `json:"people,omitempty"`
	Places        []extractElement  `json:"places,omitempty"`
	Organizations []extractElement  `json:"organizations,omitempty"`
	Events        []extractElement  `json:"events,omitempty"`
	Concepts      []extractElement  `json:"concepts,omitempty"`
	Relationships []extractRelation `json:"relationships,omitempty"`
}

func validateExtractResponse(res *extractResponse) error {
	if res.Elements == nil && res.People == nil && res.Places == nil &&
		res.Organizations == nil && res.Events == nil && res.Concepts == nil {
		return errors.New("response has neither elements nor typed entity lists")
	}
	return nil
}

// BatchExtraction is what one extraction batch contributes.
type BatchExtraction struct {
	Entities  []common.RawEntityExtraction
	Relations []common.RawRelationExtraction
}

// ExtractionResult is the flattened output of all batches.
type ExtractionResult struct {
	BatchExtraction
	Batches       int
	FailedBatches int
}

// ExtractEntities partitions chunks into batches of cfg.BatchSize and asks
// the completion collaborator for the knowledge elements of each batch. A
// failed batch contributes nothing and is only logged.
func (g *GraphClient) ExtractEntities(
	ctx context.Context,
	chunks []common.StructuredChunk,
	sourceName string,
	cfg common.ProcessingConfig,
	client ai.CompletionClient,
) ExtractionResult {
	batchSize := max(cfg.BatchSize, 1)
	batches := batchRange(len(chunks), batchSize)

	results := runWaves(ctx, len(batches), g.parallelAiRequests, g.waveDelay,
		func(ctx context.Context, i int) (BatchExtraction, error) {
			b := batches[i]
			return g.extractBatch(ctx, chunks[b[0]:b[1]], sourceName, cfg, client)
		})

	res := ExtractionResult{Batches: len(batches)}
	for i, r := range results {
		if r.err != nil {
			res.FailedBatches++
			batchesTotal.WithLabelValues(stageExtract, statusFailed).Inc()
			logger.Warn("[Extract] Batch failed, skipping", "batch", i, "err", r.err)
			continue
		}
		batchesTotal.WithLabelValues(stageExtract, statusOK).Inc()
		res.Entities = append(res.Entities, r.value.Entities...)
		res.Relations = append(res.Relations, r.value.Relations...)
	}

	logger.Debug("[Extract] Extraction finished",
		"entities", len(res.Entities),
		"relations", len(res.Relations),
		"batches", res.Batches,
		"failed", res.FailedBatches,
	)
	return res
}

func (g *GraphClient) extractBatch(
	ctx context.Context,
	batch []common.StructuredChunk,
	sourceName string,
	cfg common.ProcessingConfig,
	client ai.CompletionClient,
) (BatchExtraction, error) {
	types := make([]string, len(common.EntityTypes))
	for i, t := range common.EntityTypes {
		types[i] = string(t)
	}

	temperature := 0.1
	if cfg.ProcessingMode == common.ModeFullQuality {
		temperature = 0.2
	}

	systemPrompt := fmt.Sprintf(extractPromptFor(cfg.ProcessingMode),
		sourceName, len(batch), max(cfg.MaxEntitiesPerBatch, 1), strings.Join(types, ", "))

	res, err := completeTyped(ctx, g, client,
		"extract_knowledge_elements",
		"Extract knowledge elements and their relationships from study material.",
		buildExtractPrompt(batch, cfg.ProcessingMode),
		validateExtractResponse,
		ai.WithSystemPrompts(systemPrompt),
		ai.WithModel(cfg.Model),
		ai.WithTemperature(temperature),
		ai.WithMaxTokens(cfg.MaxTokens),
	)
	if err != nil {
		return BatchExtraction{}, err
	}

	ids := make([]string, len(batch))
	for i, c := range batch {
		ids[i] = c.ID
	}
	return toBatchExtraction(res, ids), nil
}

func extractPromptFor(mode common.ProcessingMode) string {
	switch mode {
	case common.ModeFullQuality:
		return ai.ExtractPromptFullQuality
	case common.ModeSmartSampling:
		return ai.ExtractPromptSmartSampling
	default:
		return ai.ExtractPromptBalanced
	}
}

// buildExtractPrompt renders the batch. The full raw text is only sent in
// FULL_QUALITY mode; the other modes lean on the structured summary.
func buildExtractPrompt(batch []common.StructuredChunk, mode common.ProcessingMode) string {
	var b strings.Builder
	for i, c := range batch {
		fmt.Fprintf(&b, "## Excerpt %d", i+1)
		if c.Title != "" {
			fmt.Fprintf(&b, ": %s", c.Title)
		}
		b.WriteString("\n")
		if c.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", c.Summary)
		}

		switch mode {
		case common.ModeFullQuality:
			fmt.Fprintf(&b, "Text:\n%s\n\n", c.RawText)
		case common.ModeSmartSampling:
			writeList(&b, "Key ideas", c.KeyIdeas)
			names := make([]string, 0, len(c.DetailedConcepts))
			for _, dc := range c.DetailedConcepts {
				names = append(names, dc.Concept)
			}
			writeList(&b, "Concepts", names)
			fmt.Fprintf(&b, "Partial text:\n%s\n\n", util.Truncate(c.RawText, samplingExcerptRunes))
		default:
			writeList(&b, "Key ideas", c.KeyIdeas)
			fmt.Fprintf(&b, "Text:\n%s\n\n", util.Truncate(c.RawText, balancedExcerptRunes))
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func toBatchExtraction(res *extractResponse, chunkIDs []string) BatchExtraction {
	var out BatchExtraction

	add := func(elements []extractElement, fallback common.EntityType) {
		for _, el := range elements {
			name := strings.TrimSpace(el.Name)
			if name == "" {
				continue
			}
			out.Entities = append(out.Entities, common.RawEntityExtraction{
				Name:         name,
				Type:         normalizeEntityType(el.Type, fallback),
				Aliases:      cleanStrings(el.Aliases),
				Desc:         strings.TrimSpace(el.Desc),
				Cat:          strings.TrimSpace(el.Cat),
				Conf:         confidenceOr(el.Conf, defaultEntityConfidence),
				SourceChunks: append([]string(nil), chunkIDs...),
				Examples:     cleanStrings(el.Examples),
				Properties:   el.Properties,
			})
		}
	}
	add(res.Elements, common.EntityConcept)
	add(res.People, common.EntityPerson)
	add(res.Places, common.EntityPlace)
	add(res.Organizations, common.EntityOrganization)
	add(res.Events, common.EntityEvent)
	add(res.Concepts, common.EntityConcept)

	for _, rel := range res.Relationships {
		from, to := strings.TrimSpace(rel.From), strings.TrimSpace(rel.To)
		if from == "" || to == "" {
			continue
		}
		out.Relations = append(out.Relations, common.RawRelationExtraction{
			From:         from,
			To:           to,
			Type:         strings.TrimSpace(rel.Type),
			Desc:         strings.TrimSpace(rel.Desc),
			Conf:         confidenceOr(rel.Conf, defaultRelationConfidence),
			SourceChunks: append([]string(nil), chunkIDs...),
		})
	}

	return out
}

func confidenceOr(c *confidence, def float64) float64 {
	if c == nil || math.IsNaN(float64(*c)) {
		return def
	}
	return clamp01(float64(*c))
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

var entityTypeSynonyms = map[string]common.EntityType{
	"people":       common.EntityPerson,
	"persons":      common.EntityPerson,
	"character":    common.EntityPerson,
	"location":     common.EntityPlace,
	"country":      common.EntityPlace,
	"city":         common.EntityPlace,
	"region":       common.EntityPlace,
	"org":          common.EntityOrganization,
	"organisation": common.EntityOrganization,
	"company":      common.EntityOrganization,
	"institution":  common.EntityOrganization,
	"term":         common.EntityDefinition,
	"terminology":  common.EntityDefinition,
	"technique":    common.EntityMethod,
	"approach":     common.EntityMethod,
	"procedure":    common.EntityProcess,
	"theory":       common.EntityPrinciple,
	"law":          common.EntityPrinciple,
	"rule":         common.EntityPrinciple,
	"theorem":      common.EntityPrinciple,
	"technology":   common.EntityTool,
	"software":     common.EntityTool,
	"instrument":   common.EntityTool,
	"battle":       common.EntityEvent,
	"war":          common.EntityEvent,
	"date":         common.EntityEvent,
	"idea":         common.EntityConcept,
	"topic":        common.EntityConcept,
}

// normalizeEntityType maps a model supplied type onto the known set. Empty
// types take fallback, unknown ones become concept.
func normalizeEntityType(raw string, fallback common.EntityType) common.EntityType {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return fallback
	}
	for _, known := range common.EntityTypes {
		if t == string(known) || t == string(known)+"s" {
			return known
		}
	}
	if mapped, ok := entityTypeSynonyms[t]; ok {
		return mapped
	}
	return common.EntityConcept
}
