package graph

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"

	"gopkg.in/yaml.v3"
)

// pagesPerChunk estimates the page count when the source did not report one.
const pagesPerChunk = 3

// Tier is one row of the adaptive processing table. The first tier whose
// MaxPages is not below the estimated page count applies; the last tier has
// MaxPages 0 and catches everything else.
//
// With ChunksPerPage 0 every chunk is processed, otherwise the chunk budget
// is pages*ChunksPerPage clamped into [MinChunks, MaxChunks].
type Tier struct {
	Mode                common.ProcessingMode `yaml:"mode"`
	MaxPages            int                   `yaml:"max_pages"`
	ChunksPerPage       float64               `yaml:"chunks_per_page"`
	MinChunks           int                   `yaml:"min_chunks"`
	MaxChunks           int                   `yaml:"max_chunks"`
	BatchSize           int                   `yaml:"batch_size"`
	MaxEntitiesPerBatch int                   `yaml:"max_entities_per_batch"`
	ConfidenceThreshold float64               `yaml:"confidence_threshold"`
	TargetTimeMinutes   float64               `yaml:"target_time_minutes"`
	EntitiesPerPage     float64               `yaml:"entities_per_page"`
	MaxTokens           int                   `yaml:"max_tokens"`
	QualityModel        bool                  `yaml:"quality_model"`
}

// Tiers is the ordered tier table.
type Tiers []Tier

// DefaultTiers returns the built-in table: FULL_QUALITY up to 10 pages,
// BALANCED up to 50 pages and SMART_SAMPLING beyond.
func DefaultTiers() Tiers {
	return Tiers{
		{
			Mode:                common.ModeFullQuality,
			MaxPages:            10,
			BatchSize:           2,
			MaxEntitiesPerBatch: 15,
			ConfidenceThreshold: 0.45,
			TargetTimeMinutes:   1,
			EntitiesPerPage:     4,
			MaxTokens:           3000,
			QualityModel:        true,
		},
		{
			Mode:                common.ModeBalanced,
			MaxPages:            50,
			ChunksPerPage:       0.5,
			MinChunks:           15,
			MaxChunks:           25,
			BatchSize:           3,
			MaxEntitiesPerBatch: 12,
			ConfidenceThreshold: 0.5,
			TargetTimeMinutes:   3,
			EntitiesPerPage:     3,
			MaxTokens:           2500,
		},
		{
			Mode:                common.ModeSmartSampling,
			ChunksPerPage:       0.25,
			MinChunks:           20,
			MaxChunks:           40,
			BatchSize:           4,
			MaxEntitiesPerBatch: 10,
			ConfidenceThreshold: 0.52,
			TargetTimeMinutes:   6,
			EntitiesPerPage:     2,
			MaxTokens:           2000,
		},
	}
}

type tierFile struct {
	Tiers Tiers `yaml:"tiers"`
}

// LoadTiers reads a tier table from a YAML file of the form
//
//	tiers:
//	  - mode: FULL_QUALITY
//	    max_pages: 10
//	    batch_size: 2
//	    ...
func LoadTiers(path string) (Tiers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f tierFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse tier file %s: %w", path, err)
	}
	if err := f.Tiers.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tier file %s: %w", path, err)
	}
	return f.Tiers, nil
}

// Validate checks that page bounds ascend and end with an open tier and that
// every tier has usable batch and threshold values.
func (t Tiers) Validate() error {
	if len(t) == 0 {
		return errors.New("no tiers defined")
	}
	prev := 0
	for i, tier := range t {
		last := i == len(t)-1
		switch {
		case tier.Mode == "":
			return fmt.Errorf("tier %d: mode is required", i)
		case last && tier.MaxPages != 0:
			return fmt.Errorf("tier %d: last tier must have max_pages 0", i)
		case !last && tier.MaxPages <= prev:
			return fmt.Errorf("tier %d: max_pages must be greater than %d", i, prev)
		case tier.BatchSize < 1:
			return fmt.Errorf("tier %d: batch_size must be at least 1", i)
		case tier.ConfidenceThreshold < 0 || tier.ConfidenceThreshold > 1:
			return fmt.Errorf("tier %d: confidence_threshold must be within [0,1]", i)
		case tier.ChunksPerPage < 0:
			return fmt.Errorf("tier %d: chunks_per_page must not be negative", i)
		case tier.MaxChunks > 0 && tier.MinChunks > tier.MaxChunks:
			return fmt.Errorf("tier %d: min_chunks exceeds max_chunks", i)
		}
		prev = tier.MaxPages
	}
	return nil
}

// Select derives the processing config for a document with chunkCount
// structured chunks. totalPages <= 0 means the page count is unknown.
func (t Tiers) Select(chunkCount int, totalPages int) common.ProcessingConfig {
	pages := totalPages
	if pages <= 0 {
		pages = chunkCount * pagesPerChunk
	}

	tier := t[len(t)-1]
	for _, candidate := range t {
		if candidate.MaxPages == 0 || pages <= candidate.MaxPages {
			tier = candidate
			break
		}
	}

	maxChunks := chunkCount
	if tier.ChunksPerPage > 0 {
		maxChunks = int(math.Round(float64(pages) * tier.ChunksPerPage))
		maxChunks = max(maxChunks, tier.MinChunks)
		if tier.MaxChunks > 0 {
			maxChunks = min(maxChunks, tier.MaxChunks)
		}
	}

	return common.ProcessingConfig{
		ProcessingMode:      tier.Mode,
		MaxChunksToProcess:  maxChunks,
		BatchSize:           tier.BatchSize,
		MaxEntitiesPerBatch: tier.MaxEntitiesPerBatch,
		ConfidenceThreshold: tier.ConfidenceThreshold,
		TargetTimeMinutes:   tier.TargetTimeMinutes,
		ExpectedEntities:    max(5, int(math.Round(float64(pages)*tier.EntitiesPerPage))),
		MaxTokens:           tier.MaxTokens,
		EstimatedPages:      pages,
	}
}

// SelectConfig picks the processing profile for the structured chunk set and
// the model that goes with it.
func (g *GraphClient) SelectConfig(chunks []common.StructuredChunk, totalPages int) common.ProcessingConfig {
	cfg := g.tiers.Select(len(chunks), totalPages)
	cfg.Model = g.modelFor(cfg.ProcessingMode)
	return cfg
}

func (g *GraphClient) modelFor(mode common.ProcessingMode) string {
	for _, tier := range g.tiers {
		if tier.Mode == mode && tier.QualityModel && g.qualityModel != "" {
			return g.qualityModel
		}
	}
	return g.defaultModel
}
