package graph

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

func TestTiersSelect(t *testing.T) {
	tiers := DefaultTiers()

	tests := []struct {
		name          string
		chunks        int
		pages         int
		wantMode      common.ProcessingMode
		wantBatch     int
		wantThreshold float64
		minChunks     int
		maxChunks     int
	}{
		{
			name:          "five pages",
			chunks:        4,
			pages:         5,
			wantMode:      common.ModeFullQuality,
			wantBatch:     2,
			wantThreshold: 0.45,
			minChunks:     4,
			maxChunks:     4,
		},
		{
			name:          "ten pages is still full quality",
			chunks:        9,
			pages:         10,
			wantMode:      common.ModeFullQuality,
			wantBatch:     2,
			wantThreshold: 0.45,
			minChunks:     9,
			maxChunks:     9,
		},
		{
			name:          "thirty pages",
			chunks:        30,
			pages:         30,
			wantMode:      common.ModeBalanced,
			wantBatch:     3,
			wantThreshold: 0.5,
			minChunks:     15,
			maxChunks:     25,
		},
		{
			name:          "two hundred pages",
			chunks:        150,
			pages:         200,
			wantMode:      common.ModeSmartSampling,
			wantBatch:     4,
			wantThreshold: 0.52,
			minChunks:     20,
			maxChunks:     40,
		},
		{
			name:          "unknown pages estimated from chunks",
			chunks:        4,
			pages:         0,
			wantMode:      common.ModeBalanced,
			wantBatch:     3,
			wantThreshold: 0.5,
			minChunks:     15,
			maxChunks:     25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tiers.Select(tt.chunks, tt.pages)
			if got.ProcessingMode != tt.wantMode {
				t.Errorf("ProcessingMode = %s, want %s", got.ProcessingMode, tt.wantMode)
			}
			if got.BatchSize != tt.wantBatch {
				t.Errorf("BatchSize = %d, want %d", got.BatchSize, tt.wantBatch)
			}
			if got.ConfidenceThreshold != tt.wantThreshold {
				t.Errorf("ConfidenceThreshold = %v, want %v", got.ConfidenceThreshold, tt.wantThreshold)
			}
			if got.MaxChunksToProcess < tt.minChunks || got.MaxChunksToProcess > tt.maxChunks {
				t.Errorf("MaxChunksToProcess = %d, want within [%d,%d]", got.MaxChunksToProcess, tt.minChunks, tt.maxChunks)
			}
			if got.ExpectedEntities <= 0 {
				t.Errorf("ExpectedEntities = %d, want > 0", got.ExpectedEntities)
			}
		})
	}
}

func TestSelectConfigModel(t *testing.T) {
	g := newTestClient(t)

	small := g.SelectConfig(make([]common.StructuredChunk, 2), 3)
	if small.Model != "quality-model" {
		t.Errorf("full quality model = %q, want quality-model", small.Model)
	}
	large := g.SelectConfig(make([]common.StructuredChunk, 80), 0)
	if large.Model != "balanced-model" {
		t.Errorf("sampling model = %q, want balanced-model", large.Model)
	}
}

func TestTiersValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(Tiers) Tiers
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(t Tiers) Tiers { return t },
		},
		{
			name:    "empty table",
			mutate:  func(Tiers) Tiers { return nil },
			wantErr: "no tiers",
		},
		{
			name: "last tier bounded",
			mutate: func(t Tiers) Tiers {
				t[2].MaxPages = 500
				return t
			},
			wantErr: "last tier",
		},
		{
			name: "pages not ascending",
			mutate: func(t Tiers) Tiers {
				t[1].MaxPages = 5
				return t
			},
			wantErr: "max_pages",
		},
		{
			name: "zero batch size",
			mutate: func(t Tiers) Tiers {
				t[0].BatchSize = 0
				return t
			},
			wantErr: "batch_size",
		},
		{
			name: "threshold above one",
			mutate: func(t Tiers) Tiers {
				t[1].ConfidenceThreshold = 1.5
				return t
			},
			wantErr: "confidence_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(DefaultTiers()).Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTiers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiers.yaml")
	content := `tiers:
  - mode: FULL_QUALITY
    max_pages: 20
    batch_size: 1
    max_entities_per_batch: 20
    confidence_threshold: 0.4
    target_time_minutes: 2
    entities_per_page: 5
    quality_model: true
  - mode: SMART_SAMPLING
    max_pages: 0
    chunks_per_page: 0.2
    min_chunks: 10
    max_chunks: 30
    batch_size: 5
    confidence_threshold: 0.6
    target_time_minutes: 4
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	tiers, err := LoadTiers(path)
	if err != nil {
		t.Fatalf("LoadTiers() error = %v", err)
	}
	if len(tiers) != 2 {
		t.Fatalf("LoadTiers() returned %d tiers, want 2", len(tiers))
	}

	cfg := tiers.Select(10, 15)
	if cfg.ProcessingMode != common.ModeFullQuality || cfg.BatchSize != 1 {
		t.Errorf("Select(15 pages) = %s/%d, want FULL_QUALITY/1", cfg.ProcessingMode, cfg.BatchSize)
	}
	cfg = tiers.Select(100, 300)
	if cfg.ProcessingMode != common.ModeSmartSampling || cfg.MaxChunksToProcess != 30 {
		t.Errorf("Select(300 pages) = %s/%d, want SMART_SAMPLING/30", cfg.ProcessingMode, cfg.MaxChunksToProcess)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("tiers:\n  - mode: BALANCED\n    max_pages: 10\n    batch_size: 1\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadTiers(bad); err == nil {
		t.Errorf("LoadTiers() should reject a table without an open last tier")
	}
}
