package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	stageStructure = "structure"
	stageExtract   = "extract"

	statusOK       = "ok"
	statusFailed   = "failed"
	statusFallback = "fallback"
)

var (
	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lumen_pipeline_duration_seconds",
			Help:    "Time taken to build a knowledge graph from one document",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumen_pipeline_batches_total",
			Help: "Completion batches by pipeline stage and outcome",
		},
		[]string{"stage", "status"},
	)

	entitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumen_graph_entities_total",
			Help: "Entities emitted into knowledge graphs by type",
		},
		[]string{"entity_type"},
	)

	emergencyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lumen_pipeline_emergency_fallbacks_total",
			Help: "Pipeline runs that degraded to the emergency fallback graph",
		},
	)
)
