package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"github.com/OFFIS-RIT/lumen/backend/pkg/ai"
	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
	"github.com/OFFIS-RIT/lumen/backend/pkg/logger"
)

// Spoken sources are converted to pages at two minutes per page.
const secondsPerPage = 120

// Document is the extracted text of one upload plus what the extractor knows
// about it. Duration is in seconds and only set for audio and video.
type Document struct {
	Text       string  `json:"text"`
	SourceType string  `json:"sourceType"`
	TotalPages int     `json:"totalPages,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	FileName   string  `json:"fileName"`
}

// BuildResult is the outcome of one BuildGraph call.
type BuildResult struct {
	Chunks   []common.StructuredChunk `json:"chunks"`
	Graph    *KnowledgeGraph          `json:"graph"`
	Config   common.ProcessingConfig  `json:"config"`
	Fallback bool                     `json:"fallback"`
	Stats    GraphStats               `json:"stats"`
}

// buildRun holds the state of a single BuildGraph call.
type buildRun struct {
	g      *GraphClient
	client ai.CompletionClient
	doc    Document
	name   string

	started time.Time

	raw           []common.RawChunk
	chunks        []common.StructuredChunk
	config        common.ProcessingConfig
	processed     int
	failedBatches int
}

// BuildGraph runs the whole pipeline for one document: chunk, structure,
// link, select a profile, sample, extract, dedupe and assemble.
//
// Failing completion calls never fail the run, they degrade the affected
// batches. Only a failure inside the chunker and a cancelled ctx are
// returned as errors; any other unexpected failure produces the emergency
// fallback graph with Fallback set.
//
// Example:
//
//	res, err := client.BuildGraph(ctx, graph.Document{
//		Text:       text,
//		SourceType: "pdf",
//		TotalPages: 12,
//		FileName:   "sparta.pdf",
//	}, aiClient)
//	if err != nil {
//		return err
//	}
//	defs := graph.GetDefinitions(res.Graph, 10)
func (g *GraphClient) BuildGraph(
	ctx context.Context,
	doc Document,
	client ai.CompletionClient,
) (*BuildResult, error) {
	if client == nil {
		return nil, errors.New("completion client is nil")
	}

	run := &buildRun{
		g:       g,
		client:  client,
		doc:     doc,
		name:    sourceName(doc),
		started: time.Now(),
	}

	if err := run.chunk(); err != nil {
		return nil, err
	}
	if len(run.raw) == 0 {
		logger.Info("[Pipeline] Nothing to process", "source", run.name, "err", ErrEmptyDocument)
		run.config = g.SelectConfig(nil, run.pages())
		return run.result(Assemble(nil, nil, run.metadata(false)), false), nil
	}

	res, err := run.execute(ctx)
	if err != nil {
		return nil, err
	}

	pipelineDuration.WithLabelValues(string(res.Config.ProcessingMode)).Observe(time.Since(run.started).Seconds())
	logger.Info("[Pipeline] Graph built",
		"source", run.name,
		"mode", res.Config.ProcessingMode,
		"chunks", len(res.Chunks),
		"processed", run.processed,
		"entities", res.Stats.TotalEntities,
		"relations", res.Stats.TotalRelations,
		"expected", res.Config.ExpectedEntities,
		"failed_batches", run.failedBatches,
		"fallback", res.Fallback,
		"duration", time.Since(run.started).Round(time.Millisecond),
	)
	return res, nil
}

func (r *buildRun) chunk() (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("[Chunk] Chunker panicked", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("chunking failed: %v", p)
		}
	}()

	r.raw = Chunk(CleanText(r.doc.Text), r.g.chunkOptions(r.doc))
	logger.Debug("[Chunk] Document chunked", "source", r.name, "count", len(r.raw))
	return nil
}

func (r *buildRun) execute(ctx context.Context) (res *BuildResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("[Pipeline] Stage panicked, using emergency fallback",
				"source", r.name,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			res, err = r.emergency(), nil
		}
	}()

	pages := r.pages()
	preliminary := r.g.tiers.Select(len(r.raw), pages)

	var failed int
	r.chunks, failed = r.g.StructureChunks(ctx, r.raw, r.name, preliminary.BatchSize, r.client)
	r.failedBatches += failed
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	LinkChunks(r.chunks)

	r.config = r.g.SelectConfig(r.chunks, pages)
	selected := SampleChunks(r.chunks, r.config.MaxChunksToProcess)
	r.processed = len(selected)
	logger.Debug("[Pipeline] Processing profile selected",
		"mode", r.config.ProcessingMode,
		"pages", r.config.EstimatedPages,
		"selected", len(selected),
		"batch_size", r.config.BatchSize,
		"model", r.config.Model,
	)

	extractCtx := ctx
	if r.g.enforceTargetTime && r.config.TargetTimeMinutes > 0 {
		budget := time.Duration(r.config.TargetTimeMinutes * float64(time.Minute))
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithDeadline(ctx, r.started.Add(budget))
		defer cancel()
	}

	extracted := r.g.ExtractEntities(extractCtx, selected, r.name, r.config, r.client)
	r.failedBatches += extracted.FailedBatches
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entities := DedupeEntities(extracted.Entities, r.config.ConfidenceThreshold)
	relations := MergeRelations(extracted.Relations, entities, r.config.ConfidenceThreshold)
	graph := Assemble(entities, relations, r.metadata(false))

	return r.result(graph, false), nil
}

// emergency builds the minimal graph from string heuristics only.
func (r *buildRun) emergency() *BuildResult {
	emergencyTotal.Inc()
	if r.config.ProcessingMode == "" {
		r.config = r.g.tiers.Select(len(r.raw), r.pages())
		r.config.Model = r.g.modelFor(r.config.ProcessingMode)
	}

	chunks, entities := r.g.emergencyFallback(r.raw)
	r.chunks = chunks
	r.processed = len(chunks)

	return r.result(Assemble(entities, nil, r.metadata(true)), true)
}

func (r *buildRun) result(graph *KnowledgeGraph, fallback bool) *BuildResult {
	chunks := r.chunks
	if chunks == nil {
		chunks = []common.StructuredChunk{}
	}
	return &BuildResult{
		Chunks:   chunks,
		Graph:    graph,
		Config:   r.config,
		Fallback: fallback,
		Stats:    GetStats(graph),
	}
}

func (r *buildRun) metadata(emergency bool) common.GraphMetadata {
	return common.GraphMetadata{
		SourceName:       r.name,
		TotalChunks:      len(r.raw),
		LastUpdated:      time.Now().UTC(),
		Version:          graphVersion,
		ProcessingMode:   r.config.ProcessingMode,
		TargetEntities:   r.config.ExpectedEntities,
		SourceType:       r.doc.SourceType,
		ProcessedChunks:  r.processed,
		FailedBatches:    r.failedBatches,
		EmergencyOutcome: emergency,
	}
}

// pages is the reported page count, derived from the duration for spoken
// sources, or 0 when unknown.
func (r *buildRun) pages() int {
	if r.doc.TotalPages > 0 {
		return r.doc.TotalPages
	}
	if r.doc.Duration > 0 {
		return max(1, int(math.Ceil(r.doc.Duration/secondsPerPage)))
	}
	return 0
}
