package graph

import (
	"fmt"
	"time"
)

// GraphClient runs the document-to-knowledge-graph pipeline. It holds only
// immutable configuration and is safe for concurrent use; every call to
// BuildGraph keeps its state in its own run value.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	tokenEncoder       string
	parallelAiRequests int
	maxRetries         int
	retryBackoff       time.Duration
	callTimeout        time.Duration
	waveDelay          time.Duration
	enforceTargetTime  bool

	defaultModel string
	qualityModel string

	maxTokensPerChunk int
	overlapTokens     int

	tiers  Tiers
	tokens *tokenCounter
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// TokenEncoder names the tiktoken encoding used for chunk token counts, an
// empty encoder uses the 4 characters per token estimate.
// ParallelAiRequests is the wave size, i.e. how many completion calls are in
// flight at once. MaxRetries is the number of additional attempts per call.
// CallTimeout bounds a single completion call, WaveDelay is the pause
// between two waves. Tiers defaults to DefaultTiers.
type NewGraphClientParams struct {
	TokenEncoder       string
	ParallelAiRequests int
	MaxRetries         int
	RetryBackoff       time.Duration
	CallTimeout        time.Duration
	WaveDelay          time.Duration
	EnforceTargetTime  bool

	DefaultModel string
	QualityModel string

	MaxTokensPerChunk int
	OverlapTokens     int

	Tiers Tiers
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	params := graph.NewGraphClientParams{
//		TokenEncoder:       "o200k_base",
//		ParallelAiRequests: 4,
//		CallTimeout:        90 * time.Second,
//	}
//	client, err := graph.NewGraphClient(params)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Returns a pointer to GraphClient and an error if the tier table is invalid.
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	tiers := params.Tiers
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	if err := tiers.Validate(); err != nil {
		return nil, fmt.Errorf("invalid processing tiers: %w", err)
	}

	parallel := params.ParallelAiRequests
	if parallel <= 0 {
		parallel = 4
	}
	maxRetries := params.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	callTimeout := params.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 90 * time.Second
	}
	maxTokens := params.MaxTokensPerChunk
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	overlap := params.OverlapTokens
	if overlap < 0 {
		overlap = 0
	}

	g := &GraphClient{
		tokenEncoder:       params.TokenEncoder,
		parallelAiRequests: parallel,
		maxRetries:         maxRetries,
		retryBackoff:       params.RetryBackoff,
		callTimeout:        callTimeout,
		waveDelay:          max(params.WaveDelay, 0),
		enforceTargetTime:  params.EnforceTargetTime,
		defaultModel:       params.DefaultModel,
		qualityModel:       params.QualityModel,
		maxTokensPerChunk:  maxTokens,
		overlapTokens:      overlap,
		tiers:              tiers,
		tokens:             newTokenCounter(params.TokenEncoder),
	}

	return g, nil
}

func (g *GraphClient) chunkOptions(doc Document) ChunkOptions {
	return ChunkOptions{
		MaxTokensPerChunk: g.maxTokensPerChunk,
		OverlapTokens:     g.overlapTokens,
		SourceType:        doc.SourceType,
		FileName:          doc.FileName,
	}
}
