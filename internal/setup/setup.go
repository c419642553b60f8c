package setup

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/lumen/backend/internal/util"
	"github.com/OFFIS-RIT/lumen/backend/pkg/ai"
	oai "github.com/OFFIS-RIT/lumen/backend/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/lumen/backend/pkg/ai/openai"
	"github.com/OFFIS-RIT/lumen/backend/pkg/graph"
	"github.com/OFFIS-RIT/lumen/backend/pkg/logger"
	"github.com/OFFIS-RIT/lumen/backend/pkg/logger/console"
)

// Logger installs the console logger configured by DEBUG and LOG_JSON.
func Logger(prefix string) {
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		JSON:   util.GetEnvBool("LOG_JSON", false),
		Prefix: prefix,
	}))
}

// AIClient builds the completion client selected by AI_ADAPTER.
func AIClient() (ai.CompletionClient, error) {
	parallel := int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4))

	switch adapter := util.GetEnvString("AI_ADAPTER", "openai"); adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			Model:                 util.GetEnv("AI_CHAT_MODEL"),
			BaseURL:               util.GetEnv("AI_CHAT_URL"),
			ApiKey:                util.GetEnv("AI_CHAT_KEY"),
			MaxConcurrentRequests: parallel,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create Ollama client: %w", err)
		}
		return client, nil
	case "openai":
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			Model:                 util.GetEnvString("AI_CHAT_MODEL", "gpt-4o-mini"),
			ChatURL:               util.GetEnv("AI_CHAT_URL"),
			ChatKey:               util.GetEnv("AI_CHAT_KEY"),
			MaxConcurrentRequests: parallel,
			MaxRetries:            int(util.GetEnvNumeric("AI_CLIENT_RETRIES", 2)),
			UseJSONSchema:         util.GetEnvBool("AI_JSON_SCHEMA", false),
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", adapter)
	}
}

// GraphClient builds the pipeline client from the GRAPH_* variables. When
// GRAPH_TIERS_FILE is set the processing tiers are read from that YAML file.
func GraphClient() (*graph.GraphClient, error) {
	var tiers graph.Tiers
	if path := util.GetEnv("GRAPH_TIERS_FILE"); path != "" {
		t, err := graph.LoadTiers(path)
		if err != nil {
			return nil, err
		}
		tiers = t
		logger.Info("Loaded processing tiers", "file", path, "tiers", len(t))
	}

	return graph.NewGraphClient(graph.NewGraphClientParams{
		TokenEncoder:       util.GetEnvString("GRAPH_TOKEN_ENCODER", "o200k_base"),
		ParallelAiRequests: int(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		MaxRetries:         int(util.GetEnvNumeric("GRAPH_MAX_RETRIES", 2)),
		RetryBackoff:       util.GetEnvDuration("GRAPH_RETRY_BACKOFF", time.Second),
		CallTimeout:        util.GetEnvDuration("GRAPH_CALL_TIMEOUT", 90*time.Second),
		WaveDelay:          util.GetEnvDuration("GRAPH_WAVE_DELAY", 0),
		EnforceTargetTime:  util.GetEnvBool("GRAPH_ENFORCE_TARGET_TIME", false),
		DefaultModel:       util.GetEnv("AI_CHAT_MODEL"),
		QualityModel:       util.GetEnv("AI_QUALITY_MODEL"),
		MaxTokensPerChunk:  int(util.GetEnvNumeric("GRAPH_MAX_CHUNK_TOKENS", 1000)),
		OverlapTokens:      int(util.GetEnvNumeric("GRAPH_OVERLAP_TOKENS", 100)),
		Tiers:              tiers,
	})
}
