package openai

import (
	"github.com/OFFIS-RIT/lumen/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// GraphOpenAIClient is the text-completion collaborator backed by an
// OpenAI compatible chat completions endpoint.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	ai.MetricsRecorder

	model         string
	chatURL       string
	useJSONSchema bool

	reqLock *semaphore.Weighted

	ChatClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for creating
// a new GraphOpenAIClient.
//
// Model is the default chat model, callers override it per request with
// ai.WithModel. ChatURL may be empty to use the public OpenAI API.
// UseJSONSchema sends the reflected JSON schema of the output type instead of
// the plain json_object response format; not every compatible server
// supports it.
type NewGraphOpenAIClientParams struct {
	Model   string
	ChatURL string
	ChatKey string

	MaxConcurrentRequests int64
	MaxRetries            int
	UseJSONSchema         bool
}

// NewGraphOpenAIClient creates and returns a new GraphOpenAIClient configured with
// the provided parameters.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		Model:                 "gpt-4o-mini",
//		ChatKey:               os.Getenv("OPENAI_API_KEY"),
//		MaxConcurrentRequests: 4,
//	})
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 4
	}

	return &GraphOpenAIClient{
		model:         params.Model,
		chatURL:       params.ChatURL,
		useJSONSchema: params.UseJSONSchema,
		reqLock:       semaphore.NewWeighted(maxReq),
		ChatClient:    newOpenaiClient(params.ChatURL, params.ChatKey, params.MaxRetries),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
	maxRetries int,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(max(maxRetries, 0)),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
