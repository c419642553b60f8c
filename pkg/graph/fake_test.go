package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OFFIS-RIT/lumen/backend/pkg/ai"
)

var errFakeUnavailable = errors.New("completion service unavailable")

// fakeClient is a scripted ai.CompletionClient. respond gets the request
// name, the joined system prompts and the user prompt.
type fakeClient struct {
	ai.MetricsRecorder

	respond func(name, system, prompt string) (string, error)
	delay   time.Duration

	mu      sync.Mutex
	prompts []string
	models  []string

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	options := ai.ApplyOptions(ai.GenerateOptions{}, opts...)
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.models = append(f.models, options.Model)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.delay):
		}
	}

	resp, err := f.respond(name, strings.Join(options.SystemPrompts, "\n"), prompt)
	if err != nil {
		return err
	}
	f.Record(ai.ModelMetrics{InputTokens: len(prompt) / 4, OutputTokens: len(resp) / 4})
	return ai.UnmarshalFlexible(resp, out)
}

func failingClient() *fakeClient {
	return &fakeClient{respond: func(string, string, string) (string, error) {
		return "", errFakeUnavailable
	}}
}

func panickingClient() *fakeClient {
	return &fakeClient{respond: func(string, string, string) (string, error) {
		panic("unexpected response state")
	}}
}

// structureJSON answers a structure request with one entry per excerpt.
func structureJSON(prompt string) string {
	n := strings.Count(prompt, "## Excerpt ")
	entries := make([]map[string]any, 0, n)
	for i := range n {
		entries = append(entries, map[string]any{
			"chunkIndex": i,
			"title":      fmt.Sprintf("Part %d", i),
			"summary":    fmt.Sprintf("Summary of excerpt %d.", i),
			"keyIdeas":   []string{"Sparta trained its citizens as soldiers."},
			"detailedConcepts": []map[string]any{
				{"concept": "Spartan army", "explanation": "The army of Sparta."},
			},
			"chunkType":    "explanation",
			"importance":   "high",
			"dependencies": []string{"Ancient Greece"},
		})
	}
	data, _ := json.Marshal(map[string]any{"chunks": entries})
	return string(data)
}

const spartaExtractJSON = `{
  "elements": [
    {"name": "Leonidas", "type": "person", "aliases": [], "desc": "King of Sparta.", "cat": "history", "conf": 0.8},
    {"name": "King Leonidas", "type": "person", "aliases": ["Leonidas"], "desc": "Spartan king who led the defence at Thermopylae.", "cat": "history", "conf": 0.75},
    {"name": "Thermopylae", "type": "place", "desc": "Narrow coastal pass.", "cat": "history", "conf": "0.9", "examples": ["Battle of 480 BC"]},
    {"name": "Agoge", "type": "process", "desc": "Spartan education system.", "conf": 0.7},
    {"name": "", "type": "concept", "desc": "nameless", "conf": 0.9},
    {"name": "Rumour", "type": "concept", "desc": "Weak mention.", "conf": 0.2}
  ],
  "relationships": [
    {"from": "King Leonidas", "to": "Thermopylae", "type": "fought at", "desc": "Led the defence.", "conf": 0.8},
    {"from": "Leonidas", "to": "Nowhere", "type": "visited", "conf": 0.9}
  ]
}`

// spartaClient answers structure and extraction requests with fixed data.
func spartaClient() *fakeClient {
	return &fakeClient{respond: func(name, system, prompt string) (string, error) {
		switch name {
		case "structure_chunks":
			return structureJSON(prompt), nil
		case "extract_knowledge_elements":
			return spartaExtractJSON, nil
		default:
			return "", fmt.Errorf("unexpected request %q", name)
		}
	}}
}

func newTestClient(t interface{ Fatalf(string, ...any) }, mutate ...func(*NewGraphClientParams)) *GraphClient {
	params := NewGraphClientParams{
		ParallelAiRequests: 4,
		MaxRetries:         0,
		CallTimeout:        5 * time.Second,
		DefaultModel:       "balanced-model",
		QualityModel:       "quality-model",
		MaxTokensPerChunk:  50,
		OverlapTokens:      10,
	}
	for _, m := range mutate {
		m(&params)
	}
	g, err := NewGraphClient(params)
	if err != nil {
		t.Fatalf("NewGraphClient() error = %v", err)
	}
	return g
}

// paragraphs builds n distinct paragraphs of roughly 150 characters.
func paragraphs(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("Paragraph %d describes how Sparta trained young citizens in the agoge. "+
			"Training lasted many years and shaped the Spartan army.", i)
	}
	return strings.Join(parts, "\n\n")
}
