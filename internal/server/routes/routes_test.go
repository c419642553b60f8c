package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/lumen/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/lumen/backend/pkg/ai"
	"github.com/OFFIS-RIT/lumen/backend/pkg/graph"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

type testValidator struct {
	v *validator.Validate
}

func (tv *testValidator) Validate(i any) error { return tv.v.Struct(i) }

// offlineClient fails every completion, which drives the pipeline through
// its degraded path without a model.
type offlineClient struct {
	ai.MetricsRecorder
}

func (*offlineClient) GenerateCompletionWithFormat(context.Context, string, string, string, any, ...ai.GenerateOption) error {
	return errors.New("offline")
}

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()
	gc, err := graph.NewGraphClient(graph.NewGraphClientParams{ParallelAiRequests: 2})
	if err != nil {
		t.Fatal(err)
	}
	app := &middleware.App{Graph: gc, AiClient: &offlineClient{}}

	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}
	e.Use(middleware.AppContextMiddleware(app))
	e.POST("/graphs", BuildGraphHandler)
	e.POST("/graphs/jobs", CreateGraphJobHandler)
	e.GET("/graphs/jobs/:id/links", GetGraphJobLinksHandler)
	e.POST("/graphs/query", QueryGraphHandler)
	e.POST("/graphs/enrich", EnrichContentHandler)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const snapshot = `{
  "entities": {
    "person_leonidas": {"id": "person_leonidas", "type": "person", "name": "Leonidas", "confidence": 0.9, "category": "history", "descriptions": ["King of Sparta."]},
    "definition_helot": {"type": "definition", "name": "Helot", "confidence": 0.8, "category": "history", "descriptions": ["A state-owned serf of Sparta."]},
    "place_thermopylae": {"id": "place_thermopylae", "type": "place", "name": "Thermopylae", "confidence": 0.5}
  },
  "relations": {
    "person_leonidas__fought_at__place_thermopylae": {"from": "person_leonidas", "to": "place_thermopylae", "type": "fought_at", "confidence": 0.8}
  },
  "metadata": {"sourceName": "sparta.pdf", "totalChunks": 3, "version": 1, "processingMode": "FULL_QUALITY"}
}`

func TestBuildGraphHandler(t *testing.T) {
	e := newTestEcho(t)

	text := strings.Repeat("The Spartans trained in the agoge from the age of seven. ", 20)
	body, _ := json.Marshal(map[string]any{"text": text, "source_type": "text", "file_name": "sparta.txt"})
	rec := do(e, http.MethodPost, "/graphs", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Result struct {
			Graph struct {
				Entities map[string]any `json:"entities"`
				Metadata struct {
					SourceName    string `json:"sourceName"`
					FailedBatches int    `json:"failedBatches"`
				} `json:"metadata"`
			} `json:"graph"`
			Chunks []any `json:"chunks"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Result.Chunks) == 0 {
		t.Error("no chunks in response")
	}
	if resp.Result.Graph.Metadata.SourceName != "sparta.txt" {
		t.Errorf("sourceName = %q", resp.Result.Graph.Metadata.SourceName)
	}
	if resp.Result.Graph.Metadata.FailedBatches == 0 {
		t.Error("failedBatches = 0, want the offline client failures recorded")
	}
}

func TestHandlersRejectInvalidBodies(t *testing.T) {
	e := newTestEcho(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"build without text", "/graphs", `{"source_type": "pdf"}`},
		{"build negative pages", "/graphs", `{"text": "x", "total_pages": -1}`},
		{"build malformed", "/graphs", `{"text": `},
		{"job without key", "/graphs/jobs", `{"file_name": "a.pdf"}`},
		{"query without graph", "/graphs/query", `{"min_confidence": 0.5}`},
		{"query confidence range", "/graphs/query", `{"graph": {}, "min_confidence": 2}`},
		{"enrich unknown type", "/graphs/enrich", `{"base_text": "x", "content_type": "essay", "graph": {}}`},
		{"enrich without text", "/graphs/enrich", `{"content_type": "notes", "graph": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestJobHandlersWithoutBackends(t *testing.T) {
	e := newTestEcho(t)

	if rec := do(e, http.MethodPost, "/graphs/jobs", `{"file_key": "texts/a.txt"}`); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("create job status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec := do(e, http.MethodGet, "/graphs/jobs/abc/links", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("links status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestQueryGraphHandler(t *testing.T) {
	e := newTestEcho(t)

	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{"all", `{}`, []string{"Leonidas", "Helot", "Thermopylae"}},
		{"min confidence", `{"min_confidence": 0.6}`, []string{"Leonidas", "Helot"}},
		{"by type", `{"types": ["definition"]}`, []string{"Helot"}},
		{"max results", `{"max_results": 1}`, []string{"Leonidas"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			if err := json.Unmarshal([]byte(tt.filter), &body); err != nil {
				t.Fatal(err)
			}
			body["graph"] = json.RawMessage(snapshot)
			raw, _ := json.Marshal(body)

			rec := do(e, http.MethodPost, "/graphs/query", string(raw))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			var resp struct {
				Entities []struct {
					Name string `json:"name"`
				} `json:"entities"`
				Stats graph.GraphStats `json:"stats"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, e := range resp.Entities {
				got = append(got, e.Name)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("entities = %v, want %v", got, tt.want)
			}
			if resp.Stats.TotalEntities != 3 || resp.Stats.TotalRelations != 1 {
				t.Errorf("stats = %+v", resp.Stats)
			}
		})
	}
}

func TestEnrichContentHandler(t *testing.T) {
	e := newTestEcho(t)

	body := `{"base_text": "Write flashcards.", "content_type": "flashcards", "graph": ` + snapshot + `}`
	rec := do(e, http.MethodPost, "/graphs/enrich", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.Text, "Write flashcards.") {
		t.Errorf("text does not start with the base text: %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "Helot") {
		t.Errorf("flashcard enrichment misses the definition: %q", resp.Text)
	}
}
