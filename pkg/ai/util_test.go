package ai

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

type testElement struct {
	Name string  `json:"name"`
	Type string  `json:"type,omitempty"`
	Conf float64 `json:"conf,omitempty"`
}

type testStructureEntry struct {
	ChunkIndex int      `json:"chunkIndex"`
	Title      string   `json:"title"`
	KeyIdeas   []string `json:"keyIdeas"`
}

type testStructureResponse struct {
	Chunks []testStructureEntry `json:"chunks"`
}

func TestUnmarshalFlexible_ExtractionElement(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  testElement
	}{
		{
			name:  "valid json object",
			input: `{"name":"Leonidas","type":"person"}`,
			want:  testElement{Name: "Leonidas", Type: "person"},
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{name: 'Leonidas', type: 'person'}`,
			want:  testElement{Name: "Leonidas", Type: "person"},
		},
		{
			name:  "trailing comma",
			input: `{"name":"Agoge","conf":0.8,}`,
			want:  testElement{Name: "Agoge", Conf: 0.8},
		},
		{
			name:  "truncated answer",
			input: `{"name":"Agoge`,
			want:  testElement{Name: "Agoge"},
		},
		{
			name:  "stringified invalid json object",
			input: `"{name: 'Helot'}"`,
			want:  testElement{Name: "Helot"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"name\": \"Helot\"\n}\n",
			want:  testElement{Name: "Helot"},
		},
		{
			name:  "duplicate leading brace no newlines",
			input: `{ { "name": "Helot" }`,
			want:  testElement{Name: "Helot"},
		},
		{
			name:  "markdown code fence",
			input: "```json\n{\"name\": \"Phalanx\", \"type\": \"concept\", \"conf\": 0.7}\n```",
			want:  testElement{Name: "Phalanx", Type: "concept", Conf: 0.7},
		},
		{
			name:  "bare code fence",
			input: "```\n{\"name\": \"Phalanx\"}\n```",
			want:  testElement{Name: "Phalanx"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got testElement
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_ElementList(t *testing.T) {
	input := `[{name:'Sparta'},{name:'Athens',}]`
	var got []testElement
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "Sparta" || got[1].Name != "Athens" {
		t.Fatalf("UnmarshalFlexible() got = %+v, want Sparta, Athens", got)
	}
}

func TestUnmarshalFlexible_StructureResponse(t *testing.T) {
	want := testStructureResponse{Chunks: []testStructureEntry{
		{ChunkIndex: 0, Title: "The agoge", KeyIdeas: []string{"Training began at seven", "Boys lived in barracks"}},
		{ChunkIndex: 1, Title: "Thermopylae", KeyIdeas: []string{"A narrow pass"}},
	}}

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "plain",
			input: `{"chunks": [{"chunkIndex": 0, "title": "The agoge", "keyIdeas": ["Training began at seven", "Boys lived in barracks"]}, {"chunkIndex": 1, "title": "Thermopylae", "keyIdeas": ["A narrow pass"]}]}`,
		},
		{
			name:  "double encoded",
			input: `"{\"chunks\": [{\"chunkIndex\": 0, \"title\": \"The agoge\", \"keyIdeas\": [\"Training began at seven\", \"Boys lived in barracks\"]}, {\"chunkIndex\": 1, \"title\": \"Thermopylae\", \"keyIdeas\": [\"A narrow pass\"]}]}"`,
		},
		{
			name:  "double encoded with newlines",
			input: `"{\n  \"chunks\": [\n    {\"chunkIndex\": 0, \"title\": \"The agoge\", \"keyIdeas\": [\"Training began at seven\", \"Boys lived in barracks\"]},\n    {\"chunkIndex\": 1, \"title\": \"Thermopylae\", \"keyIdeas\": [\"A narrow pass\"]}\n  ]\n}\n"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got testStructureResponse
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, want)
			}
		})
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got testElement
	if err := UnmarshalFlexible("I could not find any entities.", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestUnmarshalFlexible_EmptyInput(t *testing.T) {
	var got testStructureResponse
	if err := UnmarshalFlexible("   ", &got); err != ErrEmptyResponse {
		t.Fatalf("UnmarshalFlexible() error = %v, want ErrEmptyResponse", err)
	}
}

func TestGenerateSchema(t *testing.T) {
	data, err := json.Marshal(GenerateSchema(&testStructureResponse{}))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	schema := string(data)
	for _, want := range []string{`"chunks"`, `"chunkIndex"`, `"keyIdeas"`, `"additionalProperties":false`} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema misses %s: %s", want, schema)
		}
	}
}
