package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
	"github.com/OFFIS-RIT/lumen/backend/pkg/graph"

	"github.com/rabbitmq/amqp091-go"
)

func TestDecodeBuildGraphMsg(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantPrefix string
	}{
		{
			name:       "default prefix",
			body:       `{"job_id": "abc", "file_key": " texts/sparta.pdf.txt "}`,
			wantPrefix: "graphs/abc",
		},
		{
			name:       "explicit prefix",
			body:       `{"job_id": "abc", "file_key": "k", "output_prefix": "out/abc/"}`,
			wantPrefix: "out/abc",
		},
		{name: "missing job", body: `{"file_key": "k"}`, wantErr: true},
		{name: "missing file", body: `{"job_id": "abc"}`, wantErr: true},
		{name: "negative pages", body: `{"job_id": "abc", "file_key": "k", "total_pages": -1}`, wantErr: true},
		{name: "not json", body: `job`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeBuildGraphMsg([]byte(tt.body))
			if tt.wantErr {
				if !errors.Is(err, errInvalidMessage) {
					t.Errorf("DecodeBuildGraphMsg() error = %v, want errInvalidMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeBuildGraphMsg() error = %v", err)
			}
			if msg.OutputPrefix != tt.wantPrefix {
				t.Errorf("OutputPrefix = %q, want %q", msg.OutputPrefix, tt.wantPrefix)
			}
		})
	}
}

func TestRetryCount(t *testing.T) {
	tests := []struct {
		headers amqp091.Table
		want    int
	}{
		{nil, 0},
		{amqp091.Table{"x-retries": int32(3)}, 3},
		{amqp091.Table{"x-retries": int64(9)}, 9},
		{amqp091.Table{"x-retries": "4"}, 0},
	}
	for _, tt := range tests {
		if got := retryCount(tt.headers); got != tt.want {
			t.Errorf("retryCount(%v) = %d, want %d", tt.headers, got, tt.want)
		}
	}
}

func TestDoneMessage(t *testing.T) {
	res := &graph.BuildResult{
		Config:   common.ProcessingConfig{ProcessingMode: common.ModeBalanced},
		Stats:    graph.GraphStats{TotalEntities: 12, TotalRelations: 4},
		Fallback: true,
	}
	got := doneMessage(BuildGraphMsg{JobID: "abc"}, res, "g", "c", 1500*time.Millisecond)
	want := GraphDoneMsg{
		JobID:          "abc",
		GraphKey:       "g",
		ChunksKey:      "c",
		ProcessingMode: common.ModeBalanced,
		Entities:       12,
		Relations:      4,
		Fallback:       true,
		DurationMs:     1500,
	}
	if got != want {
		t.Errorf("doneMessage() = %+v, want %+v", got, want)
	}
}
