package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

// BuildGraphMsg asks the worker to build a knowledge graph from extracted
// text stored at FileKey and to write the result below OutputPrefix.
type BuildGraphMsg struct {
	JobID        string  `json:"job_id"`
	FileKey      string  `json:"file_key"`
	FileName     string  `json:"file_name,omitempty"`
	SourceType   string  `json:"source_type,omitempty"`
	TotalPages   int     `json:"total_pages,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	OutputPrefix string  `json:"output_prefix"`
	Replace      bool    `json:"replace,omitempty"`
}

// GraphDoneMsg is published on GraphDoneTopic when a job finished.
type GraphDoneMsg struct {
	JobID          string                `json:"job_id"`
	GraphKey       string                `json:"graph_key"`
	ChunksKey      string                `json:"chunks_key"`
	ProcessingMode common.ProcessingMode `json:"processing_mode"`
	Entities       int                   `json:"entities"`
	Relations      int                   `json:"relations"`
	Fallback       bool                  `json:"fallback"`
	DurationMs     int64                 `json:"duration_ms"`
}

var errInvalidMessage = errors.New("invalid build message")

// DecodeBuildGraphMsg parses and validates a queue payload.
func DecodeBuildGraphMsg(body []byte) (BuildGraphMsg, error) {
	var msg BuildGraphMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", errInvalidMessage, err)
	}
	msg.FileKey = strings.TrimSpace(msg.FileKey)
	msg.OutputPrefix = strings.TrimSuffix(strings.TrimSpace(msg.OutputPrefix), "/")

	switch {
	case msg.JobID == "":
		return msg, fmt.Errorf("%w: job_id is required", errInvalidMessage)
	case msg.FileKey == "":
		return msg, fmt.Errorf("%w: file_key is required", errInvalidMessage)
	case msg.TotalPages < 0 || msg.Duration < 0:
		return msg, fmt.Errorf("%w: negative size", errInvalidMessage)
	}
	if msg.OutputPrefix == "" {
		msg.OutputPrefix = "graphs/" + msg.JobID
	}
	return msg, nil
}
