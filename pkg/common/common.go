package common

import "time"

// RawChunk is a contiguous, token-bounded slice of a source document as
// produced by the chunker. Chunks overlap slightly so that context carries
// over from one chunk to the next.
type RawChunk struct {
	Content  string         `json:"content"`
	Order    int            `json:"order"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Importance ranks how central a chunk is to the document.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// DetailedConcept is a single concept explained inside a chunk.
type DetailedConcept struct {
	Concept     string   `json:"concept"`
	Explanation string   `json:"explanation"`
	Examples    []string `json:"examples,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// ChunkMetadata carries the classification of a structured chunk.
type ChunkMetadata struct {
	PageRange  string     `json:"pageRange,omitempty"`
	ChunkType  string     `json:"chunkType,omitempty"`
	Importance Importance `json:"importance"`
}

// StructuredChunk is the summarized form of a RawChunk. There is exactly one
// StructuredChunk per RawChunk and Order is carried over unchanged.
//
// RelatedChunks is only appended to by the relationship linker.
type StructuredChunk struct {
	ID               string            `json:"id"`
	Summary          string            `json:"summary"`
	KeyIdeas         []string          `json:"keyIdeas"`
	DetailedConcepts []DetailedConcept `json:"detailedConcepts"`
	Title            string            `json:"title,omitempty"`
	RelatedChunks    []string          `json:"relatedChunks"`
	Dependencies     []string          `json:"dependencies"`
	RawText          string            `json:"rawText"`
	Order            int               `json:"order"`
	TokenCount       int               `json:"tokenCount"`
	Metadata         ChunkMetadata     `json:"metadata"`
}

// ProcessingMode is one of the adaptive extraction tiers.
type ProcessingMode string

const (
	ModeFullQuality   ProcessingMode = "FULL_QUALITY"
	ModeBalanced      ProcessingMode = "BALANCED"
	ModeSmartSampling ProcessingMode = "SMART_SAMPLING"
)

// ProcessingConfig is derived once per document from its size and is
// read-only afterwards.
type ProcessingConfig struct {
	ProcessingMode      ProcessingMode `json:"processingMode"`
	MaxChunksToProcess  int            `json:"maxChunksToProcess"`
	BatchSize           int            `json:"batchSize"`
	MaxEntitiesPerBatch int            `json:"maxEntitiesPerBatch"`
	ConfidenceThreshold float64        `json:"confidenceThreshold"`
	TargetTimeMinutes   float64        `json:"targetTimeMinutes"`
	ExpectedEntities    int            `json:"expectedEntities"`
	Model               string         `json:"model,omitempty"`
	MaxTokens           int            `json:"maxTokens"`
	EstimatedPages      int            `json:"estimatedPages"`
}

// EntityType enumerates the kinds of knowledge entities the extractor emits.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityPlace        EntityType = "place"
	EntityOrganization EntityType = "organization"
	EntityConcept      EntityType = "concept"
	EntityEvent        EntityType = "event"
	EntityDefinition   EntityType = "definition"
	EntityTool         EntityType = "tool"
	EntityMethod       EntityType = "method"
	EntityProcess      EntityType = "process"
	EntityPrinciple    EntityType = "principle"
)

// EntityTypes lists every valid EntityType in a stable order.
var EntityTypes = []EntityType{
	EntityPerson,
	EntityPlace,
	EntityOrganization,
	EntityConcept,
	EntityEvent,
	EntityDefinition,
	EntityTool,
	EntityMethod,
	EntityProcess,
	EntityPrinciple,
}

// RawEntityExtraction is a single element returned by one extraction batch.
// It only lives until the deduplicator merged it into a KnowledgeEntity.
type RawEntityExtraction struct {
	Name         string         `json:"name"`
	Type         EntityType     `json:"type"`
	Aliases      []string       `json:"aliases"`
	Desc         string         `json:"desc"`
	Cat          string         `json:"cat"`
	Conf         float64        `json:"conf"`
	SourceChunks []string       `json:"sourceChunks"`
	Examples     []string       `json:"examples,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// RawRelationExtraction is a relationship between two named elements as
// returned by one extraction batch.
type RawRelationExtraction struct {
	From         string   `json:"from"`
	To           string   `json:"to"`
	Type         string   `json:"type"`
	Desc         string   `json:"desc"`
	Conf         float64  `json:"conf"`
	SourceChunks []string `json:"sourceChunks"`
}

// KnowledgeEntity is a deduplicated node of the knowledge graph.
//
// ID is derived from type and normalized name, Aliases never contain Name and
// are unique case-insensitively.
type KnowledgeEntity struct {
	ID           string         `json:"id"`
	Type         EntityType     `json:"type"`
	Name         string         `json:"name"`
	Aliases      []string       `json:"aliases"`
	Properties   map[string]any `json:"properties"`
	Descriptions []string       `json:"descriptions"`
	SourceChunks []string       `json:"sourceChunks"`
	Confidence   float64        `json:"confidence"`
	Category     string         `json:"category,omitempty"`
	LastUpdated  time.Time      `json:"lastUpdated"`
}

// KnowledgeRelation is a typed edge between two entities of the same graph.
type KnowledgeRelation struct {
	ID           string         `json:"id"`
	From         string         `json:"from"`
	To           string         `json:"to"`
	Type         string         `json:"type"`
	Properties   map[string]any `json:"properties"`
	SourceChunks []string       `json:"sourceChunks"`
	Confidence   float64        `json:"confidence"`
}

// GraphMetadata describes the document a graph was built from.
type GraphMetadata struct {
	SourceName       string         `json:"sourceName"`
	TotalChunks      int            `json:"totalChunks"`
	LastUpdated      time.Time      `json:"lastUpdated"`
	Version          int            `json:"version"`
	ProcessingMode   ProcessingMode `json:"processingMode"`
	TargetEntities   int            `json:"targetEntities"`
	SourceType       string         `json:"sourceType,omitempty"`
	ProcessedChunks  int            `json:"processedChunks"`
	FailedBatches    int            `json:"failedBatches"`
	EmergencyOutcome bool           `json:"emergencyOutcome,omitempty"`
}
