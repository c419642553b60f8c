package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/lumen/backend/pkg/graph"
)

// SourceFile is the extracted text of one upload. Text extraction itself
// happens upstream; SourceFile only knows where the text is stored and what
// the extractor reported about the original file.
//
// The actual content is retrieved via the associated SourceLoader.
type SourceFile struct {
	ID         string
	FilePath   string
	FileName   string
	SourceType string
	TotalPages int
	Duration   float64
	Loader     SourceLoader
}

// NewSourceFileParams defines the input parameters for creating a new
// SourceFile. SourceType is derived from FileName, or FilePath, when empty.
type NewSourceFileParams struct {
	ID         string
	FilePath   string
	FileName   string
	SourceType string
	TotalPages int
	Duration   float64
	Loader     SourceLoader
}

// NewSourceFile creates a new SourceFile from params.
func NewSourceFile(params NewSourceFileParams) SourceFile {
	name := params.FileName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(params.FilePath), ".txt")
	}
	sourceType := params.SourceType
	if sourceType == "" {
		sourceType = SourceTypeFromPath(name)
	}
	return SourceFile{
		ID:         params.ID,
		FilePath:   params.FilePath,
		FileName:   name,
		SourceType: sourceType,
		TotalPages: params.TotalPages,
		Duration:   params.Duration,
		Loader:     params.Loader,
	}
}

// GetText retrieves the raw text content of the file using its Loader.
//
// Example:
//
//	text, err := file.GetText(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(string(text))
func (f *SourceFile) GetText(ctx context.Context) ([]byte, error) {
	if f.Loader == nil {
		return nil, fmt.Errorf("no loader configured for %s", f.FilePath)
	}
	return f.Loader.GetFileText(ctx, *f)
}

// Document loads the text and returns it as pipeline input.
func (f *SourceFile) Document(ctx context.Context) (graph.Document, error) {
	text, err := f.GetText(ctx)
	if err != nil {
		return graph.Document{}, fmt.Errorf("failed to load %s: %w", f.FilePath, err)
	}
	return graph.Document{
		Text:       string(text),
		SourceType: f.SourceType,
		TotalPages: f.TotalPages,
		Duration:   f.Duration,
		FileName:   f.FileName,
	}, nil
}

// SourceLoader defines the interface for loading the contents of a
// SourceFile. Implementations may load files from disk, cloud storage, or
// other sources.
type SourceLoader interface {
	GetFileText(ctx context.Context, file SourceFile) ([]byte, error)
}

// CacheKey generates a unique cache key for a SourceFile based on its ID and
// path.
func CacheKey(file SourceFile) string {
	return file.ID + ":" + file.FilePath
}

var sourceTypes = map[string]string{
	"pdf":  "pdf",
	"doc":  "document",
	"docx": "document",
	"odt":  "document",
	"rtf":  "document",
	"ppt":  "slides",
	"pptx": "slides",
	"odp":  "slides",
	"md":   "text",
	"txt":  "text",
	"html": "web",
	"htm":  "web",
	"mp3":  "audio",
	"wav":  "audio",
	"m4a":  "audio",
	"ogg":  "audio",
	"flac": "audio",
	"mp4":  "video",
	"mov":  "video",
	"webm": "video",
	"mkv":  "video",
}

// SourceTypeFromPath maps a file extension to the source type reported in
// graph metadata. Unknown extensions are treated as text.
func SourceTypeFromPath(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if t, ok := sourceTypes[ext]; ok {
		return t
	}
	return "text"
}
