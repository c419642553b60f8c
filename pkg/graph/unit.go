package graph

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/OFFIS-RIT/lumen/backend/internal/util"
	"github.com/OFFIS-RIT/lumen/backend/pkg/common"
)

// charsPerToken is the heuristic used by the chunker for budgets.
const charsPerToken = 4

// overlapShare caps the overlap seed relative to the chunk budget.
const overlapShare = 5

var blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)

// ChunkOptions configures Chunk.
type ChunkOptions struct {
	MaxTokensPerChunk int
	OverlapTokens     int
	SourceType        string
	FileName          string
}

// Chunk splits text into bounded, overlapping RawChunks in document order.
//
// Sections are separated by blank lines. A section larger than the budget is
// force split at roughly MaxTokensPerChunk*4 characters, preferring a
// sentence end. Sections are collected into a buffer until the next one
// would exceed MaxTokensPerChunk; each following chunk starts with the
// trailing sentences of its predecessor, worth at most OverlapTokens.
// metadata["overlapChars"] is the length of that prefix in bytes.
//
// Empty or whitespace-only input yields no chunks.
func Chunk(text string, opts ChunkOptions) []common.RawChunk {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	maxTokens := opts.MaxTokensPerChunk
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	overlap := min(max(opts.OverlapTokens, 0), maxTokens/overlapShare)
	budget := maxTokens * charsPerToken

	var pieces []string
	for _, section := range splitSections(text) {
		if estimateTokens(section) > maxTokens {
			pieces = append(pieces, forceSplit(section, budget)...)
			continue
		}
		pieces = append(pieces, section)
	}

	var (
		chunks     []common.RawChunk
		buf        []string
		bufRunes   int
		seedLen    int
		hasContent bool
	)

	emit := func(seedNext bool) {
		content := strings.Join(buf, "\n\n")
		meta := map[string]any{
			"overlapChars":  seedLen,
			"tokenEstimate": estimateTokens(content),
		}
		if opts.SourceType != "" {
			meta["sourceType"] = opts.SourceType
		}
		if opts.FileName != "" {
			meta["fileName"] = opts.FileName
		}
		chunks = append(chunks, common.RawChunk{
			Content:  content,
			Order:    len(chunks),
			Metadata: meta,
		})

		buf, bufRunes, seedLen, hasContent = nil, 0, 0, false
		if !seedNext || overlap == 0 {
			return
		}
		if seed := trailingSentences(content, overlap); seed != "" {
			buf = []string{seed}
			bufRunes = utf8.RuneCountInString(seed)
			seedLen = len(seed) + len("\n\n")
		}
	}

	for _, piece := range pieces {
		pieceRunes := utf8.RuneCountInString(piece)
		sep := 0
		if len(buf) > 0 {
			sep = len("\n\n")
		}
		if hasContent && (bufRunes+sep+pieceRunes+charsPerToken-1)/charsPerToken > maxTokens {
			emit(true)
			sep = 0
			if len(buf) > 0 {
				sep = len("\n\n")
			}
		}
		buf = append(buf, piece)
		bufRunes += sep + pieceRunes
		hasContent = true
	}
	if hasContent {
		emit(false)
	}

	return chunks
}

// NonOverlapContent returns the part of a chunk that is not repeated from the
// previous chunk.
func NonOverlapContent(chunk common.RawChunk) string {
	n, _ := chunk.Metadata["overlapChars"].(int)
	if n <= 0 || n > len(chunk.Content) {
		return chunk.Content
	}
	return chunk.Content[n:]
}

func splitSections(text string) []string {
	raw := blankLineRe.Split(text, -1)
	sections := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sections = append(sections, s)
		}
	}
	return sections
}

// forceSplit cuts text into pieces of at most budget bytes.
func forceSplit(text string, budget int) []string {
	var parts []string
	text = strings.TrimSpace(text)
	for len(text) > budget {
		cut := cutPoint(text, budget)
		if part := strings.TrimSpace(text[:cut]); part != "" {
			parts = append(parts, part)
		}
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// cutPoint prefers the last '.' in the second half of the window, then the
// last whitespace, then the last rune boundary.
func cutPoint(text string, budget int) int {
	window := text[:budget]
	if i := strings.LastIndexByte(window, '.'); i >= budget/2 {
		return i + 1
	}
	if i := strings.LastIndexAny(window, " \n\t"); i >= budget/2 {
		return i + 1
	}
	cut := budget
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		cut = budget
		for cut < len(text) && !utf8.RuneStart(text[cut]) {
			cut++
		}
	}
	return cut
}

// trailingSentences returns the longest run of whole sentences from the end
// of content whose estimate stays within tokens.
func trailingSentences(content string, tokens int) string {
	sentences := splitLineIntoSentences(util.CollapseWhitespace(content))
	limit := tokens*charsPerToken - len("\n\n")
	used := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(sentences[i])
		if start < len(sentences) {
			n++
		}
		if used+n > limit {
			break
		}
		used += n
		start = i
	}
	if start == len(sentences) {
		return ""
	}
	return strings.Join(sentences[start:], " ")
}

func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])

		if line[i] == '.' || line[i] == '!' || line[i] == '?' {
			// "1. First item" is a listing, not a sentence end
			if i > 0 && unicode.IsDigit(rune(line[i-1])) && i+1 < len(line) && line[i+1] == ' ' {
				continue
			}
			j := i + 1
			for j < len(line) && (line[j] == '.' || line[j] == '!' || line[j] == '?') {
				current.WriteByte(line[j])
				j++
			}

			for j < len(line) && (line[j] == '"' || line[j] == '\'' || line[j] == ')' ||
				line[j] == ']' || line[j] == '}') {
				current.WriteByte(line[j])
				j++
			}

			if sentence := strings.TrimSpace(current.String()); sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
			i = j - 1
		}
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		sentences = append(sentences, remaining)
	}

	return sentences
}
