package graph

import (
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/lumen/backend/internal/util"
)

// Text extractors upstream mark repeated page furniture with <doc-*> tags.
// They are removed before chunking so headers and footers do not end up as
// entities.
var layoutTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<doc-header>.*?</doc-header>`),
	regexp.MustCompile(`(?s)<doc-footer>.*?</doc-footer>`),
	regexp.MustCompile(`(?s)<doc-signature>.*?</doc-signature>`),
	regexp.MustCompile(`(?s)<doc-toc>.*?</doc-toc>`),
}

var firstHeaderRe = regexp.MustCompile(`(?s)<doc-header>(.*?)</doc-header>`)

var excessiveNewlines = regexp.MustCompile(`\n{3,}`)

// CleanText strips extractor layout tags and invalid bytes and collapses runs
// of blank lines.
func CleanText(content string) string {
	result := util.SanitizeText(content)
	for _, pattern := range layoutTagPatterns {
		result = pattern.ReplaceAllString(result, "")
	}
	result = strings.ReplaceAll(result, "\r\n", "\n")
	result = excessiveNewlines.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// sourceName picks the name used in prompts and graph metadata: the file name
// when given, otherwise the first page header, otherwise the source type.
func sourceName(doc Document) string {
	if name := strings.TrimSpace(doc.FileName); name != "" {
		return name
	}
	if m := firstHeaderRe.FindStringSubmatch(doc.Text); len(m) == 2 {
		if header := util.Truncate(util.CollapseWhitespace(m[1]), 80); header != "" {
			return header
		}
	}
	if doc.SourceType != "" {
		return doc.SourceType + " document"
	}
	return "document"
}
