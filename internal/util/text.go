package util

import (
	"strings"
	"unicode/utf8"
)

// SanitizeText drops invalid UTF-8 and NUL bytes that text extractors
// occasionally leave behind.
func SanitizeText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// CollapseWhitespace replaces every run of whitespace with a single space.
func CollapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// Truncate shortens value to at most n runes, cutting at the last space
// before the limit when there is one.
func Truncate(value string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(value) <= n {
		return value
	}
	runes := []rune(value)
	cut := string(runes[:n])
	if idx := strings.LastIndex(cut, " "); idx > n/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}

// FirstSentence returns the text up to and including the first sentence
// terminator, or the whole trimmed text if there is none.
func FirstSentence(value string) string {
	value = CollapseWhitespace(value)
	for i, r := range value {
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(value) || value[i+1] == ' ' {
				return value[:i+1]
			}
		}
	}
	return value
}
