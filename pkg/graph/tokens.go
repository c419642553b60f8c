package graph

import (
	"unicode/utf8"

	"github.com/OFFIS-RIT/lumen/backend/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter counts tokens with a tiktoken encoding and falls back to the
// character estimate when no encoding is available.
type tokenCounter struct {
	enc *tiktoken.Tiktoken
}

func newTokenCounter(encoder string) *tokenCounter {
	if encoder == "" {
		return &tokenCounter{}
	}
	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		logger.Warn("[Graph] Token encoder unavailable, using estimate", "encoder", encoder, "err", err)
		return &tokenCounter{}
	}
	return &tokenCounter{enc: enc}
}

func (t *tokenCounter) Count(text string) int {
	if t == nil || t.enc == nil {
		return estimateTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// estimateTokens approximates the token count as one token per four
// characters, rounded up.
func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
