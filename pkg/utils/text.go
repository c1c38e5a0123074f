package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CountTokens returns the whitespace-token count of s. Chunk sizing budgets
// are expressed in these tokens; the embedding service applies its own
// subword tokenization independently.
func CountTokens(s string) int {
	return len(strings.Fields(s))
}

// SplitSentences splits text into sentences on ., !, ? followed by space or
// end of text. Abbreviation-grade precision is not needed for chunk
// boundaries; a sentence is only a place where a window may end.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			atEnd := i == len(runes)-1
			nextIsSpace := !atEnd && unicode.IsSpace(runes[i+1])
			if atEnd || nextIsSpace {
				s := strings.TrimSpace(b.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				b.Reset()
			}
		}
	}
	if rest := strings.TrimSpace(b.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// Truncate returns s truncated to at most maxLen bytes, with "..." appended
// if truncated. The cut backs up to a rune boundary so multi-byte characters
// are never split. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
