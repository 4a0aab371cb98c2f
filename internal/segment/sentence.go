package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitSentences breaks text at whitespace that follows '.', '!' or '?', and at runs
// of two or more newlines. Pieces are trimmed and empty ones dropped.
func SplitSentences(text string) []string {
	var out []string
	emit := func(piece string) {
		if piece = strings.TrimSpace(piece); piece != "" {
			out = append(out, piece)
		}
	}

	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		next := i + size
		switch {
		case (r == '.' || r == '!' || r == '?') && next < len(text) && isSpaceAt(text, next):
			emit(text[start:next])
			i = skipSpace(text, next)
			start = i
			continue
		case r == '\n' && next < len(text) && text[next] == '\n':
			emit(text[start:i])
			for next < len(text) && text[next] == '\n' {
				next++
			}
			i = next
			start = i
			continue
		}
		i = next
	}
	emit(text[start:])
	return out
}

func isSpaceAt(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r)
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}
