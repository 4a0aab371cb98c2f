package search

import (
	"strings"
	"unicode/utf8"
)

// Snippet shortens chunk text to at most maxLen bytes for display. It cuts at the last
// space before the limit when there is one, otherwise on a rune boundary, and appends "...".
func Snippet(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if sp := strings.LastIndexByte(text[:cut], ' '); sp > 0 {
		cut = sp
	}
	return strings.TrimRight(text[:cut], " ,;:") + "..."
}
