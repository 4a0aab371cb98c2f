package archive

import (
	"strings"
	"unicode/utf8"
)

// decodePlain returns content as valid UTF-8.
// Invalid UTF-8 sequences are replaced with the replacement character.
func decodePlain(content []byte) []byte {
	if utf8.Valid(content) {
		return content
	}
	return []byte(strings.ToValidUTF8(string(content), "\ufffd"))
}
