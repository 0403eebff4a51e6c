// Package canon strips invisible and directional control characters from operator input.
package canon

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// garbage lists code points pasted in from RTL editors, chat apps and spreadsheets.
var garbage = runes.Predicate(func(r rune) bool {
	switch r {
	case '\u200f', '\u200e', // RLM, LRM
		'\u202a', '\u202b', '\u202c', '\u202d', '\u202e', // embeddings and overrides
		'\u2066', '\u2067', '\u2068', '\u2069', // isolates
		'\u200b', '\ufeff',
		'\u00a0',
		'\t', '\n', '\r':
		return true
	}
	return false
})

var stripGarbage = runes.Remove(garbage)

// Canonicalize removes control characters and surrounding whitespace. It is idempotent and
// never returns a longer string than its input.
func Canonicalize(raw string) string {
	// invalid bytes would otherwise come back as U+FFFD
	raw = strings.ToValidUTF8(raw, "")
	cleaned, _, _ := transform.String(stripGarbage, raw)
	return strings.TrimSpace(cleaned)
}
