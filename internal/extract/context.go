package extract

import (
	"strings"
	"unicode/utf8"

	"newslens/internal/span"
)

// defaultContextWindow is the surrounding-text budget on each side of a
// span, in characters.
const defaultContextWindow = 50

// contextFor slices up to window characters before and after the span,
// clipped to the text boundaries, never cutting through a multi-byte
// rune. A zero window yields no context.
func contextFor(text string, sp span.Span, window int) string {
	if window <= 0 {
		return ""
	}
	start := sp.Start
	for i := 0; i < window && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}
	end := sp.End
	for i := 0; i < window && end < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	return strings.TrimSpace(text[start:end])
}
