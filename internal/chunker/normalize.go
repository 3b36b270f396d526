package chunker

import (
	"strings"
	"unicode"
)

// Normalize maps tabs, non-breaking spaces and other control or space characters to a single
// space and trims the result, so words are separated by exactly one ASCII space.
func Normalize(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	return strings.Join(strings.Fields(cleaned), " ")
}
