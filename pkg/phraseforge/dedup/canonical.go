package dedup

import (
	"strings"
	"unicode"
)

// Canonical normalizes a phrase to the form used for duplicate
// detection: lowercased, punctuation stripped, whitespace collapsed.
// "Ice-Cream  Cone!" and "ice cream cone" canonicalize identically.
func Canonical(text string) string {
	var b strings.Builder
	lastSpace := true

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_':
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		default:
			// Other punctuation is dropped without introducing a break,
			// so "don't" stays a single token.
		}
	}

	return strings.TrimSpace(b.String())
}

// HeadWord returns the final word of a canonicalized phrase, the head
// of an English noun compound ("business strategy" -> "strategy").
func HeadWord(text string) string {
	canon := Canonical(text)
	if canon == "" {
		return ""
	}
	words := strings.Fields(canon)
	return words[len(words)-1]
}
