package score

import (
	"strings"
	"unicode"
)

// LegacyHeuristic is the original surface-form scorer, kept as a small
// component alongside the corpus-backed signals. It rewards the phrase
// lengths and shapes that played well in live games before the lookup
// corpora existed.
func LegacyHeuristic(text string) float64 {
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) == 0 {
		return 0
	}

	points := 0.0

	// 2-3 word phrases are the sweet spot for guessing rounds.
	switch len(words) {
	case 2, 3:
		points += 4
	case 1, 4:
		points += 2
	}

	// Short phrases fit on a card and get guessed faster.
	if len(text) <= 24 {
		points += 3
	}

	alphabetic := true
	for _, w := range words {
		for _, r := range w {
			if !unicode.IsLetter(r) && r != '\'' && r != '-' {
				alphabetic = false
			}
		}
	}
	if alphabetic {
		points += 3
	}

	return points
}

// ProperNounShape reports whether the phrase's original casing looks
// like a proper noun: every word capitalized. Used as the NER fallback
// when the entity corpus has no answer.
func ProperNounShape(text string) bool {
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsUpper(r[0]) {
			return false
		}
	}
	return true
}
