package score

import "strings"

// DescribeSignals feed the describability scorer.
type DescribeSignals struct {
	// Concreteness is the phrase's rating on the 1-5 norm scale.
	Concreteness      float64
	ConcretenessKnown bool
	// ProperNoun is set when named-entity recognition tags the phrase
	// as a proper noun.
	ProperNoun bool
	// HeadWord is the phrase's head noun, checked against the weak-head
	// list.
	HeadWord string
}

// Describability scores how easy a phrase is to convey without naming
// it directly. Unlike distinctiveness it is additive: concreteness
// tier, plus a proper-noun bonus, minus a weak-head-noun penalty,
// clamped at zero.
type Describability struct {
	weakHeads map[string]struct{}
}

// Tier boundaries and point values for the 0-25 describability range.
const (
	concretenessHigh = 4.0
	concretenessMid  = 3.0
	concretenessLow  = 2.0

	pointsConcreteHigh = 15.0
	pointsConcreteMid  = 10.0
	pointsConcreteLow  = 5.0

	// Proper nouns are easy to act out even with middling concreteness
	// ratings.
	pointsProperNoun = 5.0

	// Abstract head words ("strategy", "vibe") are hard to mime even
	// when the phrase otherwise scores well.
	weakHeadPenalty = 10.0
)

// NewDescribability builds the scorer from the configured weak-head
// noun list.
func NewDescribability(weakHeadNouns []string) *Describability {
	weak := make(map[string]struct{}, len(weakHeadNouns))
	for _, w := range weakHeadNouns {
		weak[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Describability{weakHeads: weak}
}

// Score computes the describability component. Penalties never push
// the component below zero.
func (d *Describability) Score(sig DescribeSignals) float64 {
	points := 0.0

	if sig.ConcretenessKnown {
		switch {
		case sig.Concreteness >= concretenessHigh:
			points += pointsConcreteHigh
		case sig.Concreteness >= concretenessMid:
			points += pointsConcreteMid
		case sig.Concreteness >= concretenessLow:
			points += pointsConcreteLow
		}
	}

	if sig.ProperNoun {
		points += pointsProperNoun
	}

	if _, weak := d.weakHeads[strings.ToLower(sig.HeadWord)]; weak {
		points -= weakHeadPenalty
	}

	if points < 0 {
		points = 0
	}
	return points
}
