package pmi

import "math"

// Calculator handles PMI (Pointwise Mutual Information) calculations
// over a reference n-gram corpus.
type Calculator struct {
	epsilon float64 // smoothing constant
}

// NewCalculator creates a new PMI calculator with the given epsilon
func NewCalculator(epsilon float64) *Calculator {
	if epsilon <= 0 {
		epsilon = 1.0
	}
	return &Calculator{epsilon: epsilon}
}

// Phrase calculates the phrase-level PMI of a multi-word expression.
//
// PMI(phrase) = log2(P(phrase) / Π P(word_i))
//
// Where:
//   - phraseCount = corpus count of the full phrase
//   - wordCounts  = corpus counts of each component word
//   - total       = total n-gram observations in the corpus
//
// A phrase that co-occurs far more often than its component words would
// by chance scores high; an incidental word sequence scores near or
// below zero.
func (c *Calculator) Phrase(phraseCount int64, wordCounts []int64, total int64) float64 {
	if total == 0 || len(wordCounts) == 0 {
		return 0
	}

	pPhrase := (float64(phraseCount) + c.epsilon) / float64(total)

	denom := 1.0
	for _, wc := range wordCounts {
		denom *= (float64(wc) + c.epsilon) / float64(total)
	}
	if denom == 0 {
		return 0
	}

	return math.Log2(pPhrase / denom)
}

// Pair calculates the pointwise mutual information between two tokens
// from document frequencies.
//
// PMI(a,b) = log((N_ab + ε) * N / ((N_a + ε)(N_b + ε)))
func (c *Calculator) Pair(nAB, nA, nB, N int64) float64 {
	if N == 0 {
		return 0
	}

	numerator := (float64(nAB) + c.epsilon) * float64(N)
	denominator := (float64(nA) + c.epsilon) * (float64(nB) + c.epsilon)

	if denominator == 0 {
		return 0
	}

	return math.Log(numerator / denominator)
}

// Band is a discrete association-strength tier derived from a raw PMI
// value.
type Band int

const (
	BandNone Band = iota
	BandWeak
	BandModerate
	BandStrong
)

// Bands holds the tier boundaries. Values at or above Strong band as
// strong, at or above Moderate as moderate, at or above zero as weak,
// negative as none.
type Bands struct {
	Strong   float64
	Moderate float64
}

// DefaultBands returns the tier boundaries tuned on the reference
// corpus: >=4 strong, 2-4 moderate, 0-2 weak, <0 none.
func DefaultBands() Bands {
	return Bands{Strong: 4.0, Moderate: 2.0}
}

// Classify maps a raw PMI value to its band.
func (b Bands) Classify(pmi float64) Band {
	switch {
	case pmi >= b.Strong:
		return BandStrong
	case pmi >= b.Moderate:
		return BandModerate
	case pmi >= 0:
		return BandWeak
	default:
		return BandNone
	}
}

// String returns a human-readable band name.
func (bd Band) String() string {
	switch bd {
	case BandStrong:
		return "strong"
	case BandModerate:
		return "moderate"
	case BandWeak:
		return "weak"
	default:
		return "none"
	}
}
