package score

import "github.com/wordparty/phraseforge/pkg/phraseforge/pmi"

// DistinctSignals are the lookup results feeding the distinctiveness
// scorer. An unavailable processor leaves its field at the zero value.
type DistinctSignals struct {
	EntityExact  bool
	EntityAlias  bool
	PMI          float64
	PMIKnown     bool
	InDictionary bool
}

// distinctBand is one predicate->points pair in the hierarchy.
type distinctBand struct {
	name   string
	points float64
	match  func(DistinctSignals) bool
}

// Distinctiveness scores how strongly a phrase denotes one specific,
// recognizable thing. Evaluation is hierarchical with early exit: the
// highest applicable band wins and bands are never summed, so weaker
// statistical signals cannot stack on top of a categorical entity
// match.
type Distinctiveness struct {
	bands []distinctBand
}

// Band point values for the 0-25 distinctiveness range.
const (
	pointsEntityExact = 25.0
	pointsEntityAlias = 20.0
	pointsStrongPMI   = 15.0
	pointsDictionary  = 10.0
)

// NewDistinctiveness builds the ordered band list using the given PMI
// tier boundaries.
func NewDistinctiveness(bands pmi.Bands) *Distinctiveness {
	return &Distinctiveness{
		bands: []distinctBand{
			{
				name:   "entity_exact",
				points: pointsEntityExact,
				match:  func(s DistinctSignals) bool { return s.EntityExact },
			},
			{
				name:   "entity_alias",
				points: pointsEntityAlias,
				match:  func(s DistinctSignals) bool { return s.EntityAlias },
			},
			{
				name:   "strong_pmi",
				points: pointsStrongPMI,
				match: func(s DistinctSignals) bool {
					return s.PMIKnown && bands.Classify(s.PMI) == pmi.BandStrong
				},
			},
			{
				name:   "dictionary",
				points: pointsDictionary,
				match:  func(s DistinctSignals) bool { return s.InDictionary },
			},
		},
	}
}

// Score returns the winning band's points and name. No band matching
// yields zero.
func (d *Distinctiveness) Score(sig DistinctSignals) (float64, string) {
	for _, band := range d.bands {
		if band.match(sig) {
			return band.points, band.name
		}
	}
	return 0, "none"
}
