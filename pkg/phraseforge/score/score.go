// Package score implements the quality-scoring engine: the
// hierarchical distinctiveness scorer, the additive describability
// scorer, and the decision engine aggregating all components under a
// source-selected weight profile.
package score

// Source identifies where a candidate phrase came from. It selects the
// weight profile used by the decision engine.
type Source string

const (
	SourceCuratedExtraction Source = "curated_extraction"
	SourceAIGenerated       Source = "ai_generated"
	SourceManual            Source = "manual"
)

// Decision is the pipeline's verdict on a phrase.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReview Decision = "review"
	DecisionReject Decision = "reject"
)

// Thresholds maps a total score to a decision.
type Thresholds struct {
	Accept float64
	Reject float64
}

// Decide derives the decision from a total score. It is a pure
// function: identical totals under identical thresholds always yield
// identical decisions.
func (t Thresholds) Decide(total float64) Decision {
	switch {
	case total >= t.Accept:
		return DecisionAccept
	case total >= t.Reject:
		return DecisionReview
	default:
		return DecisionReject
	}
}

// Profile holds each component's maximum possible contribution under
// one weight profile. Profiles are a closed set keyed by Source; each
// variant carries an explicit, statically-known set of weights.
type Profile struct {
	Distinctiveness      float64
	Describability       float64
	LegacyHeuristic      float64
	CategoryBoost        float64
	CulturalValidation   float64
	StructuralNotability float64
}

// MaxTotal is the ceiling a phrase's total score can reach under this
// profile.
func (p Profile) MaxTotal() float64 {
	return p.Distinctiveness + p.Describability + p.LegacyHeuristic +
		p.CategoryBoost + p.CulturalValidation + p.StructuralNotability
}

// Profiles is the full set of weight profiles.
type Profiles struct {
	CuratedExtraction Profile
	AIGenerated       Profile
	Manual            Profile
}

// For selects the profile for a source. Unknown sources score under
// the AI profile, the stricter of the set.
func (p Profiles) For(src Source) Profile {
	switch src {
	case SourceCuratedExtraction:
		return p.CuratedExtraction
	case SourceManual:
		return p.Manual
	default:
		return p.AIGenerated
	}
}

// Breakdown carries each component's contribution plus the derived
// total and decision.
type Breakdown struct {
	Distinctiveness      float64
	DistinctivenessBand  string
	Describability       float64
	LegacyHeuristic      float64
	CategoryBoost        float64
	CulturalValidation   float64
	StructuralNotability float64

	Total    float64
	Decision Decision

	// Degraded is set when a lookup processor was unavailable and its
	// contribution was zeroed. Degraded phrases route to review unless
	// explicitly configured otherwise.
	Degraded bool
}

// Map returns the breakdown as component-name keyed values for
// persistence.
func (b Breakdown) Map() map[string]float64 {
	return map[string]float64{
		"distinctiveness":       b.Distinctiveness,
		"describability":        b.Describability,
		"legacy_heuristic":      b.LegacyHeuristic,
		"category_boost":        b.CategoryBoost,
		"cultural_validation":   b.CulturalValidation,
		"structural_notability": b.StructuralNotability,
	}
}

// Finalize clamps every component to its profile maximum, sums the
// total, and derives the decision. allowDegraded lets accept/reject
// stand even when a lookup was unavailable; the default forces such
// phrases into the review bucket.
func Finalize(b Breakdown, p Profile, t Thresholds, allowDegraded bool) Breakdown {
	b.Distinctiveness = clamp(b.Distinctiveness, p.Distinctiveness)
	b.Describability = clamp(b.Describability, p.Describability)
	b.LegacyHeuristic = clamp(b.LegacyHeuristic, p.LegacyHeuristic)
	b.CategoryBoost = clamp(b.CategoryBoost, p.CategoryBoost)
	b.CulturalValidation = clamp(b.CulturalValidation, p.CulturalValidation)
	b.StructuralNotability = clamp(b.StructuralNotability, p.StructuralNotability)

	b.Total = b.Distinctiveness + b.Describability + b.LegacyHeuristic +
		b.CategoryBoost + b.CulturalValidation + b.StructuralNotability

	b.Decision = t.Decide(b.Total)
	if b.Degraded && !allowDegraded && b.Decision != DecisionReview {
		b.Decision = DecisionReview
	}
	return b
}

func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
