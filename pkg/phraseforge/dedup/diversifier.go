package dedup

import (
	"fmt"
	"strings"
)

// Diversifier builds dynamic prompt instruction blocks that steer the
// generator away from already-common phrases. It is a mitigation, not a
// guarantee; duplicate rates are still measured per batch.
type Diversifier struct {
	// MaxAvoid caps the "do not reuse" list length.
	MaxAvoid int
	// SaturationRatio is the quota fill level at or above which rarity
	// seeds are injected to push the generator into less-mined
	// territory.
	SaturationRatio float64
	// SeedCount caps how many rarity seeds a single prompt carries.
	SeedCount int
}

// NewDiversifier returns a diversifier with the defaults used in
// production runs.
func NewDiversifier() *Diversifier {
	return &Diversifier{
		MaxAvoid:        30,
		SaturationRatio: 0.7,
		SeedCount:       3,
	}
}

// Prompt constructs the instruction block for one generation call.
// existing holds the category's most common stored phrases; have and
// target describe quota progress; seeds are the category's configured
// rarity seeds.
func (d *Diversifier) Prompt(category string, batchSize int, existing []string, have, target int, seeds []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate %d short, well-known phrases for the party game category %q.\n", batchSize, category)
	b.WriteString("Each phrase must be a real, recognizable thing that a player could act out or describe.\n")
	b.WriteString("Respond with a JSON array of strings and nothing else.\n")

	if len(existing) > 0 {
		avoid := existing
		if d.MaxAvoid > 0 && len(avoid) > d.MaxAvoid {
			avoid = avoid[:d.MaxAvoid]
		}
		b.WriteString("\nDo NOT reuse any of these existing phrases:\n")
		for _, p := range avoid {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	if d.saturated(have, target) && len(seeds) > 0 {
		picked := seeds
		if d.SeedCount > 0 && len(picked) > d.SeedCount {
			// Rotate by current count so successive saturated batches
			// walk through the seed list instead of repeating it.
			start := have % len(seeds)
			picked = make([]string, 0, d.SeedCount)
			for i := 0; i < d.SeedCount; i++ {
				picked = append(picked, seeds[(start+i)%len(seeds)])
			}
		}
		b.WriteString("\nThis category is nearly full. Focus on these narrow sub-topics:\n")
		for _, s := range picked {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	return b.String()
}

func (d *Diversifier) saturated(have, target int) bool {
	if target <= 0 {
		return false
	}
	return float64(have)/float64(target) >= d.SaturationRatio
}
