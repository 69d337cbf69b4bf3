package dedup

import (
	"fmt"
	"strings"
	"testing"
)

func TestCanonical(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ice Cream", "ice cream"},
		{"ice-cream", "ice cream"},
		{"  Ice   Cream  Cone! ", "ice cream cone"},
		{"Don't Stop", "dont stop"},
		{"Rock'n'Roll", "rocknroll"},
		{"", ""},
		{"...", ""},
	}

	for _, tc := range cases {
		if got := Canonical(tc.in); got != tc.want {
			t.Errorf("Canonical(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHeadWord(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"business strategy", "strategy"},
		{"Clever Idea", "idea"},
		{"pizza", "pizza"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := HeadWord(tc.in); got != tc.want {
			t.Errorf("HeadWord(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIndexNoFalseNegatives(t *testing.T) {
	idx := NewIndex(0.01)
	idx.Register("movies", 1000)

	phrases := make([]string, 500)
	for i := range phrases {
		phrases[i] = fmt.Sprintf("movie phrase %d", i)
		idx.Add("movies", phrases[i])
	}

	// Every accepted phrase must test positive, including variants that
	// canonicalize to the same form.
	for i, p := range phrases {
		if !idx.Seen("movies", p) {
			t.Fatalf("accepted phrase %q reported as novel", p)
		}
		if !idx.Seen("movies", strings.ToUpper(p)) {
			t.Fatalf("case variant of accepted phrase %d reported as novel", i)
		}
	}
}

func TestIndexFalsePositiveRateBounded(t *testing.T) {
	idx := NewIndex(0.01)
	idx.Register("animals", 2000)

	for i := 0; i < 2000; i++ {
		idx.Add("animals", fmt.Sprintf("animal %d", i))
	}

	// Probe with known-novel phrases; at full configured capacity the
	// observed rate should stay within tolerance of the 1% target.
	const probes = 20000
	positives := 0
	for i := 0; i < probes; i++ {
		if idx.Seen("animals", fmt.Sprintf("novel creature %d", i)) {
			positives++
		}
	}

	rate := float64(positives) / float64(probes)
	if rate > 0.015 {
		t.Errorf("false-positive rate %.4f exceeds 1.5%% tolerance", rate)
	}

	if theoretical := idx.FalsePositiveRate("animals"); theoretical > 0.015 {
		t.Errorf("theoretical rate %.4f exceeds tolerance", theoretical)
	}
}

func TestIndexDuplicateCounter(t *testing.T) {
	idx := NewIndex(0.01)
	idx.Register("food", 100)
	idx.Add("food", "ice cream")

	idx.Seen("food", "ice cream")
	idx.Seen("food", "Ice-Cream")

	if got := idx.Duplicates("food"); got != 2 {
		t.Errorf("Duplicates = %d, want 2", got)
	}
}

func TestIndexSeparateCategories(t *testing.T) {
	idx := NewIndex(0.01)
	idx.Register("movies", 100)
	idx.Register("food", 100)
	idx.Add("movies", "ice cream")

	if idx.Seen("food", "ice cream") {
		t.Error("phrase accepted in one category should not block another")
	}
}

func TestIndexRebuild(t *testing.T) {
	idx := NewIndex(0.01)
	idx.Register("places", 10)

	phrases := []string{"eiffel tower", "grand canyon", "great wall"}
	for _, p := range phrases {
		idx.Add("places", p)
	}

	idx.Rebuild("places", phrases, 5000)

	for _, p := range phrases {
		if !idx.Seen("places", p) {
			t.Fatalf("phrase %q lost across rebuild", p)
		}
	}
}

func TestIndexAddUnregisteredCategory(t *testing.T) {
	idx := NewIndex(0.01)
	idx.Add("surprise", "some phrase")

	if !idx.Seen("surprise", "some phrase") {
		t.Error("add to unregistered category should lazily create a filter")
	}
}

func TestDiversifierPrompt(t *testing.T) {
	d := NewDiversifier()

	prompt := d.Prompt("Movies", 20, []string{"star wars", "jaws"}, 10, 100, nil)

	if !strings.Contains(prompt, "Movies") {
		t.Error("prompt should name the category")
	}
	if !strings.Contains(prompt, "star wars") || !strings.Contains(prompt, "jaws") {
		t.Error("prompt should carry the do-not-reuse list")
	}
	if strings.Contains(prompt, "nearly full") {
		t.Error("rarity seeds should not appear below the saturation ratio")
	}
}

func TestDiversifierRaritySeedsNearSaturation(t *testing.T) {
	d := NewDiversifier()
	seeds := []string{"silent films", "film noir", "stop motion", "pre-code era"}

	prompt := d.Prompt("Movies", 20, nil, 80, 100, seeds)

	if !strings.Contains(prompt, "nearly full") {
		t.Fatal("saturated category should inject rarity seeds")
	}
	count := 0
	for _, s := range seeds {
		if strings.Contains(prompt, s) {
			count++
		}
	}
	if count != d.SeedCount {
		t.Errorf("prompt carries %d seeds, want %d", count, d.SeedCount)
	}
}

func TestDiversifierAvoidListCap(t *testing.T) {
	d := NewDiversifier()
	d.MaxAvoid = 5

	existing := make([]string, 50)
	for i := range existing {
		existing[i] = fmt.Sprintf("phrase-%02d", i)
	}

	prompt := d.Prompt("Food", 10, existing, 0, 100, nil)

	if !strings.Contains(prompt, "phrase-04") {
		t.Error("prompt should include phrases up to the cap")
	}
	if strings.Contains(prompt, "phrase-05") {
		t.Error("prompt should truncate the avoid list at MaxAvoid")
	}
}
