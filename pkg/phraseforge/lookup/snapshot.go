package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/wordparty/phraseforge/pkg/phraseforge/dedup"
	"github.com/wordparty/phraseforge/pkg/phraseforge/pmi"
)

// Snapshot files are compact JSON produced at build time (see
// cmd/snapshot-build for the co-occurrence corpus). They are loaded
// fully into memory at startup; lookups afterwards are pure map
// accesses.

type entitySnapshotFile struct {
	Meta struct {
		Processed int    `json:"processed"`
		Kept      int    `json:"kept"`
		BuildDate string `json:"buildDate"`
	} `json:"meta"`
	Entities map[string]struct {
		Label     string   `json:"label"`
		Sitelinks int      `json:"sitelinks"`
		Type      string   `json:"type"`
		Aliases   []string `json:"aliases"`
	} `json:"entities"`
}

// snapshotEntities backs the entity processor with an in-memory index
// of labels and aliases keyed by canonical form.
type snapshotEntities struct {
	exact   map[string]EntitySignal
	aliases map[string]EntitySignal
}

// LoadEntitiesSnapshot reads an entity snapshot into memory.
func LoadEntitiesSnapshot(path string) (Entities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entities snapshot: %w", err)
	}

	var file entitySnapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse entities snapshot: %w", err)
	}

	s := &snapshotEntities{
		exact:   make(map[string]EntitySignal, len(file.Entities)),
		aliases: make(map[string]EntitySignal),
	}
	for _, ent := range file.Entities {
		canon := dedup.Canonical(ent.Label)
		if canon == "" {
			continue
		}
		sig := EntitySignal{Class: EntityExact, Label: ent.Label, Sitelinks: ent.Sitelinks}
		// Keep the most notable entity when labels collide.
		if prev, ok := s.exact[canon]; !ok || ent.Sitelinks > prev.Sitelinks {
			s.exact[canon] = sig
		}
		for _, alias := range ent.Aliases {
			aCanon := dedup.Canonical(alias)
			if aCanon == "" || aCanon == canon {
				continue
			}
			aSig := EntitySignal{Class: EntityAlias, Label: ent.Label, Sitelinks: ent.Sitelinks}
			if prev, ok := s.aliases[aCanon]; !ok || ent.Sitelinks > prev.Sitelinks {
				s.aliases[aCanon] = aSig
			}
		}
	}
	return s, nil
}

func (s *snapshotEntities) Lookup(ctx context.Context, text string) (EntitySignal, error) {
	canon := dedup.Canonical(text)
	if sig, ok := s.exact[canon]; ok {
		return sig, nil
	}
	if sig, ok := s.aliases[canon]; ok {
		return sig, nil
	}
	return EntitySignal{Class: EntityNone}, nil
}

func (s *snapshotEntities) Mode() string { return "snapshot" }
func (s *snapshotEntities) Close() error { return nil }

type cooccurSnapshotFile struct {
	Total    int64            `json:"total"`
	Unigrams map[string]int64 `json:"unigrams"`
	Ngrams   map[string]int64 `json:"ngrams"`
}

// snapshotCooccurrence precomputes PMI for every known n-gram at load
// time so lookups are a single map read.
type snapshotCooccurrence struct {
	scores map[string]float64
}

// LoadCooccurrenceSnapshot reads an n-gram count snapshot and
// materializes phrase PMI scores.
func LoadCooccurrenceSnapshot(path string) (Cooccurrence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cooccurrence snapshot: %w", err)
	}

	var file cooccurSnapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse cooccurrence snapshot: %w", err)
	}

	calc := pmi.NewCalculator(1.0)
	s := &snapshotCooccurrence{scores: make(map[string]float64, len(file.Ngrams))}
	for phrase, count := range file.Ngrams {
		words := strings.Fields(phrase)
		if len(words) < 2 {
			continue
		}
		wordCounts := make([]int64, len(words))
		for i, w := range words {
			wordCounts[i] = file.Unigrams[w]
		}
		s.scores[dedup.Canonical(phrase)] = calc.Phrase(count, wordCounts, file.Total)
	}
	return s, nil
}

func (s *snapshotCooccurrence) PhrasePMI(ctx context.Context, phrase string) (float64, bool, error) {
	score, ok := s.scores[dedup.Canonical(phrase)]
	return score, ok, nil
}

func (s *snapshotCooccurrence) Mode() string { return "snapshot" }
func (s *snapshotCooccurrence) Close() error { return nil }

type concretenessSnapshotFile struct {
	Ratings map[string]float64 `json:"ratings"`
}

type snapshotConcreteness struct {
	ratings map[string]float64
}

// LoadConcretenessSnapshot reads a word->rating snapshot (1-5 norm
// scale) into memory.
func LoadConcretenessSnapshot(path string) (Concreteness, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read concreteness snapshot: %w", err)
	}

	var file concretenessSnapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse concreteness snapshot: %w", err)
	}

	s := &snapshotConcreteness{ratings: make(map[string]float64, len(file.Ratings))}
	for word, rating := range file.Ratings {
		s.ratings[dedup.Canonical(word)] = rating
	}
	return s, nil
}

func (s *snapshotConcreteness) Rating(ctx context.Context, word string) (float64, bool, error) {
	rating, ok := s.ratings[dedup.Canonical(word)]
	return rating, ok, nil
}

func (s *snapshotConcreteness) Mode() string { return "snapshot" }
func (s *snapshotConcreteness) Close() error { return nil }

type prominenceSnapshotFile struct {
	Pageviews map[string]int64 `json:"pageviews"`
}

type snapshotProminence struct {
	views map[string]int64
}

// LoadProminenceSnapshot reads a phrase->pageviews snapshot into
// memory.
func LoadProminenceSnapshot(path string) (Prominence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prominence snapshot: %w", err)
	}

	var file prominenceSnapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse prominence snapshot: %w", err)
	}

	s := &snapshotProminence{views: make(map[string]int64, len(file.Pageviews))}
	for phrase, views := range file.Pageviews {
		s.views[dedup.Canonical(phrase)] = views
	}
	return s, nil
}

func (s *snapshotProminence) Pageviews(ctx context.Context, phrase string) (int64, bool, error) {
	views, ok := s.views[dedup.Canonical(phrase)]
	return views, ok, nil
}

func (s *snapshotProminence) Mode() string { return "snapshot" }
func (s *snapshotProminence) Close() error { return nil }
