// Package lookup provides the three corpus lookup processors feeding
// the scorers: entity names+aliases, phrase co-occurrence statistics,
// and word concreteness ratings, plus the pageview prominence signal.
//
// Each processor supports two backing modes behind one interface: a
// live low-latency key-value service, and a bundled immutable snapshot
// loaded fully into memory. Snapshot mode is a build-time
// materialization of the same corpus, so both modes return identical
// results for identical data.
package lookup

import (
	"context"
	"os"
	"strings"

	"github.com/wordparty/phraseforge/pkg/phraseforge/dedup"
)

// EntityClass distinguishes how a phrase matched the entity corpus.
type EntityClass int

const (
	EntityNone EntityClass = iota
	EntityAlias
	EntityExact
)

// EntitySignal is the entity processor's answer for one phrase.
type EntitySignal struct {
	Class     EntityClass
	Label     string
	Sitelinks int
}

// Entities answers "is this phrase a known distinct entity?".
type Entities interface {
	Lookup(ctx context.Context, text string) (EntitySignal, error)
	Mode() string
	Close() error
}

// Cooccurrence answers with a phrase's PMI against the reference
// corpus. ok is false when the phrase was never observed.
type Cooccurrence interface {
	PhrasePMI(ctx context.Context, phrase string) (float64, bool, error)
	Mode() string
	Close() error
}

// Concreteness answers with a word's concreteness rating on the 1-5
// norm scale. ok is false for unrated words.
type Concreteness interface {
	Rating(ctx context.Context, word string) (float64, bool, error)
	Mode() string
	Close() error
}

// Prominence answers with a phrase's recent pageview total, the
// cultural-validation input. ok is false for unknown phrases.
type Prominence interface {
	Pageviews(ctx context.Context, phrase string) (int64, bool, error)
	Mode() string
	Close() error
}

// Dictionary is the multi-word idiom list, the weakest distinctiveness
// band. Entries come from a pipe-separated file:
//
//	canonical|variant1|variant2|category
//
// Lines starting with # are comments.
type Dictionary struct {
	entries map[string]string // canonical form -> category
}

// LoadDictionary reads the idiom list from disk.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	d := &Dictionary{entries: make(map[string]string)}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		category := strings.TrimSpace(parts[len(parts)-1])
		for _, variant := range parts[:len(parts)-1] {
			canon := dedup.Canonical(variant)
			if canon != "" {
				d.entries[canon] = category
			}
		}
	}
	return d, nil
}

// NewDictionary builds a dictionary from in-memory phrases (tests,
// dry runs).
func NewDictionary(phrases []string) *Dictionary {
	d := &Dictionary{entries: make(map[string]string, len(phrases))}
	for _, p := range phrases {
		if canon := dedup.Canonical(p); canon != "" {
			d.entries[canon] = ""
		}
	}
	return d
}

// Contains reports whether the phrase is a known multi-word expression.
func (d *Dictionary) Contains(phrase string) bool {
	if d == nil {
		return false
	}
	_, ok := d.entries[dedup.Canonical(phrase)]
	return ok
}

// Len returns the number of dictionary entries.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}
