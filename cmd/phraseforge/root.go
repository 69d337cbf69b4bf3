package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wordparty/phraseforge/pkg/phraseforge"
	"github.com/wordparty/phraseforge/pkg/phraseforge/config"
	"github.com/wordparty/phraseforge/pkg/phraseforge/dedup"
	"github.com/wordparty/phraseforge/pkg/phraseforge/lookup"
	"github.com/wordparty/phraseforge/pkg/phraseforge/store"
	"github.com/wordparty/phraseforge/pkg/phraseforge/store/sqlite"
)

var (
	cfgPath string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "phraseforge",
	Short: "Phrase generation and quality scoring pipeline",
	Long: `Phraseforge generates candidate phrases for party word-guessing
games and scores them against corpus-backed quality signals before
anything reaches a deck.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "phraseforge.yaml", "Path to pipeline configuration")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to phrase database (default: ./phraseforge.db)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rescoreCmd)
	rootCmd.AddCommand(statsCmd)
}

func databasePath() string {
	if dbPath != "" {
		return dbPath
	}
	if v := os.Getenv("PHRASEFORGE_DB"); v != "" {
		return v
	}
	return "phraseforge.db"
}

// openEngine wires the full pipeline: config, store, the four lookup
// processors, the dictionary, and the Bloom index, with filters warmed
// from already-stored phrases.
func openEngine(ctx context.Context, st store.Store, cfg *config.Config) (*phraseforge.Engine, error) {
	entities, err := lookup.OpenEntities(cfg.Lookups.Entities)
	if err != nil {
		return nil, fmt.Errorf("open entities lookup: %w", err)
	}
	cooc, err := lookup.OpenCooccurrence(cfg.Lookups.Cooccurrence)
	if err != nil {
		return nil, fmt.Errorf("open cooccurrence lookup: %w", err)
	}
	concrete, err := lookup.OpenConcreteness(cfg.Lookups.Concreteness)
	if err != nil {
		return nil, fmt.Errorf("open concreteness lookup: %w", err)
	}
	prominence, err := lookup.OpenProminence(cfg.Lookups.Prominence)
	if err != nil {
		return nil, fmt.Errorf("open prominence lookup: %w", err)
	}

	var dict *lookup.Dictionary
	if cfg.Lookups.DictionaryPath != "" {
		dict, err = lookup.LoadDictionary(cfg.Lookups.DictionaryPath)
		if err != nil {
			return nil, fmt.Errorf("load dictionary: %w", err)
		}
	}

	fpRate := cfg.Dedup.FalsePositiveRate
	if fpRate <= 0 {
		fpRate = 0.01
	}

	engine := phraseforge.New(phraseforge.Options{
		Entities:     entities,
		Cooccurrence: cooc,
		Concreteness: concrete,
		Prominence:   prominence,
		Dictionary:   dict,
		Scoring:      cfg.Scoring,
		Categories:   cfg.Categories,
		Dedup:        dedup.NewIndex(fpRate),
		Store:        st,
	})

	if err := engine.WarmFilters(ctx); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}

func openSQLite(ctx context.Context) (store.Store, error) {
	st, err := sqlite.Open(ctx, databasePath())
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", databasePath(), err)
	}
	return st, nil
}
