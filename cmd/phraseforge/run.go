package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wordparty/phraseforge/internal/provider"
	"github.com/wordparty/phraseforge/pkg/phraseforge/config"
	"github.com/wordparty/phraseforge/pkg/phraseforge/generator"
	"github.com/wordparty/phraseforge/pkg/phraseforge/runner"
	"github.com/wordparty/phraseforge/pkg/phraseforge/score"
	"github.com/wordparty/phraseforge/pkg/phraseforge/store"
	"github.com/wordparty/phraseforge/pkg/phraseforge/store/memstore"
)

var (
	runCategories  []string
	runBatchSize   int
	runConcurrency int
	runMaxBatches  int
	runResume      bool
	runDryRun      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan and execute a generation session",
	Long: `Plan a session from current category quota deficits and execute it
on a rate-limited worker pool. Progress checkpoints after every batch,
so an interrupted run picks up with --resume.

Example:
  phraseforge run
  phraseforge run --category animals --category movies --batch-size 25
  phraseforge run --resume
  phraseforge run --dry-run`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&runCategories, "category", nil, "Limit the session to these categories (repeatable)")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "Candidates requested per batch (default from config)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Worker pool size (default from config)")
	runCmd.Flags().IntVar(&runMaxBatches, "max-batches", 0, "Cap on batches this session (default from config)")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Resume the latest incomplete session instead of planning a new one")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Exercise the full pipeline with a canned provider and an in-memory store")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	// SIGINT suspends the session rather than killing it mid-batch;
	// in-flight work finishes and checkpoints.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if runDryRun {
		st = memstore.New()
	} else {
		st, err = openSQLite(ctx)
		if err != nil {
			return err
		}
	}

	engine, err := openEngine(ctx, st, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	categories := cfg.Categories
	if len(runCategories) > 0 {
		categories = nil
		for _, name := range runCategories {
			cat, ok := cfg.CategoryByName(name)
			if !ok {
				return fmt.Errorf("unknown category %q", name)
			}
			categories = append(categories, cat)
		}
	}

	primary, secondary, limits := buildProviders(cfg)

	r := runner.New(runner.Options{
		Store:       st,
		Pipeline:    engine,
		Primary:     primary,
		Secondary:   secondary,
		Limits:      limits,
		Categories:  categories,
		Source:      score.SourceAIGenerated,
		Dedup:       cfg.Dedup,
		Concurrency: intOr(runConcurrency, cfg.Runner.Concurrency),
		BatchSize:   intOr(runBatchSize, cfg.Runner.BatchSize),
		MaxBatches:  intOr(runMaxBatches, cfg.Runner.MaxBatches),
		Rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	})

	var sum runner.Summary
	if runResume {
		sum, err = r.Resume(ctx)
	} else {
		sum, err = r.Start(ctx)
	}
	if err != nil {
		return err
	}

	printSummary(sum)

	if sum.Status == store.SessionCompleted && !runDryRun {
		if err := st.ArchiveSession(context.Background(), sum.SessionID); err != nil {
			return fmt.Errorf("archive session: %w", err)
		}
	}
	return nil
}

// buildProviders returns the configured generator clients and their
// rate budgets. Dry runs swap in a deterministic canned provider.
func buildProviders(cfg *config.Config) (generator.Provider, generator.Provider, map[string]*runner.Limiter) {
	if runDryRun {
		canned := &generator.Static{
			ID:      "dry-run",
			Model:   "canned",
			Phrases: dryRunPhrases(cfg),
		}
		return canned, nil, nil
	}

	limits := make(map[string]*runner.Limiter)

	primary := provider.FromConfig(cfg.Providers.Primary)
	limits[primary.Name()] = runner.NewLimiter(
		cfg.Providers.Primary.RequestsPerMinute,
		cfg.Providers.Primary.RequestsPerDay,
	)

	var secondary generator.Provider
	if cfg.Providers.Secondary.BaseURL != "" {
		s := provider.FromConfig(cfg.Providers.Secondary)
		limits[s.Name()] = runner.NewLimiter(
			cfg.Providers.Secondary.RequestsPerMinute,
			cfg.Providers.Secondary.RequestsPerDay,
		)
		secondary = s
	}

	return primary, secondary, limits
}

// dryRunPhrases seeds each configured category with its rarity seeds
// so a dry run has something to push through the scorers.
func dryRunPhrases(cfg *config.Config) map[string][]string {
	out := make(map[string][]string, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		out[cat.Name] = append([]string{cat.Name}, cat.RaritySeeds...)
	}
	return out
}

func printSummary(sum runner.Summary) {
	fmt.Printf("Session %s: %s\n", sum.SessionID, sum.Status)
	fmt.Println("------------------------------------------")
	fmt.Printf("Batches:     %d stored, %d failed, %d pending\n", sum.Stored, sum.Failed, sum.Requeued)
	fmt.Printf("Candidates:  %d\n", sum.Candidates)
	fmt.Printf("Accepted:    %d\n", sum.Accepted)
	fmt.Printf("Review:      %d\n", sum.Review)
	fmt.Printf("Rejected:    %d\n", sum.Rejected)
	fmt.Printf("Duplicates:  %d\n", sum.Duplicates)
}

func intOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
