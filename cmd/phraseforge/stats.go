package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wordparty/phraseforge/pkg/phraseforge/config"
	"github.com/wordparty/phraseforge/pkg/phraseforge/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show quota progress, duplicate rates, and session state",
	Long: `Display per-category quota progress with duplicate pre-emption
stats, the pending review backlog, and any resumable session.

Example:
  phraseforge stats`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openSQLite(ctx)
	if err != nil {
		return err
	}

	engine, err := openEngine(ctx, st, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	cats := append([]config.Category(nil), cfg.Categories...)
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })

	fmt.Println("Category quotas")
	fmt.Println("---------------")
	for _, cat := range cats {
		have, err := st.CountByCategory(ctx, cat.Name)
		if err != nil {
			return fmt.Errorf("count %s: %w", cat.Name, err)
		}
		fmt.Printf("%-16s %5d / %-5d  dupes=%-5d fp~%.4f\n",
			cat.Name, have, cat.Target,
			engine.Dedup().Duplicates(cat.Name),
			engine.Dedup().FalsePositiveRate(cat.Name))
	}

	pending, err := st.PendingReviews(ctx, 0)
	if err != nil {
		return fmt.Errorf("pending reviews: %w", err)
	}
	fmt.Printf("\nPending review: %d\n", len(pending))

	sess, ok, err := st.LatestIncompleteSession(ctx)
	if err != nil {
		return fmt.Errorf("latest session: %w", err)
	}
	if !ok {
		fmt.Println("Resumable session: none")
		return nil
	}

	queued, inFlight, stored, failed := 0, 0, 0, 0
	for _, b := range sess.Batches {
		switch b.Status {
		case store.BatchQueued:
			queued++
		case store.BatchInFlight:
			inFlight++
		case store.BatchStored:
			stored++
		case store.BatchFailed:
			failed++
		}
	}
	fmt.Printf("Resumable session: %s (%s)\n", sess.ID, sess.Status)
	fmt.Printf("  batches: %d queued, %d in-flight, %d stored, %d failed\n",
		queued, inFlight, stored, failed)
	return nil
}
