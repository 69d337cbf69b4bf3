package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wordparty/phraseforge/pkg/phraseforge/config"
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Re-decide pending review entries under current thresholds",
	Long: `Re-derive the decision for every pending review-queue entry from its
stored total under the thresholds currently in configuration.

Threshold changes never reinterpret stored decisions on their own;
after editing accept_threshold or reject_threshold, run this pass
explicitly.

Example:
  phraseforge rescore`,
	RunE: runRescore,
}

func runRescore(cmd *cobra.Command, args []string) error {
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

	sum, err := engine.Rescore(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Examined: %d\n", sum.Examined)
	fmt.Printf("Promoted: %d\n", sum.Promoted)
	fmt.Printf("Rejected: %d\n", sum.Rejected)
	fmt.Printf("Kept:     %d\n", sum.Kept)
	return nil
}
