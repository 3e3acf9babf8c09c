package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luminara-health/copilot/internal/config"
	"github.com/luminara-health/copilot/internal/database"
	"github.com/luminara-health/copilot/internal/jobs"
	"github.com/luminara-health/copilot/internal/repository"
)

// SweepCmd returns the sweep command, a one-shot run of the zero-chunk
// source sweeper.
func SweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove sources left without chunks by failed ingestions",
		RunE:  runSweep,
	}

	cmd.Flags().Duration("min-age", 0, "Only sweep sources older than this (defaults to COPILOT_SWEEP_MIN_AGE)")

	return cmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	minAge := cfg.SweepMinAge
	if flagAge, _ := cmd.Flags().GetDuration("min-age"); flagAge > 0 {
		minAge = flagAge
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	sweeper := jobs.NewSweeper(repository.NewSourceRepository(pool), minAge)
	if err := sweeper.ProcessJobs(ctx); err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	return nil
}
