package main

import (
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prudhvinik1/weddingsync/internal/clock"
	"github.com/prudhvinik1/weddingsync/internal/metrics"
	"github.com/prudhvinik1/weddingsync/internal/repositories"
	"github.com/prudhvinik1/weddingsync/internal/services"
)

var (
	sweepDryRun    bool
	sweepRetention time.Duration
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep [options]",
		Short: "Remove processed sync updates past their retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			retention := cfg.ProcessedRetention
			if cmd.Flags().Changed("retention") {
				retention = sweepRetention
			}

			ctx := cmd.Context()
			b, err := openBackend(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer b.Close(ctx)

			m, err := metrics.NewMetrics()
			if err != nil {
				return err
			}
			ledger := services.NewLedgerService(b.repo, repositories.NewLocalNotifier(), clock.NewRealClock(), m, services.LedgerOptions{})

			count, err := ledger.Sweep(ctx, retention, sweepDryRun)
			if err != nil {
				cmd.PrintErrf("%s %v\n", color.RedString("FAILED"), err)
				return err
			}

			if sweepDryRun {
				cmd.Printf("%s %d processed updates older than %s would be removed\n", color.YellowString("DRY RUN"), count, retention)
				return nil
			}
			cmd.Printf("%s removed %d processed updates older than %s\n", color.GreenString("OK"), count, retention)
			return nil
		},
	}
}

func init() {
	cmd := newSweepCmd()
	cmd.Flags().BoolVar(
		&sweepDryRun,
		"dry-run",
		false,
		"Only count the updates that would be removed",
	)
	cmd.Flags().DurationVar(
		&sweepRetention,
		"retention",
		0,
		"Keep processed updates delivered within this duration (defaults to PROCESSED_RETENTION)",
	)
	rootCmd.AddCommand(cmd)
}
