package main

import (
	"errors"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/prudhvinik1/weddingsync/internal/clock"
	"github.com/prudhvinik1/weddingsync/internal/metrics"
	"github.com/prudhvinik1/weddingsync/internal/models"
	"github.com/prudhvinik1/weddingsync/internal/repositories"
	"github.com/prudhvinik1/weddingsync/internal/services"
)

var inspectAll bool

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [shared event id]",
		Short: "List the sync updates of a shared event without delivering them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("shared event id is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
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

			updates, err := ledger.Peek(ctx, args[0], inspectAll)
			if err != nil {
				return err
			}

			cmd.Printf("%s\n", renderUpdates(updates))
			return nil
		},
	}
}

func renderUpdates(updates []*models.SyncUpdate) string {
	tw := table.NewWriter()
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.SeparateFooter = false
	tw.Style().Options.SeparateHeader = false
	tw.Style().Options.SeparateRows = false
	tw.AppendHeader(table.Row{
		"SEQ",
		"ID",
		"USER",
		"TYPE",
		"ACTION",
		"TIMESTAMP",
		"STATUS",
		"DATA",
	})
	for _, update := range updates {
		status := color.YellowString("pending")
		if update.Processed {
			status = color.GreenString("delivered")
		}
		tw.AppendRow(table.Row{
			update.Seq,
			update.ID,
			update.UserID,
			update.Type,
			update.Action,
			time.UnixMilli(update.Timestamp).UTC().Format(time.RFC3339),
			status,
			lo.Ellipsis(string(update.Data), 40),
		})
	}
	return tw.Render()
}

func init() {
	cmd := newInspectCmd()
	cmd.Flags().BoolVar(
		&inspectAll,
		"all",
		false,
		"Include delivered updates",
	)
	rootCmd.AddCommand(cmd)
}
