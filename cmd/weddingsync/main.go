// Package main is the entry point of the weddingsync server and its
// maintenance commands.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/prudhvinik1/weddingsync/internal/config"
	"github.com/prudhvinik1/weddingsync/internal/logging"
)

var flagLogLevel string

var rootCmd = &cobra.Command{
	Use:          "weddingsync",
	Short:        "Sync-update ledger for collaborating wedding planners",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env file is fine; the environment may already be set.
		_ = godotenv.Load()
	},
}

// Run executes CLI.
func Run() int {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return 1
	}

	return 0
}

// loadConfig reads the configuration and applies the log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if err := logging.SetLogLevel(level); err != nil {
		return nil, err
	}

	return cfg, nil
}

func main() {
	os.Exit(Run())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&flagLogLevel,
		"log-level",
		"",
		"Log level: debug, info, warn, error, panic, fatal (overrides LOG_LEVEL)",
	)
}
