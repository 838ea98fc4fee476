package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/prudhvinik1/weddingsync/internal/clock"
	"github.com/prudhvinik1/weddingsync/internal/database"
	"github.com/prudhvinik1/weddingsync/internal/repositories"
	"github.com/prudhvinik1/weddingsync/internal/services"
)

var tokenEvents []string

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token [user id] --event [shared event id]",
		Short: "Issue a bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("user id is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.AuthEnabled() {
				return errors.New("JWT_SECRET is required to issue tokens")
			}

			ctx := cmd.Context()
			var sessions repositories.SessionRepository
			if cfg.RedisURL != "" {
				client, err := database.NewRedisClient(ctx, cfg.RedisURL)
				if err != nil {
					return err
				}
				defer client.Close()
				sessions = repositories.NewRedisSessionRepository(client)
			}

			auth := services.NewAuthService(sessions, cfg.JWTSecret, cfg.JWTExpiry, clock.NewRealClock())
			issued, err := auth.IssueToken(ctx, services.IssueRequest{
				UserID:         args[0],
				SharedEventIDs: tokenEvents,
			})
			if err != nil {
				return err
			}

			cmd.Printf("%s\n", issued.Token)
			cmd.PrintErrf("session %s expires %s\n", issued.SessionID, issued.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func init() {
	cmd := newTokenCmd()
	cmd.Flags().StringSliceVar(
		&tokenEvents,
		"event",
		nil,
		"Shared event id the token may access (repeatable)",
	)
	rootCmd.AddCommand(cmd)
}
