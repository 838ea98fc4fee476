package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/prudhvinik1/weddingsync/internal/clock"
	"github.com/prudhvinik1/weddingsync/internal/config"
	"github.com/prudhvinik1/weddingsync/internal/handlers"
	"github.com/prudhvinik1/weddingsync/internal/housekeeping"
	"github.com/prudhvinik1/weddingsync/internal/logging"
	"github.com/prudhvinik1/weddingsync/internal/metrics"
	"github.com/prudhvinik1/weddingsync/internal/repositories"
	"github.com/prudhvinik1/weddingsync/internal/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New("server")

	m, err := metrics.NewMetrics()
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg, true)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer b.Close(context.Background())

	clk := clock.NewRealClock()
	ledger := services.NewLedgerService(b.repo, b.notifier(), clk, m, services.LedgerOptions{
		MaxBatch: cfg.DrainMaxBatch,
		MaxWait:  cfg.DrainMaxWait,
	})

	routerCfg := handlers.RouterConfig{
		Ledger:  ledger,
		Metrics: m,
		Logger:  logging.New("http"),
	}
	if b.redis != nil {
		routerCfg.Presence = services.NewPresenceService(repositories.NewRedisPresenceRepository(b.redis), clk)
	}
	if cfg.AuthEnabled() {
		routerCfg.Auth = services.NewAuthService(b.sessions(), cfg.JWTSecret, cfg.JWTExpiry, clk)
	} else {
		logger.Warn("JWT_SECRET is not set, sync endpoints are unauthenticated")
	}

	hk, err := housekeeping.New(ledger, cfg.SweepInterval, cfg.ProcessedRetention, logging.New("housekeeping"))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           handlers.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.DrainMaxWait + 30*time.Second,
		// Waiting drains return as soon as shutdown starts.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		logger.Infof("Starting server on port %s with %s store", cfg.ServerPort, cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return hk.Run(gctx)
	})

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()

		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
