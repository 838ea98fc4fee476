// Package handlers exposes the sync ledger over HTTP.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/prudhvinik1/weddingsync/internal/logging"
	"github.com/prudhvinik1/weddingsync/internal/metrics"
	"github.com/prudhvinik1/weddingsync/internal/services"
)

type RouterConfig struct {
	Ledger *services.LedgerService
	// Presence is nil when no Redis is configured.
	Presence *services.PresenceService
	// Auth is nil when tokens are not required.
	Auth    *services.AuthService
	Metrics *metrics.Metrics
	Logger  logging.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(RequestLogger(cfg.Logger))
	router.Use(middleware.Recoverer)
	router.Use(InstrumentRoutes(cfg.Metrics))

	// Health check endpoints
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	syncHandler := NewSyncHandler(cfg.Ledger)
	router.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(Authenticate(cfg.Auth))
			r.Post("/auth/logout", NewAuthHandler(cfg.Auth).Logout)
		}

		r.Post("/sync/store-update", syncHandler.StoreUpdate)
		r.Get("/sync/check-updates", syncHandler.CheckUpdates)
		r.Get("/sync/updates", syncHandler.ListUpdates)

		if cfg.Presence != nil {
			presenceHandler := NewPresenceHandler(cfg.Presence)
			r.Post("/sync/presence", presenceHandler.Heartbeat)
			r.Get("/sync/presence", presenceHandler.List)
		}
	})

	return router
}
