// Package api wires the admin HTTP surface: health, stats, and Prometheus
// metrics. It is an observability sidecar for the MCP daemon, not a
// data-plane API.
package api

import (
	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rknell/vibe-coder-sub002/internal/api/middleware"
	"github.com/rknell/vibe-coder-sub002/internal/config"
	"github.com/rknell/vibe-coder-sub002/internal/handlers"
	"github.com/rknell/vibe-coder-sub002/internal/models"
)

// NewRouter creates and configures the admin HTTP router.
func NewRouter(logger zerolog.Logger, reg *models.Registry, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware first to capture all requests.
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// The admin surface is read-only and local; allow the UI shell from any
	// origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := handlers.NewHandler(reg, cfg)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Get("/agents", h.ListAgents)

	return r
}
