// Package api wires the HTTP router for the understat wrangler API.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/understat-wrangler/internal/api/handler"
	"github.com/albapepper/understat-wrangler/internal/cache"
	"github.com/albapepper/understat-wrangler/internal/config"
	"github.com/albapepper/understat-wrangler/internal/pipeline"
)

// NewRouter creates and configures the Chi router with all middleware and
// routes. runs may be nil when no database is configured.
func NewRouter(svc *pipeline.Service, runs handler.RunStore, appCache *cache.Cache, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(svc, runs, appCache, cfg, logger)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/datasets", h.GetDatasets)

		// Scraped on demand
		r.Get("/league/{league}/{season}/{dataset}", h.GetLeagueDataset)
		r.Get("/team/{team}/{season}/{dataset}", h.GetTeamDataset)
		r.Get("/player/{playerID}/{dataset}", h.GetPlayerDataset)
		r.Get("/match/{matchID}/{dataset}", h.GetMatchDataset)
		r.Get("/stats", h.GetStats)

		// Stored by pipeline runs
		r.Get("/runs/{runID}", h.GetRunDatasets)
		r.Get("/runs/{runID}/{dataset}", h.GetRunDataset)
	})

	return r
}
