// Package handler provides HTTP handlers for all API endpoints.
// Dataset handlers scrape understat on demand through the pipeline service
// and serve the wrangled tables as JSON or CSV; run handlers read tables a
// pipeline run stored in Postgres.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/understat-wrangler/internal/api/respond"
	"github.com/albapepper/understat-wrangler/internal/cache"
	"github.com/albapepper/understat-wrangler/internal/config"
	"github.com/albapepper/understat-wrangler/internal/idcache"
	"github.com/albapepper/understat-wrangler/internal/normalize"
	"github.com/albapepper/understat-wrangler/internal/pipeline"
	"github.com/albapepper/understat-wrangler/internal/understat"
)

// RunStore reads stored pipeline runs. *db.Pool satisfies it.
type RunStore interface {
	HealthCheck(ctx context.Context) error
	LatestRun(ctx context.Context) (string, error)
	Datasets(ctx context.Context, runID string) ([]string, error)
	DatasetRows(ctx context.Context, runID, dataset string) ([][]byte, error)
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	svc    *pipeline.Service
	runs   RunStore // nil when no database is configured
	cache  *cache.Cache
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Handler with shared dependencies. runs may be nil.
func New(svc *pipeline.Service, runs RunStore, c *cache.Cache, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:    svc,
		runs:   runs,
		cache:  c,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, status, and available optimizations.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":     "understat wrangler API",
		"version":  "1.0.0",
		"status":   "running",
		"docs":     "/docs",
		"database": h.runs != nil,
		"optimizations": []string{
			"rate_limited_scraper",
			"in_memory_cache",
			"etag_support",
			"gzip_compression",
		},
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity when a database sink is configured.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"database":  "not_configured",
			"timestamp": h.now().UTC().Format(time.RFC3339),
		})
		return
	}
	if err := h.runs.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("database health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": h.now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics (active keys, expired keys, hits, misses).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// writeUpstreamError maps a scrape or wrangle failure to an API error.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var statusErr *understat.StatusError
	switch {
	case errors.Is(err, understat.ErrVariableNotFound),
		errors.As(err, &statusErr) && statusErr.NotFound():
		respond.WriteErrorDetail(w, http.StatusNotFound, "NOT_FOUND", "understat has no such page or dataset", err.Error())
	case errors.Is(err, idcache.ErrUnknownID):
		respond.WriteErrorDetail(w, http.StatusNotFound, "UNKNOWN_ID", "id is not in the id cache", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respond.WriteError(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "understat did not answer in time")
	case errors.Is(err, context.Canceled):
		// client went away
	case errors.Is(err, normalize.ErrParse),
		errors.Is(err, normalize.ErrShape),
		errors.Is(err, normalize.ErrMissingColumn),
		errors.Is(err, normalize.ErrInvalidField),
		errors.Is(err, normalize.ErrTypeCoercion):
		h.logger.Error("wrangle failed", "path", r.URL.Path, "error", err)
		respond.WriteErrorDetail(w, http.StatusBadGateway, "UPSTREAM_FORMAT", "understat data has an unexpected shape", err.Error())
	default:
		h.logger.Error("scrape failed", "path", r.URL.Path, "error", err)
		respond.WriteErrorDetail(w, http.StatusBadGateway, "UPSTREAM_ERROR", "understat request failed", err.Error())
	}
}

// currentSeason returns the start year of the season running at now.
// A season is taken to start in July.
func currentSeason(now time.Time) int {
	if now.Month() >= time.July {
		return now.Year()
	}
	return now.Year() - 1
}

// seasonTTL caches finished seasons longer than the running one.
func (h *Handler) seasonTTL(season int) time.Duration {
	if season < currentSeason(h.now()) {
		return cache.TTLHistorical
	}
	return h.liveTTL()
}

func (h *Handler) liveTTL() time.Duration {
	if h.cfg != nil && h.cfg.CacheTTL > 0 {
		return h.cfg.CacheTTL
	}
	return cache.TTLCurrentSeason
}
