// Package config provides centralized configuration loaded from environment
// variables, plus the run inputs file read by the pipeline commands.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Table names, matching schema.sql
// --------------------------------------------------------------------------

const (
	RunsTable         = "wrangle_runs"
	WrangledRowsTable = "wrangled_rows"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// understat scraper
	UnderstatBaseURL  string
	RequestsPerMinute int
	RequestTimeout    time.Duration
	PipelineWorkers   int

	// Output
	OutputRoot        string
	OutputEncoding    string // latin-1 or utf-8
	OutputTimestamped bool
	IDCacheDir        string
	InputsFile        string

	// Database (optional sink)
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Run retention, applied by the API server
	RunRetention     int
	RunPruneInterval time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Cache
	CacheEnabled bool
	CacheTTL     time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	return &Config{
		UnderstatBaseURL:  envOr("UNDERSTAT_BASE_URL", "https://understat.com"),
		RequestsPerMinute: envInt("UNDERSTAT_REQUESTS_PER_MINUTE", 60),
		RequestTimeout:    time.Duration(envInt("UNDERSTAT_TIMEOUT_SECONDS", 30)) * time.Second,
		PipelineWorkers:   envInt("PIPELINE_WORKERS", 4),

		OutputRoot:        envOr("OUTPUT_ROOT", ".."),
		OutputEncoding:    envOr("OUTPUT_ENCODING", "latin-1"),
		OutputTimestamped: envBool("OUTPUT_TIMESTAMPED", true),
		IDCacheDir:        envOr("ID_CACHE_DIR", "."),
		InputsFile:        envOr("WRANGLE_INPUTS", "wrangle.json5"),

		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 4),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		RunRetention:     envInt("RUN_RETENTION", 20),
		RunPruneInterval: time.Duration(envInt("RUN_PRUNE_INTERVAL_MINUTES", 60)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled: envBool("CACHE_ENABLED", true),
		CacheTTL:     time.Duration(envInt("CACHE_TTL_SECONDS", 600)) * time.Second,
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasDatabase reports whether a Postgres sink is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
