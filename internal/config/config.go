// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/syncctl.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Hot leagues — curated whitelist of top-tier competitions prioritized for
// pre-fetching and display. API-Football league ids.
// --------------------------------------------------------------------------

var defaultHotLeagues = []int{
	39,  // Premier League
	140, // La Liga
	135, // Serie A
	78,  // Bundesliga
	61,  // Ligue 1
	2,   // Champions League
	3,   // Europa League
}

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database. Empty DatabaseURL switches the fixture cache to the
	// in-memory store (development mode).
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Inbound rate limiting (HTTP layer)
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Upstream provider
	APIFootballKey     string
	APIFootballBaseURL string
	UpstreamRPM        int // shared token-bucket budget, requests/minute

	// Refresh engine
	HotLeagues       []int
	SyncBatchCeiling int           // max fixtures per expiring pass
	ExpiryLookahead  time.Duration // expiring-pass window
	PrecacheDays     int           // days ahead for league pre-caching
	MaxLookaheadDays int           // hot-matches widening bound
	MinHotLeagues    int           // stop widening once this many leagues found

	// Worker cadences
	LiveInterval     time.Duration
	HotInterval      time.Duration
	WarmupInterval   time.Duration
	SnapshotInterval time.Duration

	// Result-set cache
	ResultCacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	return &Config{
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

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

		APIFootballKey:     envOr("API_FOOTBALL_KEY", ""),
		APIFootballBaseURL: envOr("API_FOOTBALL_BASE_URL", ""),
		UpstreamRPM:        envInt("UPSTREAM_REQUESTS_PER_MINUTE", 30),

		HotLeagues:       envIntList("HOT_LEAGUES", defaultHotLeagues),
		SyncBatchCeiling: envInt("SYNC_BATCH_CEILING", 20),
		ExpiryLookahead:  time.Duration(envInt("EXPIRY_LOOKAHEAD_MINUTES", 10)) * time.Minute,
		PrecacheDays:     envInt("PRECACHE_DAYS", 3),
		MaxLookaheadDays: envInt("MAX_LOOKAHEAD_DAYS", 4),
		MinHotLeagues:    envInt("MIN_HOT_LEAGUES", 3),

		LiveInterval:     envDuration("LIVE_INTERVAL", 30*time.Second),
		HotInterval:      envDuration("HOT_INTERVAL", time.Minute),
		WarmupInterval:   envDuration("WARMUP_INTERVAL", 7*time.Minute),
		SnapshotInterval: envDuration("SNAPSHOT_INTERVAL", 5*time.Minute),

		ResultCacheEnabled: envBool("RESULT_CACHE_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
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

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
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

func envIntList(key string, fallback []int) []int {
	raw := envList(key, nil)
	if raw == nil {
		return fallback
	}
	result := make([]int, 0, len(raw))
	for _, p := range raw {
		if n, err := strconv.Atoi(p); err == nil {
			result = append(result, n)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
