// Package handler provides HTTP handlers for all API endpoints.
// Handlers read through the fixture cache and the result-set cache;
// aggregated responses are passed through as raw JSON bytes.
package handler

import (
	"net/http"
	"time"

	"github.com/matchday/matchday-data/internal/agg"
	"github.com/matchday/matchday-data/internal/api/respond"
	"github.com/matchday/matchday-data/internal/config"
	"github.com/matchday/matchday-data/internal/db"
	"github.com/matchday/matchday-data/internal/odds"
	"github.com/matchday/matchday-data/internal/refresh"
	"github.com/matchday/matchday-data/internal/rescache"
	"github.com/matchday/matchday-data/internal/store"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store      store.Store
	pool       *db.Pool // nil when running on the in-memory store
	odds       *odds.Accessor
	aggregator *agg.Aggregator
	job        *refresh.Job
	results    *rescache.Cache
	cfg        *config.Config
}

// Deps bundles the constructor arguments.
type Deps struct {
	Store      store.Store
	Pool       *db.Pool
	Odds       *odds.Accessor
	Aggregator *agg.Aggregator
	Job        *refresh.Job
	Results    *rescache.Cache
	Config     *config.Config
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	return &Handler{
		store:      d.Store,
		pool:       d.Pool,
		odds:       d.Odds,
		aggregator: d.Aggregator,
		job:        d.Job,
		results:    d.Results,
		cfg:        d.Config,
	}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Matchday Data API",
		"version": "1.0.0",
		"status":  "running",
		"features": []string{
			"status_driven_freshness",
			"shared_upstream_rate_limit",
			"result_set_cache",
			"etag_support",
			"background_sync",
		},
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity. The in-memory store has no
// database to check and reports its mode instead.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"database":  "in-memory",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	if err := h.pool.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns result-set cache statistics.
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.results.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
