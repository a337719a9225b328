package handler

import (
	"net/http"
	"time"

	"github.com/matchday/matchday-data/internal/api/respond"
)

// GetCacheStats reports fixture-store contents, accessor hit rates, and
// result-set cache state in one payload.
func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	storeStats, err := h.store.CacheStats(r.Context())
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "STATS_ERROR",
			"Could not read cache statistics", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"fixture_cache": storeStats,
		"access":        h.odds.AccessStats(),
		"result_cache":  h.results.Stats(),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

// GetJobStats reports the background sync job's accumulated counters.
func (h *Handler) GetJobStats(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"job":       h.job.JobStats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
