package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matchday/matchday-data/internal/api/respond"
	"github.com/matchday/matchday-data/internal/rescache"
)

// GetFixtureOdds returns bookmaker odds for one fixture, cache-aside: a
// cached fresh record answers directly, anything else triggers one
// rate-limited upstream fetch. An empty result is a 404, never an error.
func (h *Handler) GetFixtureOdds(w http.ResponseWriter, r *http.Request) {
	fixtureID, err := strconv.Atoi(chi.URLParam(r, "fixtureID"))
	if err != nil || fixtureID <= 0 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_FIXTURE_ID", "fixtureID must be a positive integer")
		return
	}

	bookmakers := h.odds.GetOrFetch(r.Context(), fixtureID, nil)
	if len(bookmakers) == 0 {
		respond.WriteError(w, http.StatusNotFound, "NO_ODDS", "No odds available for this fixture")
		return
	}

	body := map[string]interface{}{
		"fixture_id": fixtureID,
		"bookmakers": bookmakers,
	}
	data, err := json.Marshal(body)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Failed to encode odds")
		return
	}
	respond.WriteJSON(w, data, rescache.ComputeETag(data), rescache.TTLLive, false)
}
