package handler

import (
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/matchday/matchday-data/internal/agg"
	"github.com/matchday/matchday-data/internal/api/respond"
	"github.com/matchday/matchday-data/internal/rescache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GetFixturesByDate returns league-grouped fixtures for one calendar day.
// Defaults to today (UTC) when no date parameter is given. Aggregates are
// served from the result-set cache with ETag revalidation.
func (h *Handler) GetFixturesByDate(w http.ResponseWriter, r *http.Request) {
	dateParam := r.URL.Query().Get("date")
	date := time.Now().UTC()
	if dateParam != "" {
		parsed, err := time.Parse("2006-01-02", dateParam)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}
	day := date.Format("2006-01-02")

	cacheKey := rescache.Key(rescache.TypeDaily, day)
	if data, etag, ok := h.results.Get(cacheKey); ok {
		if rescache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, rescache.TTLDaily, true)
		return
	}

	groups, err := h.aggregator.FixturesForDate(r.Context(), date)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadGateway, "UPSTREAM_ERROR",
			"Could not aggregate fixtures for "+day, err.Error())
		return
	}
	if groups == nil {
		groups = []agg.LeagueGroup{}
	}

	data, err := json.Marshal(groups)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Failed to encode fixtures")
		return
	}
	etag := h.results.Set(cacheKey, data, rescache.TTLDaily)
	respond.WriteJSON(w, data, etag, rescache.TTLDaily, false)
}

// GetHotMatches returns the hot-league window: live and upcoming fixtures
// across the featured leagues, odds attached, grouped and ordered.
func (h *Handler) GetHotMatches(w http.ResponseWriter, r *http.Request) {
	cacheKey := rescache.Key(rescache.TypeHot, "window")
	if data, etag, ok := h.results.Get(cacheKey); ok {
		if rescache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, rescache.TTLHot, true)
		return
	}

	groups, err := h.aggregator.HotMatches(r.Context())
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadGateway, "UPSTREAM_ERROR",
			"Could not assemble hot matches", err.Error())
		return
	}
	h.aggregator.AttachOdds(r.Context(), groups)
	if groups == nil {
		groups = []agg.LeagueGroup{}
	}

	data, err := json.Marshal(groups)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Failed to encode hot matches")
		return
	}
	etag := h.results.Set(cacheKey, data, rescache.TTLHot)
	respond.WriteJSON(w, data, etag, rescache.TTLHot, false)
}
