// Package odds implements the cache-aside read path for bookmaker odds:
// try the fixture store first, fall back to a live upstream fetch on miss
// or expiry, and write the result back through the freshness policy.
//
// The accessor never propagates fetch failures — it logs and returns nil
// so a single broken fixture cannot abort a batch. Retries belong to the
// sync job's next scheduled pass, not this layer.
//
// Two concurrent callers missing on the same fixture will both fetch and
// both upsert; last write wins and the payload is idempotent, so the only
// cost is one wasted upstream call. Accepted, not a bug.
package odds

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/matchday/matchday-data/internal/freshness"
	"github.com/matchday/matchday-data/internal/provider/apifootball"
	"github.com/matchday/matchday-data/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Provider is the slice of the upstream client the accessor needs.
type Provider interface {
	FetchFixtures(ctx context.Context, f apifootball.Filter) ([]apifootball.Fixture, error)
	FetchOdds(ctx context.Context, f apifootball.OddsFilter) ([]apifootball.FixtureOdds, error)
}

// Stats counts accessor traffic since process start.
type Stats struct {
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Fetches int `json:"fetches"`
	Errors  int `json:"errors"`
}

// Accessor is the cache-aside read path. Construct once and inject.
type Accessor struct {
	store    store.Store
	provider Provider
	logger   *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewAccessor creates an accessor over a store and an upstream provider.
func NewAccessor(s store.Store, p Provider, logger *slog.Logger) *Accessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accessor{store: s, provider: p, logger: logger}
}

// GetOdds returns cached bookmakers for a fixture, or nil on miss or
// expiry. Cache-only: never touches upstream.
func (a *Accessor) GetOdds(ctx context.Context, fixtureID int) ([]apifootball.Bookmaker, error) {
	rec, err := a.store.Get(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		a.count(func(s *Stats) { s.Misses++ })
		return nil, nil
	}
	a.count(func(s *Stats) { s.Hits++ })
	return decodeBookmakers(rec.Payload), nil
}

// GetOrFetch returns bookmakers for a fixture, fetching from upstream and
// writing through the cache on a miss. meta, when non-nil, supplies the
// fixture descriptor and saves the second upstream call a cold record
// would otherwise need. Returns nil (no error) when upstream has nothing
// or the fetch fails.
func (a *Accessor) GetOrFetch(ctx context.Context, fixtureID int, meta *apifootball.Fixture) []apifootball.Bookmaker {
	// Store.Get already treats an expired row as a miss and removes it,
	// so a non-nil record is always valid here.
	rec, err := a.store.Get(ctx, fixtureID)
	if err != nil {
		a.logger.Warn("Cache read failed, falling through to fetch",
			"fixture_id", fixtureID, "error", err)
	}
	if rec != nil {
		a.count(func(s *Stats) { s.Hits++ })
		return decodeBookmakers(rec.Payload)
	}
	a.count(func(s *Stats) { s.Misses++ })

	odds, err := a.provider.FetchOdds(ctx, apifootball.OddsFilter{Fixture: fixtureID})
	if err != nil {
		a.logFetchError("odds", fixtureID, err)
		return nil
	}
	a.count(func(s *Stats) { s.Fetches++ })
	if len(odds) == 0 || len(odds[0].Bookmakers) == 0 {
		return nil
	}
	bookmakers := odds[0].Bookmakers

	if meta == nil {
		fixtures, err := a.provider.FetchFixtures(ctx, apifootball.Filter{ID: fixtureID})
		if err != nil {
			a.logFetchError("fixture descriptor", fixtureID, err)
			return nil
		}
		if len(fixtures) == 0 {
			return nil
		}
		meta = &fixtures[0]
	}

	payload, err := json.Marshal(bookmakers)
	if err != nil {
		a.logger.Warn("Failed to encode odds payload", "fixture_id", fixtureID, "error", err)
		return nil
	}
	rec = recordFromFixture(meta, payload)
	if err := a.store.Upsert(ctx, rec); err != nil {
		// Persistence failure: still return the live data.
		a.logger.Warn("Failed to cache odds", "fixture_id", fixtureID, "error", err)
	}
	return bookmakers
}

// --------------------------------------------------------------------------
// Downstream query surface
// --------------------------------------------------------------------------

// NeedsUpdate describes a fixture due for refresh.
type NeedsUpdate struct {
	FixtureID int                `json:"fixture_id"`
	Priority  freshness.Priority `json:"priority"`
	Status    freshness.Status   `json:"status"`
	MatchDate time.Time          `json:"match_date"`
}

// FindFixturesNeedingUpdate returns fixtures whose cache expires within
// the given number of minutes, refresh-ordered.
func (a *Accessor) FindFixturesNeedingUpdate(ctx context.Context, minutes int) ([]NeedsUpdate, error) {
	recs, err := a.store.FindExpiringWithin(ctx, time.Duration(minutes)*time.Minute)
	if err != nil {
		return nil, err
	}
	out := make([]NeedsUpdate, 0, len(recs))
	for _, r := range recs {
		out = append(out, NeedsUpdate{
			FixtureID: r.FixtureID,
			Priority:  r.Priority,
			Status:    r.Status,
			MatchDate: r.MatchDate,
		})
	}
	return out, nil
}

// FindLiveFixtures returns the ids of fixtures currently cached as live.
func (a *Accessor) FindLiveFixtures(ctx context.Context) ([]int, error) {
	recs, err := a.store.FindByStatus(ctx, freshness.StatusLive)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.FixtureID)
	}
	return ids, nil
}

// FindUpcomingFixtures returns scheduled fixtures kicking off within the
// given number of hours.
func (a *Accessor) FindUpcomingFixtures(ctx context.Context, hours int) ([]store.Record, error) {
	return a.store.FindUpcomingWithin(ctx, hours)
}

// CacheStats summarizes the underlying store.
func (a *Accessor) CacheStats(ctx context.Context) (store.Stats, error) {
	return a.store.CacheStats(ctx)
}

// AccessStats returns accessor hit/miss counters.
func (a *Accessor) AccessStats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// --------------------------------------------------------------------------
// Internals
// --------------------------------------------------------------------------

func (a *Accessor) count(fn func(*Stats)) {
	a.mu.Lock()
	fn(&a.stats)
	a.mu.Unlock()
}

func (a *Accessor) logFetchError(what string, fixtureID int, err error) {
	a.count(func(s *Stats) { s.Errors++ })
	if errors.Is(err, apifootball.ErrQuota) {
		a.logger.Error("Upstream quota restriction", "fetch", what, "fixture_id", fixtureID, "error", err)
		return
	}
	a.logger.Warn("Upstream fetch failed", "fetch", what, "fixture_id", fixtureID, "error", err)
}

// recordFromFixture builds a cache record from an upstream descriptor.
// Derived fields are left zero — Upsert computes them.
func recordFromFixture(f *apifootball.Fixture, payload []byte) *store.Record {
	return &store.Record{
		FixtureID:  f.ID,
		LeagueID:   f.LeagueID,
		LeagueName: f.LeagueName,
		SeasonYear: f.Season,
		HomeTeam:   store.Team(f.HomeTeam),
		AwayTeam:   store.Team(f.AwayTeam),
		MatchDate:  f.Date,
		Status:     freshness.ParseStatus(f.StatusShort),
		Payload:    payload,
	}
}

func decodeBookmakers(payload []byte) []apifootball.Bookmaker {
	if len(payload) == 0 {
		return nil
	}
	var bm []apifootball.Bookmaker
	if err := json.Unmarshal(payload, &bm); err != nil {
		return nil
	}
	return bm
}
