// Package refresh keeps the fixture cache aligned with the upstream provider.
// The Job is the write path: scheduled passes over live, imminent, and
// expiring fixtures, refreshed one at a time through the shared upstream
// rate limiter, plus league pre-caching and expired-row eviction.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/matchday/matchday-data/internal/freshness"
	"github.com/matchday/matchday-data/internal/provider/apifootball"
	"github.com/matchday/matchday-data/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Provider is the slice of the upstream client the job needs.
type Provider interface {
	FetchFixtures(ctx context.Context, f apifootball.Filter) ([]apifootball.Fixture, error)
	FetchOdds(ctx context.Context, f apifootball.OddsFilter) ([]apifootball.FixtureOdds, error)
}

// Config bounds a job's API spend per run.
type Config struct {
	BatchCeiling    int           // max fixtures in the expiring pass
	ExpiryLookahead time.Duration // expiring-pass window
	UpcomingHours   int           // horizon of the imminent pass query
	ImminentWindow  time.Duration // kickoff cutoff within that horizon
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchCeiling:    20,
		ExpiryLookahead: 10 * time.Minute,
		UpcomingHours:   24,
		ImminentWindow:  2 * time.Hour,
	}
}

// Stats are process-wide counters accumulated across runs.
type Stats struct {
	TotalRuns         int       `json:"total_runs"`
	SuccessfulUpdates int       `json:"successful_updates"`
	FailedUpdates     int       `json:"failed_updates"`
	APICallsSaved     int       `json:"api_calls_saved"`
	IsRunning         bool      `json:"is_running"`
	LastRun           time.Time `json:"last_run"`
}

// PassResult tracks one pass within a run.
type PassResult struct {
	Attempted int
	Succeeded int
	Failed    int
}

// RunResult tracks the outcome of a full sync run.
type RunResult struct {
	Skipped  bool
	Live     PassResult
	Imminent PassResult
	Expiring PassResult
	Evicted  int
	Duration time.Duration
}

// Summary returns a human-readable summary.
func (r *RunResult) Summary() string {
	if r.Skipped {
		return "skipped (already running)"
	}
	return fmt.Sprintf("live=%d/%d imminent=%d/%d expiring=%d/%d evicted=%d dur=%s",
		r.Live.Succeeded, r.Live.Attempted,
		r.Imminent.Succeeded, r.Imminent.Attempted,
		r.Expiring.Succeeded, r.Expiring.Attempted,
		r.Evicted, r.Duration.Round(time.Millisecond))
}

// Job refreshes cached fixtures from upstream. Construct once and inject.
type Job struct {
	store    store.Store
	provider Provider
	logger   *slog.Logger
	cfg      Config

	// running guards against overlapping runs from the same timer. It does
	// not serialize against ad-hoc cache-aside fetches; that race is
	// resolved by last-write-wins upserts.
	running atomic.Bool

	mu    sync.Mutex
	stats Stats
}

// NewJob creates a sync job over a store and an upstream provider.
func NewJob(s store.Store, p Provider, cfg Config, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchCeiling == 0 {
		cfg = DefaultConfig()
	}
	return &Job{store: s, provider: p, cfg: cfg, logger: logger}
}

// Run executes one full sync cycle: live pass, imminent pass, expiring
// pass, then eviction. A run that finds another already in progress is a
// silent no-op.
func (j *Job) Run(ctx context.Context) RunResult {
	if !j.running.CompareAndSwap(false, true) {
		j.logger.Debug("Sync run skipped, previous run still in progress")
		return RunResult{Skipped: true}
	}
	defer j.running.Store(false)

	start := time.Now()
	var result RunResult
	refreshed := make(map[int]bool)

	result.Live = j.livePass(ctx, refreshed)
	result.Imminent = j.imminentPass(ctx, refreshed)
	result.Expiring = j.expiringPass(ctx, refreshed)

	if n, err := j.store.DeleteAllExpired(ctx); err != nil {
		j.logger.Warn("Eviction failed", "error", err)
	} else {
		result.Evicted = n
	}

	result.Duration = time.Since(start)
	j.recordRun(result)
	j.logger.Info("Sync run complete", "summary", result.Summary())
	return result
}

// RefreshLive runs only the live pass. Called on the worker's fastest
// cadence, where a full run would be wasteful.
func (j *Job) RefreshLive(ctx context.Context) PassResult {
	res := j.livePass(ctx, make(map[int]bool))
	j.mu.Lock()
	j.stats.SuccessfulUpdates += res.Succeeded
	j.stats.FailedUpdates += res.Failed
	j.mu.Unlock()
	return res
}

// --------------------------------------------------------------------------
// Passes
// --------------------------------------------------------------------------

// livePass refreshes every fixture currently cached as live. Sequential by
// design: the shared limiter paces each upstream call, and live data is
// small in volume but highest value per call.
func (j *Job) livePass(ctx context.Context, refreshed map[int]bool) PassResult {
	recs, err := j.store.FindByStatus(ctx, freshness.StatusLive)
	if err != nil {
		j.logger.Warn("Live pass query failed", "error", err)
		return PassResult{}
	}
	return j.refreshAll(ctx, recs, refreshed)
}

// imminentPass refreshes scheduled fixtures kicking off within the
// imminent window.
func (j *Job) imminentPass(ctx context.Context, refreshed map[int]bool) PassResult {
	recs, err := j.store.FindUpcomingWithin(ctx, j.cfg.UpcomingHours)
	if err != nil {
		j.logger.Warn("Imminent pass query failed", "error", err)
		return PassResult{}
	}
	cutoff := time.Now().Add(j.cfg.ImminentWindow)
	imminent := recs[:0]
	for _, r := range recs {
		if !r.MatchDate.After(cutoff) {
			imminent = append(imminent, r)
		}
	}
	return j.refreshAll(ctx, imminent, refreshed)
}

// expiringPass refreshes records nearing expiry, highest priority first,
// capped to bound API spend per run. The store returns them pre-sorted by
// priority then kickoff.
func (j *Job) expiringPass(ctx context.Context, refreshed map[int]bool) PassResult {
	recs, err := j.store.FindExpiringWithin(ctx, j.cfg.ExpiryLookahead)
	if err != nil {
		j.logger.Warn("Expiring pass query failed", "error", err)
		return PassResult{}
	}
	if len(recs) > j.cfg.BatchCeiling {
		recs = recs[:j.cfg.BatchCeiling]
	}
	return j.refreshAll(ctx, recs, refreshed)
}

// refreshAll refreshes records one at a time. A failure on one fixture
// never stops the rest of the pass. Fixtures already refreshed earlier in
// the same run are skipped and counted as saved API calls.
func (j *Job) refreshAll(ctx context.Context, recs []store.Record, refreshed map[int]bool) PassResult {
	var res PassResult
	for i := range recs {
		if ctx.Err() != nil {
			break
		}
		id := recs[i].FixtureID
		if refreshed[id] {
			j.mu.Lock()
			j.stats.APICallsSaved++
			j.mu.Unlock()
			continue
		}
		res.Attempted++
		if err := j.refreshFixture(ctx, &recs[i]); err != nil {
			res.Failed++
			j.logger.Warn("Fixture refresh failed", "fixture_id", id, "error", err)
			continue
		}
		refreshed[id] = true
		res.Succeeded++
	}
	return res
}

// refreshFixture re-fetches one fixture's descriptor and odds and writes
// the merged record back. When upstream returns no odds, the previous
// payload is kept and only the status-driven freshness fields move.
func (j *Job) refreshFixture(ctx context.Context, prev *store.Record) error {
	fixtures, err := j.provider.FetchFixtures(ctx, apifootball.Filter{ID: prev.FixtureID})
	if err != nil {
		return fmt.Errorf("fetch fixture detail: %w", err)
	}

	rec := *prev
	if len(fixtures) > 0 {
		f := fixtures[0]
		rec.Status = freshness.ParseStatus(f.StatusShort)
		rec.MatchDate = f.Date
		rec.LeagueID = f.LeagueID
		rec.LeagueName = f.LeagueName
		rec.SeasonYear = f.Season
		rec.HomeTeam = store.Team(f.HomeTeam)
		rec.AwayTeam = store.Team(f.AwayTeam)
	}

	odds, err := j.provider.FetchOdds(ctx, apifootball.OddsFilter{Fixture: prev.FixtureID})
	if err != nil {
		return fmt.Errorf("fetch odds: %w", err)
	}
	if len(odds) > 0 && len(odds[0].Bookmakers) > 0 {
		payload, err := json.Marshal(odds[0].Bookmakers)
		if err != nil {
			return fmt.Errorf("encode odds payload: %w", err)
		}
		rec.Payload = payload
	}

	if err := j.store.Upsert(ctx, &rec); err != nil {
		return fmt.Errorf("persist refresh: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Pre-caching
// --------------------------------------------------------------------------

// PrecacheResult tracks the outcome of a league pre-cache.
type PrecacheResult struct {
	Found   int
	Cached  int
	Skipped int // already cached, counted as API calls saved
	Failed  int
}

// Summary returns a human-readable summary.
func (r *PrecacheResult) Summary() string {
	return fmt.Sprintf("found=%d cached=%d skipped=%d failed=%d",
		r.Found, r.Cached, r.Skipped, r.Failed)
}

// Precache warms the cache for one league: fetches all not-yet-started
// fixtures in the window, skips those already cached, and fetches odds for
// the rest.
func (j *Job) Precache(ctx context.Context, leagueID, season, daysAhead int) (PrecacheResult, error) {
	var res PrecacheResult

	now := time.Now().UTC()
	fixtures, err := j.provider.FetchFixtures(ctx, apifootball.Filter{
		League: leagueID,
		Season: season,
		From:   now.Format("2006-01-02"),
		To:     now.AddDate(0, 0, daysAhead).Format("2006-01-02"),
		Status: "NS",
	})
	if err != nil {
		return res, fmt.Errorf("precache league %d: %w", leagueID, err)
	}
	res.Found = len(fixtures)

	for i := range fixtures {
		f := &fixtures[i]
		cached, err := j.store.Get(ctx, f.ID)
		if err == nil && cached != nil {
			res.Skipped++
			j.mu.Lock()
			j.stats.APICallsSaved++
			j.mu.Unlock()
			continue
		}

		var payload []byte
		odds, err := j.provider.FetchOdds(ctx, apifootball.OddsFilter{Fixture: f.ID})
		if err != nil {
			res.Failed++
			j.logger.Warn("Precache odds fetch failed", "fixture_id", f.ID, "error", err)
			continue
		}
		if len(odds) > 0 && len(odds[0].Bookmakers) > 0 {
			payload, _ = json.Marshal(odds[0].Bookmakers)
		}

		rec := &store.Record{
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
		if err := j.store.Upsert(ctx, rec); err != nil {
			res.Failed++
			j.logger.Warn("Precache persist failed", "fixture_id", f.ID, "error", err)
			continue
		}
		res.Cached++
	}

	j.mu.Lock()
	j.stats.SuccessfulUpdates += res.Cached
	j.stats.FailedUpdates += res.Failed
	j.mu.Unlock()

	j.logger.Info("Precache complete", "league", leagueID, "summary", res.Summary())
	return res, nil
}

// --------------------------------------------------------------------------
// Stats
// --------------------------------------------------------------------------

func (j *Job) recordRun(r RunResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stats.TotalRuns++
	j.stats.SuccessfulUpdates += r.Live.Succeeded + r.Imminent.Succeeded + r.Expiring.Succeeded
	j.stats.FailedUpdates += r.Live.Failed + r.Imminent.Failed + r.Expiring.Failed
	j.stats.LastRun = time.Now()
}

// JobStats returns the accumulated process-wide counters.
func (j *Job) JobStats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.stats
	s.IsRunning = j.running.Load()
	return s
}
