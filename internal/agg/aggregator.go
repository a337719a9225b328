// Package agg assembles logical fixture result sets for a requested date
// or for the hot-league window, from concurrent upstream queries and the
// fixture cache, deduplicated by fixture id and grouped by league.
package agg

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matchday/matchday-data/internal/freshness"
	"github.com/matchday/matchday-data/internal/provider/apifootball"
	"github.com/matchday/matchday-data/internal/store"
)

// Provider is the slice of the upstream client the aggregator needs.
type Provider interface {
	FetchFixtures(ctx context.Context, f apifootball.Filter) ([]apifootball.Fixture, error)
}

// OddsSource resolves bookmaker odds for a fixture, cache-aside.
type OddsSource interface {
	GetOrFetch(ctx context.Context, fixtureID int, meta *apifootball.Fixture) []apifootball.Bookmaker
}

// Match is one fixture in an aggregated result set.
type Match struct {
	FixtureID  int              `json:"fixture_id"`
	LeagueID   int              `json:"league_id"`
	LeagueName string           `json:"league_name"`
	Kickoff    time.Time        `json:"kickoff"`
	Status     freshness.Status `json:"status"`
	HomeTeam   store.Team       `json:"home_team"`
	AwayTeam   store.Team       `json:"away_team"`
	HasOdds    bool             `json:"has_odds"`
}

// LeagueGroup is all aggregated matches of one league, in first-seen order.
type LeagueGroup struct {
	LeagueID   int     `json:"league_id"`
	LeagueName string  `json:"league_name"`
	Matches    []Match `json:"matches"`
}

// Config bounds the hot-matches search.
type Config struct {
	HotLeagues       []int
	MaxLookaheadDays int // widening bound for hot matches
	MinHotLeagues    int // stop widening at this league diversity
	OddsParallelism  int // concurrent odds prefetches
}

// DefaultConfig returns production defaults.
func DefaultConfig(hotLeagues []int) Config {
	return Config{
		HotLeagues:       hotLeagues,
		MaxLookaheadDays: 4,
		MinHotLeagues:    3,
		OddsParallelism:  6,
	}
}

// Aggregator builds grouped fixture views. Construct once and inject.
type Aggregator struct {
	store    store.Store
	provider Provider
	odds     OddsSource
	cfg      Config
	logger   *slog.Logger

	// now is the clock; overridable in tests.
	now func() time.Time
}

// New creates an aggregator.
func New(s store.Store, p Provider, odds OddsSource, cfg Config, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxLookaheadDays == 0 {
		cfg = DefaultConfig(cfg.HotLeagues)
	}
	return &Aggregator{
		store:    s,
		provider: p,
		odds:     odds,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// --------------------------------------------------------------------------
// Date view
// --------------------------------------------------------------------------

// FixturesForDate returns league-grouped fixtures for one calendar day.
// Past days query only finished matches, future days only not-started
// ones; today unions live, not-started, and finished concurrently.
func (a *Aggregator) FixturesForDate(ctx context.Context, date time.Time) ([]LeagueGroup, error) {
	day := date.UTC().Truncate(24 * time.Hour)
	today := a.now().UTC().Truncate(24 * time.Hour)
	dateParam := day.Format("2006-01-02")

	var fixtures []apifootball.Fixture
	switch {
	case day.Before(today):
		fs, err := a.provider.FetchFixtures(ctx, apifootball.Filter{Date: dateParam, Status: "FT"})
		if err != nil {
			return nil, fmt.Errorf("aggregate past date %s: %w", dateParam, err)
		}
		fixtures = fs

	case day.After(today):
		fs, err := a.provider.FetchFixtures(ctx, apifootball.Filter{Date: dateParam, Status: "NS"})
		if err != nil {
			return nil, fmt.Errorf("aggregate future date %s: %w", dateParam, err)
		}
		fixtures = fs

	default:
		fs, err := a.todayUnion(ctx, dateParam)
		if err != nil {
			return nil, err
		}
		fixtures = fs
	}

	return groupByLeague(matchesFromFixtures(fixtures)), nil
}

// todayUnion issues the three query shapes concurrently and unions the
// results. Live results win ties: a fixture appearing both live and in the
// date listing keeps its live row.
func (a *Aggregator) todayUnion(ctx context.Context, dateParam string) ([]apifootball.Fixture, error) {
	var live, upcoming, finished []apifootball.Fixture

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fs, err := a.provider.FetchFixtures(gctx, apifootball.Filter{Live: true})
		live = fs
		return err
	})
	g.Go(func() error {
		fs, err := a.provider.FetchFixtures(gctx, apifootball.Filter{Date: dateParam, Status: "NS"})
		upcoming = fs
		return err
	})
	g.Go(func() error {
		fs, err := a.provider.FetchFixtures(gctx, apifootball.Filter{Date: dateParam, Status: "FT"})
		finished = fs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate today: %w", err)
	}

	union := make([]apifootball.Fixture, 0, len(live)+len(upcoming)+len(finished))
	seen := make(map[int]bool)
	for _, list := range [][]apifootball.Fixture{live, upcoming, finished} {
		for _, f := range list {
			if seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			union = append(union, f)
		}
	}
	return union, nil
}

// --------------------------------------------------------------------------
// Hot matches
// --------------------------------------------------------------------------

// HotMatches widens a day-by-day search across the hot-league whitelist,
// stopping once enough distinct leagues are represented. The fixture cache
// is the primary source; an empty window falls back to one direct
// upstream sweep before returning empty.
func (a *Aggregator) HotMatches(ctx context.Context) ([]LeagueGroup, error) {
	hot := make(map[int]bool, len(a.cfg.HotLeagues))
	for _, id := range a.cfg.HotLeagues {
		hot[id] = true
	}
	now := a.now().UTC()
	todayStart := now.Truncate(24 * time.Hour)

	// One store sweep covers the whole window; live fixtures belong to
	// day zero. Per-league query overlap can surface a fixture twice
	// (rescheduling edge cases), so dedup by id regardless.
	var pool []store.Record
	if live, err := a.store.FindByStatus(ctx, freshness.StatusLive); err == nil {
		pool = append(pool, live...)
	} else {
		a.logger.Warn("Hot matches: live query failed", "error", err)
	}
	if upcoming, err := a.store.FindUpcomingWithin(ctx, a.cfg.MaxLookaheadDays*24); err == nil {
		pool = append(pool, upcoming...)
	} else {
		a.logger.Warn("Hot matches: upcoming query failed", "error", err)
	}

	seen := make(map[int]bool)
	perDay := make([][]Match, a.cfg.MaxLookaheadDays)
	for _, rec := range pool {
		if !hot[rec.LeagueID] || seen[rec.FixtureID] {
			continue
		}
		day := int(rec.MatchDate.UTC().Truncate(24 * time.Hour).Sub(todayStart).Hours() / 24)
		if rec.Status == freshness.StatusLive {
			day = 0
		}
		if day < 0 || day >= a.cfg.MaxLookaheadDays {
			continue
		}
		seen[rec.FixtureID] = true
		perDay[day] = append(perDay[day], matchFromRecord(rec))
	}

	var acc []Match
	leagues := make(map[int]bool)
	for day := 0; day < a.cfg.MaxLookaheadDays; day++ {
		for _, m := range perDay[day] {
			acc = append(acc, m)
			leagues[m.LeagueID] = true
		}
		if len(leagues) >= a.cfg.MinHotLeagues {
			break
		}
	}

	if len(acc) == 0 {
		direct, err := a.hotFallback(ctx, now)
		if err != nil {
			return nil, err
		}
		acc = direct
	}

	groups := groupByLeague(acc)
	SortGroups(groups,
		ByLeagueTier(a.cfg.HotLeagues),
		ByOddsCountDesc(),
		ByEarliestKickoff(),
	)
	return groups, nil
}

// hotFallback queries upstream directly across the hot-matches window when
// the cache has nothing to offer.
func (a *Aggregator) hotFallback(ctx context.Context, now time.Time) ([]Match, error) {
	from := now.Format("2006-01-02")
	to := now.AddDate(0, 0, a.cfg.MaxLookaheadDays-1).Format("2006-01-02")
	season := apifootball.CurrentSeason(now)

	var acc []Match
	seen := make(map[int]bool)
	for _, leagueID := range a.cfg.HotLeagues {
		fs, err := a.provider.FetchFixtures(ctx, apifootball.Filter{
			League: leagueID,
			Season: season,
			From:   from,
			To:     to,
		})
		if err != nil {
			a.logger.Warn("Hot fallback query failed", "league", leagueID, "error", err)
			continue
		}
		for _, f := range fs {
			if seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			acc = append(acc, matchFromFixture(f))
		}
	}
	return acc, nil
}

// --------------------------------------------------------------------------
// Odds prefetch
// --------------------------------------------------------------------------

// AttachOdds resolves odds for every match in the groups, cache-aside, in
// small parallel batches — quota safety over latency.
func (a *Aggregator) AttachOdds(ctx context.Context, groups []LeagueGroup) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.OddsParallelism)

	for gi := range groups {
		for mi := range groups[gi].Matches {
			m := &groups[gi].Matches[mi]
			if m.HasOdds {
				continue
			}
			g.Go(func() error {
				meta := fixtureFromMatch(m)
				if bm := a.odds.GetOrFetch(gctx, m.FixtureID, &meta); len(bm) > 0 {
					m.HasOdds = true
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

// --------------------------------------------------------------------------
// Shaping helpers
// --------------------------------------------------------------------------

func groupByLeague(matches []Match) []LeagueGroup {
	var groups []LeagueGroup
	index := make(map[int]int)
	for _, m := range matches {
		i, ok := index[m.LeagueID]
		if !ok {
			i = len(groups)
			index[m.LeagueID] = i
			groups = append(groups, LeagueGroup{LeagueID: m.LeagueID, LeagueName: m.LeagueName})
		}
		groups[i].Matches = append(groups[i].Matches, m)
	}
	return groups
}

func matchesFromFixtures(fs []apifootball.Fixture) []Match {
	out := make([]Match, 0, len(fs))
	for _, f := range fs {
		out = append(out, matchFromFixture(f))
	}
	return out
}

func matchFromFixture(f apifootball.Fixture) Match {
	return Match{
		FixtureID:  f.ID,
		LeagueID:   f.LeagueID,
		LeagueName: f.LeagueName,
		Kickoff:    f.Date,
		Status:     freshness.ParseStatus(f.StatusShort),
		HomeTeam:   store.Team(f.HomeTeam),
		AwayTeam:   store.Team(f.AwayTeam),
	}
}

func matchFromRecord(rec store.Record) Match {
	return Match{
		FixtureID:  rec.FixtureID,
		LeagueID:   rec.LeagueID,
		LeagueName: rec.LeagueName,
		Kickoff:    rec.MatchDate,
		Status:     rec.Status,
		HomeTeam:   rec.HomeTeam,
		AwayTeam:   rec.AwayTeam,
		HasOdds:    len(rec.Payload) > 0,
	}
}

func fixtureFromMatch(m *Match) apifootball.Fixture {
	return apifootball.Fixture{
		ID:          m.FixtureID,
		Date:        m.Kickoff,
		StatusShort: m.Status.ShortCode(),
		LeagueID:    m.LeagueID,
		LeagueName:  m.LeagueName,
		HomeTeam:    apifootball.Team(m.HomeTeam),
		AwayTeam:    apifootball.Team(m.AwayTeam),
	}
}
