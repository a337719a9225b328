package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matchday/matchday-data/internal/freshness"
)

// Postgres is the production Store: one row per fixture in the
// fixture_cache table, provider payload as jsonb. Statement names refer to
// prepared statements registered by internal/db on every connection.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	var status, priority string
	err := row.Scan(
		&r.FixtureID, &r.LeagueID, &r.LeagueName, &r.SeasonYear,
		&r.HomeTeam.ID, &r.HomeTeam.Name, &r.HomeTeam.Logo,
		&r.AwayTeam.ID, &r.AwayTeam.Name, &r.AwayTeam.Logo,
		&r.MatchDate, &status, &r.Payload,
		&r.LastUpdated, &r.LastAPICall, &r.APICallCount, &priority, &r.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = freshness.Status(status)
	r.Priority = freshness.Priority(priority)
	return &r, nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fixture cache row: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Get(ctx context.Context, fixtureID int) (*Record, error) {
	rec, err := scanRecord(p.pool.QueryRow(ctx, "fixture_cache_get", fixtureID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fixture %d: %w", fixtureID, err)
	}
	if rec.Expired(time.Now()) {
		// Lazy eviction: the sweep may not have reached this row yet.
		_ = p.Delete(ctx, fixtureID)
		return nil, nil
	}
	return rec, nil
}

func (p *Postgres) GetMany(ctx context.Context, fixtureIDs []int) (map[int]*Record, error) {
	if len(fixtureIDs) == 0 {
		return map[int]*Record{}, nil
	}
	rows, err := p.pool.Query(ctx, "fixture_cache_get_many", fixtureIDs)
	if err != nil {
		return nil, fmt.Errorf("get many fixtures: %w", err)
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[int]*Record, len(recs))
	for i := range recs {
		out[recs[i].FixtureID] = &recs[i]
	}
	return out, nil
}

func (p *Postgres) Upsert(ctx context.Context, rec *Record) error {
	now := time.Now()
	rec.finalize(now)
	rec.LastAPICall = now
	_, err := p.pool.Exec(ctx, "fixture_cache_upsert",
		rec.FixtureID, rec.LeagueID, rec.LeagueName, rec.SeasonYear,
		rec.HomeTeam.ID, rec.HomeTeam.Name, rec.HomeTeam.Logo,
		rec.AwayTeam.ID, rec.AwayTeam.Name, rec.AwayTeam.Logo,
		rec.MatchDate, string(rec.Status), rec.Payload,
		rec.LastUpdated, rec.LastAPICall,
		string(rec.Priority), rec.Priority.Rank(), rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert fixture %d: %w", rec.FixtureID, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, fixtureID int) error {
	_, err := p.pool.Exec(ctx, "fixture_cache_delete", fixtureID)
	if err != nil {
		return fmt.Errorf("delete fixture %d: %w", fixtureID, err)
	}
	return nil
}

func (p *Postgres) FindExpiringWithin(ctx context.Context, window time.Duration) ([]Record, error) {
	rows, err := p.pool.Query(ctx, "fixture_cache_expiring", int(window.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("find expiring fixtures: %w", err)
	}
	return collectRecords(rows)
}

func (p *Postgres) FindByStatus(ctx context.Context, status freshness.Status) ([]Record, error) {
	rows, err := p.pool.Query(ctx, "fixture_cache_by_status", string(status))
	if err != nil {
		return nil, fmt.Errorf("find fixtures status=%s: %w", status, err)
	}
	return collectRecords(rows)
}

func (p *Postgres) FindUpcomingWithin(ctx context.Context, hours int) ([]Record, error) {
	rows, err := p.pool.Query(ctx, "fixture_cache_upcoming", hours)
	if err != nil {
		return nil, fmt.Errorf("find upcoming fixtures: %w", err)
	}
	return collectRecords(rows)
}

func (p *Postgres) DeleteAllExpired(ctx context.Context) (int, error) {
	tag, err := p.pool.Exec(ctx, "fixture_cache_evict")
	if err != nil {
		return 0, fmt.Errorf("evict expired fixtures: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) CacheStats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[freshness.Status]int)}

	var oldest, newest *time.Time
	err := p.pool.QueryRow(ctx, "fixture_cache_stats").Scan(&stats.Total, &oldest, &newest)
	if err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	if oldest != nil {
		stats.OldestUpdate = *oldest
	}
	if newest != nil {
		stats.NewestUpdate = *newest
	}

	rows, err := p.pool.Query(ctx, "fixture_cache_stats_by_status")
	if err != nil {
		return stats, fmt.Errorf("cache stats by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[freshness.Status(status)] = count
	}
	return stats, rows.Err()
}
