// Package db provides a pgxpool-based connection pool with prepared
// statement registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matchday/matchday-data/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// EnsureSchema creates the cache table and indexes if they do not exist.
// Runs on a dedicated connection before the pool starts preparing
// statements against the table.
func EnsureSchema(ctx context.Context, dbURL string) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect for schema: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS fixture_cache (
			fixture_id     integer PRIMARY KEY,
			league_id      integer NOT NULL DEFAULT 0,
			league_name    text NOT NULL DEFAULT '',
			season_year    integer NOT NULL DEFAULT 0,
			home_team_id   integer NOT NULL DEFAULT 0,
			home_team_name text NOT NULL DEFAULT '',
			home_team_logo text NOT NULL DEFAULT '',
			away_team_id   integer NOT NULL DEFAULT 0,
			away_team_name text NOT NULL DEFAULT '',
			away_team_logo text NOT NULL DEFAULT '',
			match_date     timestamptz NOT NULL,
			match_status   text NOT NULL,
			payload        jsonb,
			last_updated   timestamptz NOT NULL,
			last_api_call  timestamptz NOT NULL,
			api_call_count integer NOT NULL DEFAULT 0,
			priority       text NOT NULL,
			priority_rank  smallint NOT NULL DEFAULT 1,
			expires_at     timestamptz NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_fixture_cache_expires ON fixture_cache (expires_at);
		CREATE INDEX IF NOT EXISTS idx_fixture_cache_status ON fixture_cache (match_status);
		CREATE INDEX IF NOT EXISTS idx_fixture_cache_match_date ON fixture_cache (match_date)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// registerPreparedStatements registers all statements the cache store uses.
// Prepared statements eliminate parse overhead on every query.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	const recordColumns = `fixture_id, league_id, league_name, season_year,
		home_team_id, home_team_name, home_team_logo,
		away_team_id, away_team_name, away_team_logo,
		match_date, match_status, payload,
		last_updated, last_api_call, api_call_count, priority, expires_at`

	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Point lookups
		"fixture_cache_get": "SELECT " + recordColumns + " FROM fixture_cache WHERE fixture_id = $1",
		"fixture_cache_get_many": "SELECT " + recordColumns + ` FROM fixture_cache
			WHERE fixture_id = ANY($1) AND expires_at > NOW()`,

		// The only write path. The call counter is store-owned: it starts
		// at 1 and increments on every conflict, whatever the caller sent.
		"fixture_cache_upsert": `
			INSERT INTO fixture_cache (` + recordColumns + `, priority_rank)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1,$16,$18,$17)
			ON CONFLICT (fixture_id) DO UPDATE SET
				league_id = EXCLUDED.league_id,
				league_name = EXCLUDED.league_name,
				season_year = EXCLUDED.season_year,
				home_team_id = EXCLUDED.home_team_id,
				home_team_name = EXCLUDED.home_team_name,
				home_team_logo = EXCLUDED.home_team_logo,
				away_team_id = EXCLUDED.away_team_id,
				away_team_name = EXCLUDED.away_team_name,
				away_team_logo = EXCLUDED.away_team_logo,
				match_date = EXCLUDED.match_date,
				match_status = EXCLUDED.match_status,
				payload = EXCLUDED.payload,
				last_updated = EXCLUDED.last_updated,
				last_api_call = EXCLUDED.last_api_call,
				api_call_count = fixture_cache.api_call_count + 1,
				priority = EXCLUDED.priority,
				priority_rank = EXCLUDED.priority_rank,
				expires_at = EXCLUDED.expires_at`,

		"fixture_cache_delete": "DELETE FROM fixture_cache WHERE fixture_id = $1",

		// Refresh queries
		"fixture_cache_expiring": "SELECT " + recordColumns + ` FROM fixture_cache
			WHERE expires_at <= NOW() + make_interval(secs => $1)
			ORDER BY priority_rank DESC, match_date ASC`,
		"fixture_cache_by_status": "SELECT " + recordColumns + ` FROM fixture_cache
			WHERE match_status = $1
			ORDER BY match_date ASC`,
		"fixture_cache_upcoming": "SELECT " + recordColumns + ` FROM fixture_cache
			WHERE match_status = 'scheduled'
			  AND match_date BETWEEN NOW() AND NOW() + make_interval(hours => $1)
			ORDER BY match_date ASC`,

		// Eviction
		"fixture_cache_evict": "DELETE FROM fixture_cache WHERE expires_at <= NOW()",

		// Observability
		"fixture_cache_stats":           "SELECT COUNT(*), MIN(last_updated), MAX(last_updated) FROM fixture_cache",
		"fixture_cache_stats_by_status": "SELECT match_status, COUNT(*) FROM fixture_cache GROUP BY match_status",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
