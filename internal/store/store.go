// Package store persists fixture cache records with time-bounded validity.
// Two implementations share one interface: Postgres (production, jsonb
// payloads via pgx prepared statements) and Memory (development without a
// database, and test fixture).
//
// Upsert is the only write path and always re-derives priority and expiry
// from the freshness policy; values supplied on the input record are never
// trusted. Point reads treat a physically present but expired row as a
// miss — the eviction sweep may lag behind expiry.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matchday/matchday-data/internal/freshness"
)

// Team is a denormalized team descriptor copied from upstream.
type Team struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// Record is one cached fixture: identity, descriptive fields for filtering
// without a re-fetch, the opaque provider payload, and freshness bookkeeping.
type Record struct {
	FixtureID  int
	LeagueID   int
	LeagueName string
	SeasonYear int
	HomeTeam   Team
	AwayTeam   Team

	MatchDate time.Time
	Status    freshness.Status

	Payload json.RawMessage

	LastUpdated  time.Time
	LastAPICall  time.Time
	APICallCount int

	Priority  freshness.Priority
	ExpiresAt time.Time
}

// Expired reports whether the record is past its validity window.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// finalize recomputes the derived fields before a write. ExpiresAt can
// never end up older than LastUpdated because both derive from now.
func (r *Record) finalize(now time.Time) {
	r.Priority = freshness.ComputePriority(r.Status, r.MatchDate, now)
	r.ExpiresAt = freshness.ComputeExpiry(r.Status, r.MatchDate, now)
	r.LastUpdated = now
	if r.LastAPICall.IsZero() {
		r.LastAPICall = now
	}
}

// Stats summarizes cache contents for observability.
type Stats struct {
	Total        int                        `json:"total"`
	ByStatus     map[freshness.Status]int   `json:"by_status"`
	OldestUpdate time.Time                  `json:"oldest_update"`
	NewestUpdate time.Time                  `json:"newest_update"`
}

// Store is the fixture cache repository. All queries are point operations;
// no implementation holds long-lived transactions or locks.
type Store interface {
	// Get returns the record for a fixture, or nil on miss. An expired row
	// behaves as a miss and is lazily removed.
	Get(ctx context.Context, fixtureID int) (*Record, error)

	// GetMany returns the valid records among the given ids, keyed by
	// fixture id. Expired rows are simply omitted.
	GetMany(ctx context.Context, fixtureIDs []int) (map[int]*Record, error)

	// Upsert writes a record, running it through the freshness policy
	// first. Last write wins on concurrent upserts of the same fixture.
	Upsert(ctx context.Context, rec *Record) error

	// Delete removes a record unconditionally.
	Delete(ctx context.Context, fixtureID int) error

	// FindExpiringWithin returns records whose expiry falls within the
	// next window (already-expired rows included), sorted by priority
	// descending then match date ascending.
	FindExpiringWithin(ctx context.Context, window time.Duration) ([]Record, error)

	// FindByStatus returns all records in the given status, including
	// expired ones — the refresher needs stale rows, not just valid ones.
	FindByStatus(ctx context.Context, status freshness.Status) ([]Record, error)

	// FindUpcomingWithin returns scheduled records kicking off within the
	// given number of hours, sorted by match date ascending.
	FindUpcomingWithin(ctx context.Context, hours int) ([]Record, error)

	// DeleteAllExpired removes every record past expiry and returns how
	// many were deleted.
	DeleteAllExpired(ctx context.Context) (int, error)

	// CacheStats summarizes current cache contents.
	CacheStats(ctx context.Context) (Stats, error)
}
