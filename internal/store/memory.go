package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/matchday/matchday-data/internal/freshness"
)

// Memory is a mutex-guarded in-memory Store. It backs development runs
// without a database and is the fixture for store-semantics tests.
type Memory struct {
	mu      sync.RWMutex
	records map[int]*Record

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[int]*Record),
		Now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, fixtureID int) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[fixtureID]
	if !ok {
		return nil, nil
	}
	if rec.Expired(m.Now()) {
		delete(m.records, fixtureID)
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) GetMany(_ context.Context, fixtureIDs []int) (map[int]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.Now()
	out := make(map[int]*Record, len(fixtureIDs))
	for _, id := range fixtureIDs {
		if rec, ok := m.records[id]; ok && !rec.Expired(now) {
			cp := *rec
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *Memory) Upsert(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	cp := *rec
	cp.finalize(now)
	cp.LastAPICall = now
	if prev, ok := m.records[rec.FixtureID]; ok {
		cp.APICallCount = prev.APICallCount + 1
	} else {
		cp.APICallCount = 1
	}
	m.records[rec.FixtureID] = &cp
	*rec = cp
	return nil
}

func (m *Memory) Delete(_ context.Context, fixtureID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, fixtureID)
	return nil
}

func (m *Memory) FindExpiringWithin(_ context.Context, window time.Duration) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := m.Now().Add(window)
	var out []Record
	for _, rec := range m.records {
		if !rec.ExpiresAt.After(cutoff) {
			out = append(out, *rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return out[i].MatchDate.Before(out[j].MatchDate)
	})
	return out, nil
}

func (m *Memory) FindByStatus(_ context.Context, status freshness.Status) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.records {
		if rec.Status == status {
			out = append(out, *rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchDate.Before(out[j].MatchDate)
	})
	return out, nil
}

func (m *Memory) FindUpcomingWithin(_ context.Context, hours int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.Now()
	horizon := now.Add(time.Duration(hours) * time.Hour)
	var out []Record
	for _, rec := range m.records {
		if rec.Status != freshness.StatusScheduled {
			continue
		}
		if rec.MatchDate.Before(now) || rec.MatchDate.After(horizon) {
			continue
		}
		out = append(out, *rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchDate.Before(out[j].MatchDate)
	})
	return out, nil
}

func (m *Memory) DeleteAllExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	count := 0
	for id, rec := range m.records {
		if rec.Expired(now) {
			delete(m.records, id)
			count++
		}
	}
	return count, nil
}

func (m *Memory) CacheStats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Stats{ByStatus: make(map[freshness.Status]int)}
	for _, rec := range m.records {
		stats.Total++
		stats.ByStatus[rec.Status]++
		if stats.OldestUpdate.IsZero() || rec.LastUpdated.Before(stats.OldestUpdate) {
			stats.OldestUpdate = rec.LastUpdated
		}
		if rec.LastUpdated.After(stats.NewestUpdate) {
			stats.NewestUpdate = rec.LastUpdated
		}
	}
	return stats, nil
}
