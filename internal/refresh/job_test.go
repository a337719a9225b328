package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matchday/matchday-data/internal/freshness"
	"github.com/matchday/matchday-data/internal/provider/apifootball"
	"github.com/matchday/matchday-data/internal/store"
)

type fakeProvider struct {
	fixtureCalls atomic.Int32
	oddsCalls    atomic.Int32

	mu       sync.Mutex
	failIDs  map[int]bool
	fixtures map[int]apifootball.Fixture
	odds     map[int][]apifootball.Bookmaker
	listing  []apifootball.Fixture

	// block, when non-nil, parks FetchFixtures until closed.
	block   chan struct{}
	entered chan struct{}
}

func (p *fakeProvider) FetchFixtures(_ context.Context, f apifootball.Filter) ([]apifootball.Fixture, error) {
	p.fixtureCalls.Add(1)
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if f.ID != 0 {
		if p.failIDs[f.ID] {
			return nil, errors.New("upstream error")
		}
		if fx, ok := p.fixtures[f.ID]; ok {
			return []apifootball.Fixture{fx}, nil
		}
		return nil, nil
	}
	return p.listing, nil
}

func (p *fakeProvider) FetchOdds(_ context.Context, f apifootball.OddsFilter) ([]apifootball.FixtureOdds, error) {
	p.oddsCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failIDs[f.Fixture] {
		return nil, errors.New("upstream error")
	}
	bm := p.odds[f.Fixture]
	if bm == nil {
		return nil, nil
	}
	return []apifootball.FixtureOdds{{FixtureID: f.Fixture, Bookmakers: bm}}, nil
}

func someBookmakers() []apifootball.Bookmaker {
	return []apifootball.Bookmaker{{
		ID:   8,
		Name: "Bet365",
		Bets: []apifootball.Bet{{ID: 1, Name: "Match Winner", Values: []apifootball.BetValue{
			{Value: "Home", Odd: "1.95"},
		}}},
	}}
}

func liveFixture(id int, kickoff time.Time) apifootball.Fixture {
	return apifootball.Fixture{
		ID:          id,
		Date:        kickoff,
		StatusShort: "1H",
		LeagueID:    39,
		LeagueName:  "Premier League",
		Season:      2025,
		HomeTeam:    apifootball.Team{ID: 1, Name: "Home"},
		AwayTeam:    apifootball.Team{ID: 2, Name: "Away"},
	}
}

func seedRecord(t *testing.T, mem *store.Memory, id int, status freshness.Status, kickoff time.Time) {
	t.Helper()
	rec := &store.Record{
		FixtureID:  id,
		LeagueID:   39,
		LeagueName: "Premier League",
		MatchDate:  kickoff,
		Status:     status,
	}
	if err := mem.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("seed fixture %d: %v", id, err)
	}
}

func TestRunRefreshesLiveFixtures(t *testing.T) {
	mem := store.NewMemory()
	kickoff := time.Now().Add(-30 * time.Minute)
	seedRecord(t, mem, 55, freshness.StatusLive, kickoff)

	p := &fakeProvider{
		fixtures: map[int]apifootball.Fixture{55: liveFixture(55, kickoff)},
		odds:     map[int][]apifootball.Bookmaker{55: someBookmakers()},
	}
	job := NewJob(mem, p, DefaultConfig(), nil)

	res := job.Run(context.Background())
	if res.Skipped {
		t.Fatal("run was skipped with no other run in progress")
	}
	if res.Live.Succeeded != 1 || res.Live.Failed != 0 {
		t.Fatalf("live pass = %+v, want 1 success", res.Live)
	}

	rec, err := mem.Get(context.Background(), 55)
	if err != nil || rec == nil {
		t.Fatalf("refreshed fixture missing from cache: %v", err)
	}
	if len(rec.Payload) == 0 {
		t.Error("refreshed record has no odds payload")
	}
	if rec.Priority != freshness.PriorityCritical {
		t.Errorf("live record priority = %s, want critical", rec.Priority)
	}

	stats := job.JobStats()
	if stats.TotalRuns != 1 || stats.SuccessfulUpdates == 0 {
		t.Errorf("stats = %+v, want 1 run with successes", stats)
	}
}

func TestRunSkipsWhenAlreadyRunning(t *testing.T) {
	mem := store.NewMemory()
	seedRecord(t, mem, 55, freshness.StatusLive, time.Now().Add(-30*time.Minute))

	p := &fakeProvider{
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	job := NewJob(mem, p, DefaultConfig(), nil)

	done := make(chan RunResult, 1)
	go func() { done <- job.Run(context.Background()) }()
	<-p.entered // first run is now inside the provider

	before := p.fixtureCalls.Load()
	second := job.Run(context.Background())
	if !second.Skipped {
		t.Error("overlapping run was not skipped")
	}
	if got := p.fixtureCalls.Load(); got != before {
		t.Errorf("overlapping run made %d upstream calls", got-before)
	}
	if !job.JobStats().IsRunning {
		t.Error("stats do not report the in-flight run")
	}

	close(p.block)
	<-done
	if job.JobStats().IsRunning {
		t.Error("stats still report running after completion")
	}
}

func TestRunDedupsFixturesAcrossPasses(t *testing.T) {
	mem := store.NewMemory()
	kickoff := time.Now().Add(-30 * time.Minute)
	// A live record expires within the expiring-pass lookahead, so it is a
	// candidate for both passes. It must be fetched exactly once.
	seedRecord(t, mem, 55, freshness.StatusLive, kickoff)

	p := &fakeProvider{
		fixtures: map[int]apifootball.Fixture{55: liveFixture(55, kickoff)},
	}
	job := NewJob(mem, p, DefaultConfig(), nil)

	job.Run(context.Background())
	if got := p.fixtureCalls.Load(); got != 1 {
		t.Errorf("fixture fetched %d times in one run, want 1", got)
	}
	if saved := job.JobStats().APICallsSaved; saved != 1 {
		t.Errorf("APICallsSaved = %d, want 1", saved)
	}
}

func TestRunIsolatesPerFixtureFailures(t *testing.T) {
	mem := store.NewMemory()
	kickoff := time.Now().Add(-30 * time.Minute)
	seedRecord(t, mem, 55, freshness.StatusLive, kickoff)
	seedRecord(t, mem, 56, freshness.StatusLive, kickoff)

	p := &fakeProvider{
		failIDs:  map[int]bool{55: true},
		fixtures: map[int]apifootball.Fixture{56: liveFixture(56, kickoff)},
	}
	job := NewJob(mem, p, DefaultConfig(), nil)

	res := job.Run(context.Background())
	if res.Live.Failed != 1 || res.Live.Succeeded != 1 {
		t.Fatalf("live pass = %+v, want one failure and one success", res.Live)
	}
}

func TestRunEvictsExpiredRecords(t *testing.T) {
	mem := store.NewMemory()
	seeded := time.Now().Add(-48 * time.Hour)
	mem.Now = func() time.Time { return seeded }
	seedRecord(t, mem, 90, freshness.StatusFinished, seeded.Add(-2*time.Hour))
	mem.Now = time.Now

	// The stale record fails to refresh, so eviction must sweep it.
	p := &fakeProvider{failIDs: map[int]bool{90: true}}
	job := NewJob(mem, p, DefaultConfig(), nil)
	res := job.Run(context.Background())
	if res.Evicted != 1 {
		t.Errorf("evicted = %d, want 1", res.Evicted)
	}
}

func TestRefreshKeepsPayloadWhenUpstreamHasNoOdds(t *testing.T) {
	mem := store.NewMemory()
	kickoff := time.Now().Add(-30 * time.Minute)
	old, _ := json.Marshal(someBookmakers())
	rec := &store.Record{
		FixtureID: 55,
		LeagueID:  39,
		MatchDate: kickoff,
		Status:    freshness.StatusLive,
		Payload:   old,
	}
	if err := mem.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p := &fakeProvider{fixtures: map[int]apifootball.Fixture{55: liveFixture(55, kickoff)}}
	job := NewJob(mem, p, DefaultConfig(), nil)
	job.Run(context.Background())

	got, err := mem.Get(context.Background(), 55)
	if err != nil || got == nil {
		t.Fatalf("record missing after refresh: %v", err)
	}
	if string(got.Payload) != string(old) {
		t.Error("previous odds payload was dropped on an empty upstream response")
	}
}

func TestPrecacheSkipsAlreadyCachedFixtures(t *testing.T) {
	mem := store.NewMemory()
	upcoming := time.Now().Add(20 * time.Hour)
	seedRecord(t, mem, 200, freshness.StatusScheduled, upcoming)

	p := &fakeProvider{
		listing: []apifootball.Fixture{
			{ID: 200, Date: upcoming, StatusShort: "NS", LeagueID: 39, LeagueName: "Premier League", Season: 2025},
			{ID: 201, Date: upcoming, StatusShort: "NS", LeagueID: 39, LeagueName: "Premier League", Season: 2025},
		},
		odds: map[int][]apifootball.Bookmaker{201: someBookmakers()},
	}
	job := NewJob(mem, p, DefaultConfig(), nil)

	res, err := job.Precache(context.Background(), 39, 2025, 3)
	if err != nil {
		t.Fatalf("Precache: %v", err)
	}
	if res.Found != 2 || res.Cached != 1 || res.Skipped != 1 {
		t.Fatalf("precache result = %+v, want found=2 cached=1 skipped=1", res)
	}
	if got := p.oddsCalls.Load(); got != 1 {
		t.Errorf("odds fetched %d times, want 1 (cached fixture skipped)", got)
	}

	rec, _ := mem.Get(context.Background(), 201)
	if rec == nil || len(rec.Payload) == 0 {
		t.Error("new fixture was not cached with its odds payload")
	}
}
