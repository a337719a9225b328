package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/matchday/matchday-data/internal/agg"
	"github.com/matchday/matchday-data/internal/freshness"
	"github.com/matchday/matchday-data/internal/provider/apifootball"
	"github.com/matchday/matchday-data/internal/rescache"
	"github.com/matchday/matchday-data/internal/store"
)

type stubOdds struct{}

func (stubOdds) GetOrFetch(context.Context, int, *apifootball.Fixture) []apifootball.Bookmaker {
	return nil
}

func testWorker(p *fakeProvider, mem *store.Memory, cfg WorkerConfig) (*Worker, *rescache.Cache) {
	job := NewJob(mem, p, DefaultConfig(), nil)
	aggregator := agg.New(mem, p, stubOdds{}, agg.DefaultConfig(cfg.HotLeagues), nil)
	results := rescache.New(true)
	return NewWorker(job, aggregator, results, cfg, nil), results
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestWorkerRunsRoutinesImmediatelyOnStart(t *testing.T) {
	mem := store.NewMemory()
	seedRecord(t, mem, 55, freshness.StatusLive, time.Now().Add(-30*time.Minute))

	p := &fakeProvider{}
	// Intervals far beyond the test's lifetime: any upstream call must
	// come from the immediate first run.
	w, _ := testWorker(p, mem, WorkerConfig{LiveInterval: time.Hour})
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return p.fixtureCalls.Load() >= 1 })
}

func TestWorkerMakesNoUpstreamCallsAfterStop(t *testing.T) {
	mem := store.NewMemory()
	seedRecord(t, mem, 55, freshness.StatusLive, time.Now().Add(-30*time.Minute))

	p := &fakeProvider{}
	w, _ := testWorker(p, mem, WorkerConfig{
		LiveInterval:     5 * time.Millisecond,
		SnapshotInterval: 5 * time.Millisecond,
	})
	w.Start(context.Background())
	waitFor(t, time.Second, func() bool { return p.fixtureCalls.Load() >= 4 })

	w.Stop()
	after := p.fixtureCalls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := p.fixtureCalls.Load(); got != after {
		t.Fatalf("worker made %d upstream calls after Stop", got-after)
	}
}

func TestWorkerSnapshotPublishesToResultCache(t *testing.T) {
	mem := store.NewMemory()
	p := &fakeProvider{}
	w, results := testWorker(p, mem, WorkerConfig{SnapshotInterval: time.Hour})
	w.Start(context.Background())
	defer w.Stop()

	key := rescache.Key(rescache.TypeLive, time.Now().UTC().Format("2006-01-02"))
	waitFor(t, time.Second, func() bool {
		_, _, ok := results.Get(key)
		return ok
	})
}

func TestWorkerStartAndStopAreIdempotent(t *testing.T) {
	mem := store.NewMemory()
	w, _ := testWorker(&fakeProvider{}, mem, WorkerConfig{LiveInterval: time.Hour})

	ctx := context.Background()
	w.Start(ctx)
	w.Start(ctx) // second Start is a no-op
	w.Stop()
	w.Stop() // second Stop must not hang or panic
}

func TestWorkerDisabledRoutinesNeverRun(t *testing.T) {
	mem := store.NewMemory()
	seedRecord(t, mem, 55, freshness.StatusLive, time.Now().Add(-30*time.Minute))

	p := &fakeProvider{}
	w, _ := testWorker(p, mem, WorkerConfig{})
	w.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	w.Stop()

	if got := p.fixtureCalls.Load(); got != 0 {
		t.Fatalf("disabled worker made %d upstream calls", got)
	}
}
