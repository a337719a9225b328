package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/matchday/matchday-data/internal/agg"
	"github.com/matchday/matchday-data/internal/api/handler"
	"github.com/matchday/matchday-data/internal/config"
	"github.com/matchday/matchday-data/internal/freshness"
	"github.com/matchday/matchday-data/internal/odds"
	"github.com/matchday/matchday-data/internal/provider/apifootball"
	"github.com/matchday/matchday-data/internal/refresh"
	"github.com/matchday/matchday-data/internal/rescache"
	"github.com/matchday/matchday-data/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type stubUpstream struct{}

func (stubUpstream) FetchFixtures(context.Context, apifootball.Filter) ([]apifootball.Fixture, error) {
	return nil, nil
}

func (stubUpstream) FetchOdds(context.Context, apifootball.OddsFilter) ([]apifootball.FixtureOdds, error) {
	return nil, nil
}

func testRouter(t *testing.T, mem *store.Memory) http.Handler {
	t.Helper()
	cfg := &config.Config{
		CORSAllowOrigins: []string{"*"},
		RateLimitEnabled: false,
	}
	up := stubUpstream{}
	accessor := odds.NewAccessor(mem, up, nil)
	job := refresh.NewJob(mem, up, refresh.DefaultConfig(), nil)
	aggregator := agg.New(mem, up, accessor, agg.DefaultConfig(nil), nil)
	results := rescache.New(true)

	return NewRouter(handler.Deps{
		Store:      mem,
		Odds:       accessor,
		Aggregator: aggregator,
		Job:        job,
		Results:    results,
		Config:     cfg,
	})
}

func seedOdds(t *testing.T, mem *store.Memory, fixtureID int) {
	t.Helper()
	payload, err := json.Marshal([]apifootball.Bookmaker{{ID: 8, Name: "Bet365"}})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	rec := &store.Record{
		FixtureID: fixtureID,
		LeagueID:  39,
		MatchDate: time.Now().Add(time.Hour),
		Status:    freshness.StatusScheduled,
		Payload:   payload,
	}
	if err := mem.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func get(router http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t, store.NewMemory())
	rr := get(router, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", rr.Code)
	}
}

func TestHealthDBReportsMemoryMode(t *testing.T) {
	router := testRouter(t, store.NewMemory())
	rr := get(router, "/health/db", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /health/db = %d, want 200", rr.Code)
	}
}

func TestGetOddsRejectsBadFixtureID(t *testing.T) {
	router := testRouter(t, store.NewMemory())
	rr := get(router, "/api/v1/odds/banana", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("GET /odds/banana = %d, want 400", rr.Code)
	}
}

func TestGetOddsReturns404WhenNothingAvailable(t *testing.T) {
	router := testRouter(t, store.NewMemory())
	rr := get(router, "/api/v1/odds/12345", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("GET /odds/12345 = %d, want 404", rr.Code)
	}
}

func TestGetOddsServesCachedRecord(t *testing.T) {
	mem := store.NewMemory()
	seedOdds(t, mem, 12345)
	router := testRouter(t, mem)

	rr := get(router, "/api/v1/odds/12345", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /odds/12345 = %d, want 200", rr.Code)
	}
	var body struct {
		FixtureID  int                     `json:"fixture_id"`
		Bookmakers []apifootball.Bookmaker `json:"bookmakers"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.FixtureID != 12345 || len(body.Bookmakers) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestGetFixturesRejectsBadDate(t *testing.T) {
	router := testRouter(t, store.NewMemory())
	rr := get(router, "/api/v1/fixtures?date=not-a-date", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("GET /fixtures?date=not-a-date = %d, want 400", rr.Code)
	}
}

func TestGetFixturesETagRevalidation(t *testing.T) {
	router := testRouter(t, store.NewMemory())

	first := get(router, "/api/v1/fixtures?date=2026-03-14", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first GET = %d, want 200", first.Code)
	}
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("response carries no ETag")
	}
	if first.Header().Get("X-Cache") != "MISS" {
		t.Errorf("first response X-Cache = %q, want MISS", first.Header().Get("X-Cache"))
	}

	second := get(router, "/api/v1/fixtures?date=2026-03-14", map[string]string{"If-None-Match": etag})
	if second.Code != http.StatusNotModified {
		t.Fatalf("revalidated GET = %d, want 304", second.Code)
	}

	third := get(router, "/api/v1/fixtures?date=2026-03-14", nil)
	if third.Code != http.StatusOK || third.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("third GET = %d X-Cache=%q, want 200 HIT", third.Code, third.Header().Get("X-Cache"))
	}
}

func TestStatsEndpoints(t *testing.T) {
	router := testRouter(t, store.NewMemory())
	for _, path := range []string{"/api/v1/stats/cache", "/api/v1/stats/job"} {
		if rr := get(router, path, nil); rr.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rr.Code)
		}
	}
}
