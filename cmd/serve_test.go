package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/locate-qa/internal/model"
	"github.com/sells-group/locate-qa/internal/store"
)

// stubStore serves canned data to the router tests.
type stubStore struct {
	runs    []model.Run
	results []model.CategoryResult
}

func (s *stubStore) Migrate(context.Context) error { return nil }
func (s *stubStore) Close() error                  { return nil }

func (s *stubStore) UpsertPoints(context.Context, []model.PointRecord) (store.UpsertStats, error) {
	return store.UpsertStats{}, nil
}
func (s *stubStore) ListPoints(context.Context) ([]model.PointRecord, error) { return nil, nil }
func (s *stubStore) SetPointNearest(context.Context, int64, *float64, int64) error {
	return nil
}
func (s *stubStore) WritePointDerived(context.Context, *model.PointRecord) error { return nil }
func (s *stubStore) InsertLines(context.Context, []model.FacilityLine) (int64, error) {
	return 0, nil
}
func (s *stubStore) ListLines(context.Context) ([]model.FacilityLine, error) { return nil, nil }
func (s *stubStore) LinePassValue(context.Context, int64) (string, bool, error) {
	return "", false, nil
}
func (s *stubStore) CreateRun(context.Context) (*model.Run, error)  { return nil, nil }
func (s *stubStore) FinishRun(context.Context, *model.Run) error    { return nil }
func (s *stubStore) ReplaceAnalysisResults(context.Context, []model.CategoryResult) error {
	return nil
}

func (s *stubStore) GetRun(_ context.Context, id string) (*model.Run, error) {
	for i := range s.runs {
		if s.runs[i].ID == id {
			return &s.runs[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubStore) ListRuns(context.Context, int) ([]model.Run, error) {
	return s.runs, nil
}

func (s *stubStore) ListAnalysisResults(context.Context) ([]model.CategoryResult, error) {
	return s.results, nil
}

func testServer(t *testing.T, st store.Store) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newRouter(st, rate.NewLimiter(rate.Inf, 0)))
	t.Cleanup(srv.Close)
	return srv
}

func TestServeHealth(t *testing.T) {
	srv := testServer(t, &stubStore{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeRuns(t *testing.T) {
	st := &stubStore{runs: []model.Run{
		{ID: "run-1", Status: model.RunStatusComplete, TotalPoints: 10, OverallPassRate: 80, Passed: true, CreatedAt: time.Now()},
		{ID: "run-2", Status: model.RunStatusFailed},
	}}
	srv := testServer(t, st)

	resp, err := http.Get(srv.URL + "/runs")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []model.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.True(t, runs[0].Passed)
}

func TestServeRunByID(t *testing.T) {
	st := &stubStore{runs: []model.Run{{ID: "run-1", Status: model.RunStatusComplete}}}
	srv := testServer(t, st)

	resp, err := http.Get(srv.URL + "/runs/run-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run model.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, "run-1", run.ID)
}

func TestServeRunNotFound(t *testing.T) {
	srv := testServer(t, &stubStore{})

	resp, err := http.Get(srv.URL + "/runs/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeResults(t *testing.T) {
	st := &stubStore{results: []model.CategoryResult{
		{Category: "Excellent", PointsPassed: 7, PassRate: 70, MaxDistance: 5},
	}}
	srv := testServer(t, st)

	resp, err := http.Get(srv.URL + "/results")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var results []model.CategoryResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, "Excellent", results[0].Category)
}

func TestServeRateLimit(t *testing.T) {
	// One-token bucket: the first request passes, the second is rejected.
	srv := httptest.NewServer(newRouter(&stubStore{}, rate.NewLimiter(rate.Limit(0.001), 1)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
