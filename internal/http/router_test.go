package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bracket-pool-services/internal/auth"
	"bracket-pool-services/internal/config"
	"bracket-pool-services/internal/cron"
	"bracket-pool-services/internal/jobs"
	"bracket-pool-services/internal/metrics"
	"bracket-pool-services/internal/metrics/metricstest"
	"bracket-pool-services/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCronSecret = "abc123"
	testJWTSecret  = "jwt-secret"
)

type fakeJob struct {
	name string
	err  error
	hits int
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return "0 6 * * *" }
func (j *fakeJob) Run(context.Context) (jobs.Report, error) {
	j.hits++
	return jobs.Report{Processed: 4}, j.err
}

type memoryRuns struct {
	mu     sync.Mutex
	runs   []jobs.Run
	filter jobs.ListFilter
}

func (m *memoryRuns) Record(_ context.Context, run jobs.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRuns) List(_ context.Context, filter jobs.ListFilter) ([]jobs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
	return append([]jobs.Run(nil), m.runs...), nil
}

type fakeArchives struct {
	period string
	limit  int
	err    error
}

func (f *fakeArchives) ListArchives(_ context.Context, period string, limit int) ([]storage.Archive, error) {
	f.period, f.limit = period, limit
	if f.err != nil {
		return nil, f.err
	}
	return []storage.Archive{
		{Key: "cron-runs/2026/03/19/040000.json", URL: "https://files.pool.test/cron-runs/2026/03/19/040000.json", Size: 512},
		{Key: "cron-runs/2026/03/18/040000.json", URL: "https://files.pool.test/cron-runs/2026/03/18/040000.json", Size: 256},
	}, nil
}

type testEnv struct {
	handler http.Handler
	refresh *fakeJob
	broken  *fakeJob
	runs    *memoryRuns
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, settings cron.StaticSettings) testEnv {
	t.Helper()
	refresh := &fakeJob{name: "refresh-standings"}
	broken := &fakeJob{name: "broken", err: errors.New("feed unavailable")}
	disabled := &fakeJob{name: "archive-cron-runs", err: jobs.ErrDisabled}

	registry := jobs.NewRegistry()
	registry.MustRegister(refresh, broken, disabled)

	runs := &memoryRuns{}
	m := metrics.New()
	runner := jobs.NewRunner(registry, nil, jobs.WithRecorder(runs), jobs.WithMetrics(m))

	h := NewRouter(Deps{
		Config:     config.Config{Env: "production", JWTSecret: testJWTSecret},
		Authorizer: cron.NewAuthorizer(settings, nil),
		Runner:     runner,
		Runs:       runs,
		Metrics:    m,
	})
	return testEnv{handler: h, refresh: refresh, broken: broken, runs: runs, metrics: m}
}

func do(t *testing.T, h http.Handler, method, path, authHeader string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthNeedsNoCredentials(t *testing.T) {
	env := newTestEnv(t, cron.StaticSettings{RuntimeMode: "production"})
	rec, _ := do(t, env.handler, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCronRouteRequiresExactBearer(t *testing.T) {
	env := newTestEnv(t, cron.StaticSettings{CronSecret: testCronSecret, RuntimeMode: "production"})

	for _, header := range []string{"", "Bearer abc123 ", "bearer abc123", "abc123", "Bearer ABC123"} {
		rec, body := do(t, env.handler, http.MethodGet, "/api/cron/refresh-standings", header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Equal(t, "UNAUTHORIZED", body["error"])
	}
	assert.Equal(t, 0, env.refresh.hits)
	assert.Equal(t, 5.0, metricstest.CronAuth(t, env.metrics, "denied"))

	rec, body := do(t, env.handler, http.MethodGet, "/api/cron/refresh-standings", "Bearer "+testCronSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "scheduler", body["trigger"])
	assert.Equal(t, float64(4), body["processed"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, 1, env.refresh.hits)
}

func TestCronRouteMissingSecret(t *testing.T) {
	prod := newTestEnv(t, cron.StaticSettings{RuntimeMode: "production"})
	rec, _ := do(t, prod.handler, http.MethodPost, "/api/cron/refresh-standings", "Bearer anything")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, prod.refresh.hits)

	dev := newTestEnv(t, cron.StaticSettings{RuntimeMode: "development"})
	rec, body := do(t, dev.handler, http.MethodPost, "/api/cron/refresh-standings", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "manual", body["trigger"])
	assert.Equal(t, 1, dev.refresh.hits)
}

func TestCronRouteOutcomes(t *testing.T) {
	env := newTestEnv(t, cron.StaticSettings{CronSecret: testCronSecret, RuntimeMode: "production"})
	bearer := "Bearer " + testCronSecret

	rec, body := do(t, env.handler, http.MethodGet, "/api/cron/unknown", bearer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", body["error"])

	rec, body = do(t, env.handler, http.MethodGet, "/api/cron/broken", bearer)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "JOB_FAILED", body["error"])
	assert.Equal(t, "feed unavailable", body["message"])

	rec, body = do(t, env.handler, http.MethodGet, "/api/cron/archive-cron-runs", bearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["disabled"])

	require.Len(t, env.runs.runs, 2)
	assert.Equal(t, jobs.StatusFailed, env.runs.runs[0].Status)
	assert.Equal(t, jobs.StatusDisabled, env.runs.runs[1].Status)
}

func TestCronJobsList(t *testing.T) {
	env := newTestEnv(t, cron.StaticSettings{CronSecret: testCronSecret, RuntimeMode: "production"})

	rec, _ := do(t, env.handler, http.MethodGet, "/api/cron", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := do(t, env.handler, http.MethodGet, "/api/cron", "Bearer "+testCronSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 3)
	first := data[0].(map[string]any)
	assert.Equal(t, "archive-cron-runs", first["name"])
}

func TestAdminCronRuns(t *testing.T) {
	env := newTestEnv(t, cron.StaticSettings{CronSecret: testCronSecret, RuntimeMode: "production"})
	do(t, env.handler, http.MethodGet, "/api/cron/refresh-standings", "Bearer "+testCronSecret)

	rec, _ := do(t, env.handler, http.MethodGet, "/api/admin/cron/runs", "Bearer "+testCronSecret)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "cron secret is not an admin token")

	token, err := auth.IssueAccessToken(auth.Claims{UserID: "1", Role: auth.RoleSuperAdmin}, testJWTSecret, time.Hour)
	require.NoError(t, err)

	rec, _ = do(t, env.handler, http.MethodGet, "/api/admin/cron/runs?limit=zero", "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := do(t, env.handler, http.MethodGet, "/api/admin/cron/runs?job=refresh-standings&limit=900", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]any)
	assert.Len(t, data, 1)
	assert.Equal(t, "refresh-standings", env.runs.filter.Job)
	assert.Equal(t, 500, env.runs.filter.Limit)
}

func TestAdminCronArchives(t *testing.T) {
	token, err := auth.IssueAccessToken(auth.Claims{UserID: "1", Role: auth.RoleSuperAdmin}, testJWTSecret, time.Hour)
	require.NoError(t, err)
	bearer := "Bearer " + token
	cfg := config.Config{Env: "production", JWTSecret: testJWTSecret}

	unconfigured := NewRouter(Deps{Config: cfg, Authorizer: cron.NewAuthorizer(cron.StaticSettings{}, nil)})
	rec, _ := do(t, unconfigured, http.MethodGet, "/api/admin/cron/archives", bearer)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	archives := &fakeArchives{}
	h := NewRouter(Deps{Config: cfg, Authorizer: cron.NewAuthorizer(cron.StaticSettings{}, nil), Archives: archives})

	rec, _ = do(t, h, http.MethodGet, "/api/admin/cron/archives", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/admin/cron/archives?period=../avatars", bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := do(t, h, http.MethodGet, "/api/admin/cron/archives?period=2026/03&limit=1000", bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026/03", archives.period)
	assert.Equal(t, 365, archives.limit)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "cron-runs/2026/03/19/040000.json", data[0].(map[string]any)["key"])

	archives.err = errors.New("r2 unavailable")
	rec, _ = do(t, h, http.MethodGet, "/api/admin/cron/archives", bearer)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, cron.StaticSettings{RuntimeMode: "production"})
	do(t, env.handler, http.MethodGet, "/api/cron/refresh-standings", "")

	rec, _ := do(t, env.handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bracketpool_cron_auth_total{result="denied"} 1`)
}
