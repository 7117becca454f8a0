package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tle-eliminators/cf-tracker/internal/application/command"
	"github.com/tle-eliminators/cf-tracker/internal/application/query"
	"github.com/tle-eliminators/cf-tracker/internal/domain/settings"
	"github.com/tle-eliminators/cf-tracker/internal/domain/shared"
	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/persistence/redis"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/scheduler"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/scheduler/jobs"
	"github.com/tle-eliminators/cf-tracker/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type memSettings struct {
	mu     sync.Mutex
	values map[string]*settings.Setting
}

func newMemSettings() *memSettings {
	return &memSettings{values: make(map[string]*settings.Setting)}
}

func (m *memSettings) Get(ctx context.Context, key, def string) (string, error) {
	st, err := m.Find(ctx, key)
	if err != nil {
		return def, nil
	}
	return st.Value, nil
}

func (m *memSettings) Set(_ context.Context, key, value, description, actor string) (*settings.Setting, error) {
	st, err := settings.New(key, value, description, actor, time.Now())
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[st.Key] = st
	return st, nil
}

func (m *memSettings) Find(_ context.Context, key string) (*settings.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.values[key]
	if !ok {
		return nil, settings.ErrNotFound
	}
	return st, nil
}

func (m *memSettings) List(context.Context) ([]*settings.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*settings.Setting, 0, len(m.values))
	for _, st := range m.values {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

type noopJob struct{}

func (noopJob) Name() string              { return "noop" }
func (noopJob) Description() string       { return "does nothing" }
func (noopJob) Run(context.Context) error { return nil }

type fakeController struct {
	status     scheduler.Status
	triggerErr error
	triggers   int
}

func (f *fakeController) Status() scheduler.Status { return f.status }

func (f *fakeController) Trigger(context.Context) error {
	f.triggers++
	return f.triggerErr
}

type fakeReports struct {
	last    *jobs.CycleReport
	history []jobs.CycleReport
}

func (f *fakeReports) Last(context.Context) (jobs.CycleReport, error) {
	if f.last == nil {
		return jobs.CycleReport{}, redis.ErrCacheMiss
	}
	return *f.last, nil
}

func (f *fakeReports) History(_ context.Context, limit int64) ([]jobs.CycleReport, error) {
	if limit > 0 && int(limit) < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

type fakeSyncer struct {
	st  *student.Student
	err error
}

func (f *fakeSyncer) Handle(_ context.Context, id string) (*student.Student, *command.ReconcileResult, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.st, &command.ReconcileResult{StudentID: id, TotalContests: f.st.TotalContests}, nil
}

type fakeHistory struct {
	got query.GetContestHistoryQuery
}

func (f *fakeHistory) Handle(_ context.Context, q query.GetContestHistoryQuery) (*query.ContestHistoryDTO, error) {
	f.got = q
	if q.StudentID != "s1" {
		return nil, student.ErrStudentNotFound
	}
	return &query.ContestHistoryDTO{StudentID: q.StudentID, Days: q.Days, Contests: []query.ContestDTO{}}, nil
}

type fakeStats struct {
	got query.GetProblemStatsQuery
}

func (f *fakeStats) Handle(_ context.Context, q query.GetProblemStatsQuery) (*query.ProblemStatsDTO, error) {
	f.got = q
	return &query.ProblemStatsDTO{StudentID: q.StudentID, Days: q.Days, TotalProblems: 2, RatingBuckets: map[string]int{"800": 2}}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HARNESS
// ══════════════════════════════════════════════════════════════════════════════

type harness struct {
	server     *Server
	settings   *memSettings
	sched      *scheduler.SyncScheduler
	controller *fakeController
	reports    *fakeReports
	syncer     *fakeSyncer
	history    *fakeHistory
	stats      *fakeStats
	health     *handlers.CompositeHealthChecker
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		settings:   newMemSettings(),
		controller: &fakeController{status: scheduler.Status{State: scheduler.StateRunning, Expression: settings.DefaultSyncSchedule}},
		reports:    &fakeReports{},
		syncer:     &fakeSyncer{st: &student.Student{ID: "s1", CodeforcesHandle: "tourist", CurrentRating: 3800, TotalContests: 12}},
		history:    &fakeHistory{},
		stats:      &fakeStats{},
		health:     handlers.NewCompositeHealthChecker("test"),
	}
	h.sched = scheduler.NewSyncScheduler(noopJob{}, h.settings, scheduler.SchedulerConfig{})

	h.server = NewServer(DefaultConfig(), Dependencies{
		Settings:       h.settings,
		UpdateSchedule: command.NewUpdateSyncScheduleHandler(h.settings, h.sched),
		SyncStudent:    h.syncer,
		ContestHistory: h.history,
		ProblemStats:   h.stats,
		Scheduler:      h.controller,
		Reports:        h.reports,
		HealthChecker:  h.health,
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return rec, envelope
}

func errorCode(t *testing.T, envelope map[string]any) string {
	t.Helper()
	apiErr, ok := envelope["error"].(map[string]any)
	require.True(t, ok, "error object expected")
	return apiErr["code"].(string)
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	h := newHarness(t)
	h.health.AddCheck("postgres", func(context.Context) error { return nil })

	rec, env := h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, env["success"])

	h.health.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	rec, _ = h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, env = h.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	data := env["data"].(map[string]any)
	assert.Equal(t, "not_ready", data["status"])
	assert.Contains(t, data["reason"], "redis")
}

func TestSettings_UpsertAndGet(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodPut, "/api/v1/settings", `{"key":"TEAM_NAME","value":"TLE Eliminators"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := env["data"].(map[string]any)
	assert.Equal(t, "Setting for TEAM_NAME", data["description"])
	assert.Equal(t, "system", data["updatedBy"])

	rec, env = h.do(t, http.MethodGet, "/api/v1/settings/TEAM_NAME", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TLE Eliminators", env["data"].(map[string]any)["value"])

	rec, env = h.do(t, http.MethodGet, "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env["data"], 1)
}

func TestSettings_GetMissing(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodGet, "/api/v1/settings/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "not_found", errorCode(t, env))
}

func TestSettings_UpsertValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing key", `{"value":"x"}`, "key"},
		{"blank value", `{"key":"A","value":"   "}`, "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := h.do(t, http.MethodPut, "/api/v1/settings", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			apiErr := env["error"].(map[string]any)
			assert.Equal(t, "validation", apiErr["code"])
			details := apiErr["details"].(map[string]any)
			assert.Contains(t, details, tt.field)
		})
	}

	rec, env := h.do(t, http.MethodPut, "/api/v1/settings", `{"key":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, env))
}

func TestUpdateSyncSchedule(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodPut, "/api/v1/settings/sync-schedule", `{"schedule":"*/30 * * * *","updatedBy":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "*/30 * * * *", env["data"].(map[string]any)["value"])

	stored, err := h.settings.Find(context.Background(), settings.SyncScheduleKey)
	require.NoError(t, err)
	assert.Equal(t, "admin", stored.UpdatedBy)
	assert.Equal(t, "*/30 * * * *", h.sched.Status().Expression)
}

func TestUpdateSyncSchedule_Malformed(t *testing.T) {
	h := newHarness(t)

	for _, expr := range []string{"61 * * * *", "* * *", "every day"} {
		t.Run(expr, func(t *testing.T) {
			rec, env := h.do(t, http.MethodPut, "/api/v1/settings/sync-schedule", `{"schedule":"`+expr+`"}`)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation", errorCode(t, env))
		})
	}

	_, err := h.settings.Find(context.Background(), settings.SyncScheduleKey)
	assert.True(t, shared.IsNotFound(err), "nothing stored for malformed input")
	assert.Equal(t, settings.DefaultSyncSchedule, h.sched.Status().Expression)
}

func TestSettings_UpsertScheduleKeyIsValidated(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodPut, "/api/v1/settings", `{"key":"CODEFORCES_SYNC_TIME","value":"not a cron"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorCode(t, env))

	_, err := h.settings.Find(context.Background(), settings.SyncScheduleKey)
	assert.True(t, shared.IsNotFound(err), "malformed schedule must not be stored")
	assert.Equal(t, settings.DefaultSyncSchedule, h.sched.Status().Expression)

	rec, env = h.do(t, http.MethodPut, "/api/v1/settings", `{"key":" CODEFORCES_SYNC_TIME ","value":"0 6 * * *","updatedBy":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "0 6 * * *", env["data"].(map[string]any)["value"])
	assert.Equal(t, "0 6 * * *", h.sched.Status().Expression, "generic upsert reschedules too")

	stored, err := h.settings.Find(context.Background(), settings.SyncScheduleKey)
	require.NoError(t, err)
	assert.Equal(t, settings.SyncScheduleDescription, stored.Description)
}

func TestSyncStatus(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodGet, "/api/v1/sync/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := env["data"].(map[string]any)
	assert.Nil(t, data["lastReport"])
	assert.Equal(t, "running", data["scheduler"].(map[string]any)["state"])

	h.reports.last = &jobs.CycleReport{ID: "cycle-1", Total: 3, Synced: 2, Failed: 1}
	_, env = h.do(t, http.MethodGet, "/api/v1/sync/status", "")
	last := env["data"].(map[string]any)["lastReport"].(map[string]any)
	assert.Equal(t, "cycle-1", last["id"])
	assert.EqualValues(t, 2, last["synced"])
}

func TestSyncReports(t *testing.T) {
	h := newHarness(t)
	h.reports.history = []jobs.CycleReport{{ID: "c3"}, {ID: "c2"}, {ID: "c1"}}

	rec, env := h.do(t, http.MethodGet, "/api/v1/sync/reports?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env["data"], 2)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/sync/reports?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncRun(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(t, http.MethodPost, "/api/v1/sync/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, h.controller.triggers)

	h.controller.triggerErr = scheduler.ErrCycleInProgress
	rec, env := h.do(t, http.MethodPost, "/api/v1/sync/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cycle_in_progress", errorCode(t, env))

	h.controller.triggerErr = scheduler.ErrSchedulerNotRunning
	rec, _ = h.do(t, http.MethodPost, "/api/v1/sync/run", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSyncStudent(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodPost, "/api/v1/students/s1/sync", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := env["data"].(map[string]any)
	assert.Equal(t, "tourist", data["handle"])
	assert.EqualValues(t, 3800, data["currentRating"])
	assert.Nil(t, data["lastSubmissionDate"])
	assert.EqualValues(t, 12, data["result"].(map[string]any)["totalContests"])
}

func TestSyncStudent_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown student", student.ErrStudentNotFound, http.StatusNotFound, "not_found"},
		{"remote down", shared.NewDomainError("codeforces", "UserInfo", shared.ErrRemoteUnavailable, "timeout"), http.StatusBadGateway, "remote_unavailable"},
		{"remote rejected", shared.NewDomainError("codeforces", "UserInfo", shared.ErrRemoteRejected, "handle not found"), http.StatusBadGateway, "remote_rejected"},
		{"storage", shared.WrapError("student", "Update", shared.ErrPersistence, "save failed", errors.New("db down")), http.StatusInternalServerError, "persistence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.syncer.err = tt.err

			rec, env := h.do(t, http.MethodPost, "/api/v1/students/s1/sync", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, env))
		})
	}
}

func TestStudentQueries_DaysParameter(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(t, http.MethodGet, "/api/v1/students/s1/contests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, h.history.got.Days, "missing days falls back to the query default")

	rec, _ = h.do(t, http.MethodGet, "/api/v1/students/s1/contests?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, h.history.got.Days)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/students/s2/contests", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := h.do(t, http.MethodGet, "/api/v1/students/s1/problems?days=14", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 14, h.stats.got.Days)
	assert.EqualValues(t, 2, env["data"].(map[string]any)["totalProblems"])

	rec, _ = h.do(t, http.MethodGet, "/api/v1/students/s1/problems?days=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodGet, "/api/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, env))
}
