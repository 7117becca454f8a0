package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tle-eliminators/cf-tracker/internal/application/command"
	"github.com/tle-eliminators/cf-tracker/internal/application/query"
	"github.com/tle-eliminators/cf-tracker/internal/domain/settings"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/persistence/redis"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/scheduler"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type upsertSettingRequest struct {
	Key         string `json:"key" validate:"notblank,max=100"`
	Value       string `json:"value" validate:"notblank,max=1000"`
	Description string `json:"description" validate:"max=500"`
	UpdatedBy   string `json:"updatedBy" validate:"max=100"`
}

type updateSyncScheduleRequest struct {
	Schedule  string `json:"schedule" validate:"notblank,max=100"`
	UpdatedBy string `json:"updatedBy" validate:"max=100"`
}

// handleListSettings handles GET /api/v1/settings
func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Settings.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetSetting handles GET /api/v1/settings/{key}
func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Settings.Find(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleUpsertSetting handles PUT /api/v1/settings
func (s *Server) handleUpsertSetting(w http.ResponseWriter, r *http.Request) {
	var req upsertSettingRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	key := strings.TrimSpace(req.Key)
	if key == settings.SyncScheduleKey {
		// Same path as PUT /settings/sync-schedule: validated, then rescheduled.
		st, err := s.deps.UpdateSchedule.Handle(r.Context(), command.UpdateSyncScheduleCommand{
			Schedule:  req.Value,
			UpdatedBy: req.UpdatedBy,
		})
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		s.logger.Info("sync schedule updated", "schedule", st.Value, "updated_by", st.UpdatedBy)
		writeJSON(w, http.StatusOK, st)
		return
	}

	st, err := s.deps.Settings.Set(r.Context(), key, req.Value, req.Description, req.UpdatedBy)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("setting updated", "key", st.Key, "updated_by", st.UpdatedBy)
	writeJSON(w, http.StatusOK, st)
}

// handleUpdateSyncSchedule handles PUT /api/v1/settings/sync-schedule
func (s *Server) handleUpdateSyncSchedule(w http.ResponseWriter, r *http.Request) {
	var req updateSyncScheduleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	st, err := s.deps.UpdateSchedule.Handle(r.Context(), command.UpdateSyncScheduleCommand{
		Schedule:  req.Schedule,
		UpdatedBy: req.UpdatedBy,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("sync schedule updated", "schedule", st.Value, "updated_by", st.UpdatedBy)
	writeJSON(w, http.StatusOK, st)
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNC HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type syncStatusResponse struct {
	Scheduler  scheduler.Status  `json:"scheduler"`
	LastReport *jobs.CycleReport `json:"lastReport"`
}

// handleSyncStatus handles GET /api/v1/sync/status
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	resp := syncStatusResponse{Scheduler: s.deps.Scheduler.Status()}

	if s.deps.Reports != nil {
		report, err := s.deps.Reports.Last(r.Context())
		switch {
		case err == nil:
			resp.LastReport = &report
		case errors.Is(err, redis.ErrCacheMiss):
		default:
			s.logger.Warn("failed to load last cycle report", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSyncReports handles GET /api/v1/sync/reports?limit=N
func (s *Server) handleSyncReports(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		writeJSON(w, http.StatusOK, []jobs.CycleReport{})
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	reports, err := s.deps.Reports.History(r.Context(), int64(limit))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// handleSyncRun handles POST /api/v1/sync/run
func (s *Server) handleSyncRun(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Scheduler.Trigger(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	case errors.Is(err, scheduler.ErrCycleInProgress):
		writeJSONError(w, http.StatusConflict, "cycle_in_progress", "A sync cycle is already running")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		writeJSONError(w, http.StatusServiceUnavailable, "scheduler_stopped", "Scheduler is not running")
	default:
		s.writeDomainError(w, r, err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type syncStudentResponse struct {
	StudentID          string                   `json:"studentId"`
	Handle             string                   `json:"handle"`
	CurrentRating      int                      `json:"currentRating"`
	MaxRating          int                      `json:"maxRating"`
	TotalContests      int                      `json:"totalContests"`
	SolvedProblems     int                      `json:"solvedProblems"`
	PreferredLanguage  string                   `json:"preferredLanguage"`
	LastSubmissionDate *time.Time               `json:"lastSubmissionDate"`
	Result             *command.ReconcileResult `json:"result"`
}

// handleSyncStudent handles POST /api/v1/students/{id}/sync
func (s *Server) handleSyncStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	st, result, err := s.deps.SyncStudent.Handle(r.Context(), studentID)
	if err != nil {
		s.logger.Warn("on-demand sync failed", "student_id", studentID, "error", err)
		s.writeDomainError(w, r, err)
		return
	}

	resp := syncStudentResponse{
		StudentID:         st.ID,
		Handle:            st.CodeforcesHandle.String(),
		CurrentRating:     st.CurrentRating,
		MaxRating:         st.MaxRating,
		TotalContests:     st.TotalContests,
		SolvedProblems:    st.SolvedProblems,
		PreferredLanguage: st.PreferredLanguage.String(),
		Result:            result,
	}
	if st.LastSubmissionDate != nil {
		last := st.LastSubmissionDate.UTC()
		resp.LastSubmissionDate = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleContestHistory handles GET /api/v1/students/{id}/contests?days=N
func (s *Server) handleContestHistory(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.ContestHistory.Handle(r.Context(), query.GetContestHistoryQuery{
		StudentID: chi.URLParam(r, "id"),
		Days:      days,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleProblemStats handles GET /api/v1/students/{id}/problems?days=N
func (s *Server) handleProblemStats(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.ProblemStats.Handle(r.Context(), query.GetProblemStatsQuery{
		StudentID: chi.URLParam(r, "id"),
		Days:      days,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// queryInt parses an optional positive integer query parameter.
// A missing parameter yields 0 so callers fall back to their defaults.
func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return n, nil
}
