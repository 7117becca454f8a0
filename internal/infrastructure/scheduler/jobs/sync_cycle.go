// Package jobs contains the scheduled jobs of the sync engine.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tle-eliminators/cf-tracker/internal/application/command"
	"github.com/tle-eliminators/cf-tracker/internal/domain/shared"
	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
	"github.com/tle-eliminators/cf-tracker/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC CYCLE JOB
// ══════════════════════════════════════════════════════════════════════════════

// StudentLister provides the snapshot of students for a cycle.
type StudentLister interface {
	List(ctx context.Context) ([]*student.Student, error)
}

// Reconciler merges a fetched account into storage.
type Reconciler interface {
	Reconcile(ctx context.Context, st *student.Student, acct *student.Account) (*command.ReconcileResult, error)
}

// Reminder evaluates inactivity and sends a reminder when due.
type Reminder interface {
	RemindIfInactive(ctx context.Context, st *student.Student) (command.ReminderOutcome, error)
}

// ReportStore persists cycle reports.
type ReportStore interface {
	Save(ctx context.Context, report CycleReport) error
}

// SyncCycleConfig contains configuration for the sync cycle.
type SyncCycleConfig struct {
	// Concurrency is the number of students processed in parallel.
	Concurrency int

	// SoftDeadline bounds how long new students keep being started.
	// Students already in progress are allowed to finish.
	SoftDeadline time.Duration

	// FetchAttempts is the number of fetch attempts per student,
	// including the first. Only unavailable errors are retried.
	FetchAttempts int

	// RetryDelay is the delay before the first fetch retry.
	RetryDelay time.Duration
}

// DefaultSyncCycleConfig returns sensible defaults.
func DefaultSyncCycleConfig() SyncCycleConfig {
	return SyncCycleConfig{
		Concurrency:   5,
		SoftDeadline:  30 * time.Minute,
		FetchAttempts: 2,
		RetryDelay:    2 * time.Second,
	}
}

// CycleReport summarises one run of the sync cycle.
type CycleReport struct {
	ID               string         `json:"id"`
	StartedAt        time.Time      `json:"startedAt"`
	CompletedAt      time.Time      `json:"completedAt"`
	Duration         time.Duration  `json:"duration"`
	Total            int            `json:"total"`
	Synced           int            `json:"synced"`
	Failed           int            `json:"failed"`
	FailedByKind     map[string]int `json:"failedByKind"`
	Skipped          int            `json:"skipped"`
	Notified         int            `json:"notified"`
	NotifyFailures   int            `json:"notifyFailures"`
	DeadlineExceeded bool           `json:"deadlineExceeded"`
	Errors           []StudentError `json:"errors"`
}

// StudentError records a per-student failure.
type StudentError struct {
	StudentID  string    `json:"studentId"`
	Handle     string    `json:"handle"`
	Stage      string    `json:"stage"`
	Kind       string    `json:"kind"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Processing stages reported in StudentError.
const (
	StageFetch     = "fetch"
	StageReconcile = "reconcile"
	StageNotify    = "notify"
	StagePanic     = "panic"
)

// SyncCycleJob fetches, reconciles and evaluates every student once.
type SyncCycleJob struct {
	// Dependencies
	students   StudentLister
	fetcher    command.AccountFetcher
	reconciler Reconciler
	reminder   Reminder
	reports    ReportStore
	logger     *slog.Logger
	now        func() time.Time

	// Configuration
	config  SyncCycleConfig
	retrier *retry.Retrier

	lastReport atomic.Pointer[CycleReport]
}

// NewSyncCycleJob creates a new sync cycle job. reports may be nil.
func NewSyncCycleJob(
	students StudentLister,
	fetcher command.AccountFetcher,
	reconciler Reconciler,
	reminder Reminder,
	reports ReportStore,
	logger *slog.Logger,
	config SyncCycleConfig,
) *SyncCycleJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	if config.FetchAttempts <= 0 {
		config.FetchAttempts = 1
	}

	j := &SyncCycleJob{
		students:   students,
		fetcher:    fetcher,
		reconciler: reconciler,
		reminder:   reminder,
		reports:    reports,
		logger:     logger.With("job", "codeforces_sync"),
		now:        time.Now,
		config:     config,
	}
	j.retrier = retry.New(
		retry.WithMaxAttempts(config.FetchAttempts),
		retry.WithInitialDelay(config.RetryDelay),
		retry.WithRetryIf(shared.IsRetryable),
	)
	return j
}

// Name returns the job name.
func (j *SyncCycleJob) Name() string {
	return "codeforces_sync"
}

// Description returns a human-readable description.
func (j *SyncCycleJob) Description() string {
	return "Synchronizes Codeforces data for all students and sends inactivity reminders"
}

// LastReport returns the report of the last completed cycle, or nil.
func (j *SyncCycleJob) LastReport() *CycleReport {
	return j.lastReport.Load()
}

// Run executes one sync cycle. Per-student failures are recorded in the
// report and never abort the cycle.
func (j *SyncCycleJob) Run(ctx context.Context) error {
	report := &CycleReport{
		ID:           uuid.NewString(),
		StartedAt:    j.now().UTC(),
		FailedByKind: make(map[string]int),
		Errors:       make([]StudentError, 0),
	}
	logger := j.logger.With("cycle_id", report.ID)
	logger.Info("sync cycle started")

	students, err := j.students.List(ctx)
	if err != nil {
		return shared.WrapError("sync", "ListStudents", shared.ErrPersistence, "failed to load students", err)
	}
	report.Total = len(students)

	j.processAll(ctx, logger, students, report)

	report.CompletedAt = j.now().UTC()
	report.Duration = report.CompletedAt.Sub(report.StartedAt)
	j.lastReport.Store(report)

	if j.reports != nil {
		if err := j.reports.Save(ctx, *report); err != nil {
			logger.Warn("failed to store cycle report", "error", err)
		}
	}

	logger.Info("sync cycle completed",
		"duration", report.Duration.String(),
		"total", report.Total,
		"synced", report.Synced,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"notified", report.Notified,
		"notify_failures", report.NotifyFailures,
	)

	if report.Total > 0 && report.Failed*2 > report.Total {
		return fmt.Errorf("sync failed for more than 50%% of students (%d/%d)", report.Failed, report.Total)
	}
	return nil
}

// processAll runs students through a bounded worker pool. Once the soft
// deadline passes or ctx is cancelled, students not yet started are skipped.
func (j *SyncCycleJob) processAll(ctx context.Context, logger *slog.Logger, students []*student.Student, report *CycleReport) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		semaphore = make(chan struct{}, j.config.Concurrency)
	)

	var deadline time.Time
	if j.config.SoftDeadline > 0 {
		deadline = j.now().Add(j.config.SoftDeadline)
	}
	stopped := func() bool {
		return ctx.Err() != nil || (!deadline.IsZero() && !j.now().Before(deadline))
	}

	for i, st := range students {
		acquired := false
		if !stopped() {
			select {
			case semaphore <- struct{}{}: // Acquire
				acquired = true
			case <-ctx.Done():
			}
		}
		if stopped() {
			if acquired {
				<-semaphore
			}
			if ctx.Err() == nil {
				report.DeadlineExceeded = true
			}
			remaining := len(students) - i
			mu.Lock()
			report.Skipped += remaining
			mu.Unlock()
			logger.Warn("sync cycle stopped early, skipping remaining students",
				"skipped", remaining,
				"deadline_exceeded", report.DeadlineExceeded,
			)
			break
		}

		wg.Add(1)
		go func(st *student.Student) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release

			outcome := j.processStudent(ctx, logger, st)

			mu.Lock()
			defer mu.Unlock()
			outcome.apply(report)
		}(st)
	}

	wg.Wait()
}

// studentOutcome is the result of processing one student.
type studentOutcome struct {
	synced       bool
	notified     bool
	notifyFailed bool
	err          *StudentError
}

func (o studentOutcome) apply(r *CycleReport) {
	if o.synced {
		r.Synced++
	}
	if o.notified {
		r.Notified++
	}
	if o.notifyFailed {
		r.NotifyFailures++
	}
	if o.err != nil {
		if !o.synced {
			r.Failed++
			r.FailedByKind[o.err.Kind]++
		}
		r.Errors = append(r.Errors, *o.err)
	}
}

// processStudent runs fetch, reconcile and the inactivity check for one
// student. A panic is recovered and reported as a failure.
func (j *SyncCycleJob) processStudent(ctx context.Context, logger *slog.Logger, st *student.Student) (outcome studentOutcome) {
	logger = logger.With("student_id", st.ID, "handle", st.CodeforcesHandle)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while syncing student", "panic", r)
			outcome = studentOutcome{err: j.studentError(st, StagePanic, "panic", fmt.Errorf("panic: %v", r))}
		}
	}()

	acct, err := retry.DoWithData(ctx, j.retrier, func(ctx context.Context) (*student.Account, error) {
		return j.fetcher.FetchAccount(ctx, st.CodeforcesHandle)
	})
	if err != nil {
		kind := shared.Kind(err)
		logger.Error("failed to fetch Codeforces account", "kind", kind, "error", err)
		return studentOutcome{err: j.studentError(st, StageFetch, kind, err)}
	}

	if _, err := j.reconciler.Reconcile(ctx, st, acct); err != nil {
		kind := shared.Kind(err)
		logger.Error("failed to reconcile student", "kind", kind, "error", err)
		return studentOutcome{err: j.studentError(st, StageReconcile, kind, err)}
	}
	outcome.synced = true

	result, err := j.reminder.RemindIfInactive(ctx, st)
	switch result {
	case command.ReminderSent:
		outcome.notified = true
	case command.ReminderFailed:
		outcome.notifyFailed = true
	}
	if err != nil {
		kind := shared.Kind(err)
		if result != command.ReminderFailed {
			logger.Error("failed to record inactivity reminder", "kind", kind, "error", err)
		}
		outcome.err = j.studentError(st, StageNotify, kind, err)
	}
	return outcome
}

func (j *SyncCycleJob) studentError(st *student.Student, stage, kind string, err error) *StudentError {
	return &StudentError{
		StudentID:  st.ID,
		Handle:     st.CodeforcesHandle.String(),
		Stage:      stage,
		Kind:       kind,
		Error:      err.Error(),
		OccurredAt: j.now().UTC(),
	}
}
