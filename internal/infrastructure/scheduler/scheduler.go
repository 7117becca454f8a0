// Package scheduler drives the periodic Codeforces sync cycle.
// It owns the cron schedule read from settings, fires the cycle job at most
// once at a time and lets the schedule be replaced while running.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tle-eliminators/cf-tracker/internal/domain/settings"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job.
	// The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string        `json:"jobName"`
	Trigger     string        `json:"trigger"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
}

// ScheduleSource reads the stored schedule.
type ScheduleSource interface {
	Get(ctx context.Context, key, def string) (string, error)
}

// State is the lifecycle state of a SyncScheduler.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Trigger names what started a cycle.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// SyncScheduler fires a single job on a cron schedule. A fire that arrives
// while the previous run is still in flight is dropped and counted.
type SyncScheduler struct {
	mu sync.Mutex

	// Configuration
	job      Job
	source   ScheduleSource
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time

	// State
	state      State
	expression string
	schedule   Schedule
	timer      *time.Timer
	generation uint64
	nextRun    time.Time
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	// Run bookkeeping
	inFlight     bool
	lastRun      time.Time
	runCount     int64
	failCount    int64
	skippedFires int64
	lastResult   *JobResult
}

// SchedulerConfig contains configuration for the SyncScheduler.
type SchedulerConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Location for schedule calculations (default: UTC).
	Location *time.Location

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewSyncScheduler creates a scheduler for job. source supplies the stored
// cron expression on Start.
func NewSyncScheduler(job Job, source ScheduleSource, config SchedulerConfig) *SyncScheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &SyncScheduler{
		job:        job,
		source:     source,
		logger:     config.Logger.With("component", "scheduler", "job", job.Name()),
		location:   config.Location,
		now:        config.Now,
		state:      StateStopped,
		expression: settings.DefaultSyncSchedule,
		schedule:   MustParseCronExpression(settings.DefaultSyncSchedule),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start loads the stored schedule and arms the timer. A stored expression
// that cannot be parsed is logged and replaced by the default.
func (s *SyncScheduler) Start(ctx context.Context) error {
	expr, err := s.source.Get(ctx, settings.SyncScheduleKey, settings.DefaultSyncSchedule)
	if err != nil {
		s.logger.Error("failed to read sync schedule, using default",
			"default", settings.DefaultSyncSchedule,
			"error", err,
		)
		expr = settings.DefaultSyncSchedule
	}

	sched, err := ParseSchedule(expr)
	if err != nil {
		s.logger.Error("stored sync schedule is invalid, using default",
			"expression", expr,
			"default", settings.DefaultSyncSchedule,
			"error", err,
		)
		expr = settings.DefaultSyncSchedule
		sched = MustParseCronExpression(expr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrSchedulerAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.state = StateRunning
	s.expression = expr
	s.schedule = sched
	s.armLocked()

	s.logger.Info("scheduler started",
		"expression", s.expression,
		"timezone", s.location.String(),
		"next_run", s.nextRun.Format(time.RFC3339),
	)
	return nil
}

// Stop cancels the timer and waits for an in-flight run to finish.
// The run's context is cancelled so it can wind down.
func (s *SyncScheduler) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.state = StateStopped
	s.disarmLocked()
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// Validate reports whether expr would be accepted by Reschedule.
func (s *SyncScheduler) Validate(expr string) error {
	_, err := ParseSchedule(expr)
	return err
}

// Reschedule replaces the schedule. An in-flight run is not affected.
// On a stopped scheduler the expression is only recorded for the next Start.
func (s *SyncScheduler) Reschedule(expr string) error {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expression = expr
	s.schedule = sched
	if s.state == StateRunning {
		s.disarmLocked()
		s.armLocked()
	}

	s.logger.Info("sync schedule updated",
		"expression", expr,
		"next_run", s.nextRun.Format(time.RFC3339),
	)
	return nil
}

// armLocked computes the next fire time and starts the timer.
func (s *SyncScheduler) armLocked() {
	s.generation++
	gen := s.generation

	now := s.now().In(s.location)
	s.nextRun = s.schedule.Next(now)
	if s.nextRun.IsZero() {
		s.logger.Warn("schedule has no upcoming fire time", "expression", s.expression)
		return
	}

	s.timer = time.AfterFunc(s.nextRun.Sub(now), func() { s.fire(gen) })
}

func (s *SyncScheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.nextRun = time.Time{}
	// Bump the generation so a timer that already fired is ignored.
	s.generation++
}

// fire runs on the timer goroutine. Stale generations are ignored.
func (s *SyncScheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.state != StateRunning || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.armLocked()
	err := s.dispatchLocked(TriggerSchedule)
	s.mu.Unlock()

	if errors.Is(err, ErrCycleInProgress) {
		s.logger.Warn("sync cycle skipped: previous cycle still running")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// Trigger starts a run immediately, outside the schedule. The run uses the
// scheduler's context, not ctx, so it outlives the caller. It returns
// ErrCycleInProgress when a run is already in flight and does not wait for
// the new run to finish.
func (s *SyncScheduler) Trigger(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(TriggerManual)
}

// dispatchLocked starts a run on the current context. The state check and
// wg.Add happen under mu, so a concurrent Stop either sees the run in its
// Wait or the run is refused.
func (s *SyncScheduler) dispatchLocked(trigger string) error {
	if s.state != StateRunning {
		return ErrSchedulerNotRunning
	}
	if s.inFlight {
		s.skippedFires++
		return ErrCycleInProgress
	}
	s.inFlight = true
	s.wg.Add(1)

	go s.runJob(s.ctx, trigger)
	return nil
}

// runJob executes the job and records the result.
func (s *SyncScheduler) runJob(ctx context.Context, trigger string) {
	defer s.wg.Done()

	jobName := s.job.Name()
	startedAt := s.now()
	s.logger.Info("job started", "trigger", trigger)

	err := s.safeRun(ctx)
	completedAt := s.now()
	duration := completedAt.Sub(startedAt)

	result := &JobResult{
		JobName:     jobName,
		Trigger:     trigger,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    duration,
		Success:     err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	s.inFlight = false
	s.lastRun = startedAt
	s.runCount++
	if err != nil {
		s.failCount++
	}
	s.lastResult = result
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed",
			"trigger", trigger,
			"duration", duration.String(),
			"error", err,
		)
		return
	}
	s.logger.Info("job completed",
		"trigger", trigger,
		"duration", duration.String(),
	)
}

func (s *SyncScheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return s.job.Run(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is a point-in-time view of the scheduler.
type Status struct {
	State        State      `json:"state"`
	Expression   string     `json:"expression"`
	Timezone     string     `json:"timezone"`
	NextRun      *time.Time `json:"nextRun,omitempty"`
	LastRun      *time.Time `json:"lastRun,omitempty"`
	CycleRunning bool       `json:"cycleRunning"`
	RunCount     int64      `json:"runCount"`
	FailCount    int64      `json:"failCount"`
	SkippedFires int64      `json:"skippedFires"`
	LastResult   *JobResult `json:"lastResult,omitempty"`
}

// Status returns the current scheduler status.
func (s *SyncScheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:        s.state,
		Expression:   s.expression,
		Timezone:     s.location.String(),
		CycleRunning: s.inFlight,
		RunCount:     s.runCount,
		FailCount:    s.failCount,
		SkippedFires: s.skippedFires,
	}
	if !s.nextRun.IsZero() {
		next := s.nextRun
		st.NextRun = &next
	}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		st.LastRun = &last
	}
	if s.lastResult != nil {
		r := *s.lastResult
		st.LastResult = &r
	}
	return st
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrSchedulerAlreadyRunning is returned when Start is called on a running scheduler.
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")

	// ErrSchedulerNotRunning is returned when Stop is called on a stopped scheduler.
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrCycleInProgress is returned when a run is requested while one is in flight.
	ErrCycleInProgress = errors.New("sync cycle already running")
)
