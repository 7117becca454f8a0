package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/tle-eliminators/cf-tracker/internal/domain/shared"
	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
	"github.com/tle-eliminators/cf-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INACTIVITY REMINDER
// ══════════════════════════════════════════════════════════════════════════════

// DefaultInactivityThresholdDays is the number of whole days without a
// submission after which a reminder is sent.
const DefaultInactivityThresholdDays = 7

// Notifier delivers an inactivity reminder. Send reports success and never
// returns an error; failures are logged by the implementation.
type Notifier interface {
	Send(ctx context.Context, st *student.Student) bool
}

// Decision is the outcome of evaluating one student.
type Decision struct {
	Notify       bool
	DaysInactive int
}

// ReminderOutcome describes what RemindIfInactive did.
type ReminderOutcome int

const (
	ReminderNotNeeded ReminderOutcome = iota
	ReminderSent
	ReminderFailed
)

// InactivityEvaluator decides whether a student should be reminded and
// dispatches the reminder.
type InactivityEvaluator struct {
	students      student.Repository
	notifier      Notifier
	thresholdDays int
	now           func() time.Time
	logger        *slog.Logger
}

// InactivityOption configures an InactivityEvaluator.
type InactivityOption func(*InactivityEvaluator)

// WithThresholdDays overrides the inactivity threshold.
func WithThresholdDays(days int) InactivityOption {
	return func(e *InactivityEvaluator) {
		if days > 0 {
			e.thresholdDays = days
		}
	}
}

// WithInactivityClock overrides the time source.
func WithInactivityClock(now func() time.Time) InactivityOption {
	return func(e *InactivityEvaluator) {
		e.now = now
	}
}

// WithInactivityLogger sets the logger.
func WithInactivityLogger(logger *slog.Logger) InactivityOption {
	return func(e *InactivityEvaluator) {
		e.logger = logger
	}
}

// NewInactivityEvaluator creates a new InactivityEvaluator.
func NewInactivityEvaluator(students student.Repository, notifier Notifier, opts ...InactivityOption) *InactivityEvaluator {
	e := &InactivityEvaluator{
		students:      students,
		notifier:      notifier,
		thresholdDays: DefaultInactivityThresholdDays,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ThresholdDays returns the configured threshold.
func (e *InactivityEvaluator) ThresholdDays() int {
	return e.thresholdDays
}

// Evaluate computes whole days since the last submission. A student who never
// submitted is measured from the Unix epoch.
func (e *InactivityEvaluator) Evaluate(st *student.Student) Decision {
	days := timeutil.DaysSinceOrEpoch(st.LastSubmissionDate, e.now())
	return Decision{
		Notify:       days >= e.thresholdDays && st.EmailRemindersEnabled,
		DaysInactive: days,
	}
}

// RemindIfInactive sends a reminder when Evaluate says so and, on successful
// delivery, increments the stored reminder counter. st.EmailReminders is set
// to the stored value afterwards.
// A failed delivery returns an ErrNotify error and leaves the counter alone.
func (e *InactivityEvaluator) RemindIfInactive(ctx context.Context, st *student.Student) (ReminderOutcome, error) {
	decision := e.Evaluate(st)
	if !decision.Notify {
		return ReminderNotNeeded, nil
	}

	if !e.notifier.Send(ctx, st) {
		e.logger.Warn("inactivity reminder not delivered",
			"student_id", st.ID,
			"handle", st.CodeforcesHandle,
			"days_inactive", decision.DaysInactive,
		)
		return ReminderFailed, shared.NewDomainError("student", "SendReminder", shared.ErrNotify, "reminder delivery failed")
	}

	reminders, err := e.students.IncrementReminders(ctx, st.ID)
	if err != nil {
		return ReminderSent, shared.WrapError("student", "SaveReminder", shared.ErrPersistence, "failed to record reminder", err)
	}
	st.EmailReminders = reminders

	e.logger.Info("inactivity reminder sent",
		"student_id", st.ID,
		"handle", st.CodeforcesHandle,
		"days_inactive", decision.DaysInactive,
		"reminders", st.EmailReminders,
	)
	return ReminderSent, nil
}
