package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/tle-eliminators/cf-tracker/internal/domain/settings"
	"github.com/tle-eliminators/cf-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE SYNC SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// Rescheduler validates cron expressions and installs them on the running
// scheduler.
type Rescheduler interface {
	Validate(expr string) error
	Reschedule(expr string) error
}

// UpdateSyncScheduleCommand contains the data for a schedule change.
type UpdateSyncScheduleCommand struct {
	Schedule  string
	UpdatedBy string
}

// UpdateSyncScheduleHandler stores a new schedule and applies it immediately.
type UpdateSyncScheduleHandler struct {
	store     settings.Store
	scheduler Rescheduler
}

// NewUpdateSyncScheduleHandler creates a new UpdateSyncScheduleHandler.
func NewUpdateSyncScheduleHandler(store settings.Store, scheduler Rescheduler) *UpdateSyncScheduleHandler {
	return &UpdateSyncScheduleHandler{store: store, scheduler: scheduler}
}

// Handle validates the expression, persists it and reschedules.
// Malformed expressions are rejected before anything is written.
func (h *UpdateSyncScheduleHandler) Handle(ctx context.Context, cmd UpdateSyncScheduleCommand) (*settings.Setting, error) {
	expr := strings.TrimSpace(cmd.Schedule)
	if err := h.scheduler.Validate(expr); err != nil {
		return nil, shared.WrapError("settings", "UpdateSyncSchedule", shared.ErrInvalidInput, "invalid cron schedule", err)
	}

	st, err := h.store.Set(ctx, settings.SyncScheduleKey, expr, settings.SyncScheduleDescription, cmd.UpdatedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to store sync schedule: %w", err)
	}

	if err := h.scheduler.Reschedule(expr); err != nil {
		return st, fmt.Errorf("failed to reschedule sync: %w", err)
	}
	return st, nil
}
