// Package settings defines the persistent key/value configuration that the
// sync engine reads at runtime, most importantly the sync cron schedule.
package settings

import (
	"context"
	"strings"
	"time"

	"github.com/tle-eliminators/cf-tracker/internal/domain/shared"
)

const (
	// SyncScheduleKey holds the cron expression of the sync cycle.
	SyncScheduleKey = "CODEFORCES_SYNC_TIME"

	// DefaultSyncSchedule runs the cycle daily at 02:00.
	DefaultSyncSchedule = "0 2 * * *"

	// SyncScheduleDescription is stored alongside schedule updates.
	SyncScheduleDescription = "Cron schedule for Codeforces data synchronization"

	// SystemActor is recorded when no actor is given.
	SystemActor = "system"
)

// ErrNotFound is returned when a key has never been set.
var ErrNotFound = shared.ErrSettingNotFound

// Setting is a single stored configuration value.
type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	LastUpdated time.Time `json:"lastUpdated"`
	UpdatedBy   string    `json:"updatedBy"`
}

// New builds a setting with the stored defaults applied: an empty
// description becomes "Setting for <key>" and an empty actor becomes "system".
func New(key, value, description, actor string, now time.Time) (*Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, shared.ErrInvalidSettingKey
	}
	if description == "" {
		description = "Setting for " + key
	}
	if actor == "" {
		actor = SystemActor
	}

	return &Setting{
		Key:         key,
		Value:       value,
		Description: description,
		LastUpdated: now.UTC(),
		UpdatedBy:   actor,
	}, nil
}

// Store is durable key/value storage for settings. Writes are last-writer-wins.
type Store interface {
	// Get returns the stored value, or def when the key is absent.
	Get(ctx context.Context, key, def string) (string, error)

	// Set creates or replaces the value of key.
	Set(ctx context.Context, key, value, description, actor string) (*Setting, error)

	// Find returns the full setting or ErrNotFound.
	Find(ctx context.Context, key string) (*Setting, error)

	// List returns all settings ordered by key.
	List(ctx context.Context) ([]*Setting, error)
}
