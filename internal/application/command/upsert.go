// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system: reconciling
// a fetched Codeforces account into storage, sending inactivity reminders and
// updating the sync schedule.
package command

import (
	"context"
	"fmt"
)

// RecordStore is the storage contract shared by contest and problem records.
// FindByKey returns (nil, nil) when no record exists.
type RecordStore[K comparable, R any] interface {
	FindByKey(ctx context.Context, key K) (*R, error)
	Create(ctx context.Context, record *R) error
	Update(ctx context.Context, record *R) error
}

// UpsertOutcome tells whether Upsert inserted or updated.
type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota + 1
	UpsertUpdated
)

// Upsert finds the record by its natural key, creates fresh when absent, and
// otherwise merges fresh into the stored record and updates it. merge copies
// the remote-owned fields and leaves locally-owned ones alone.
func Upsert[K comparable, R any](
	ctx context.Context,
	store RecordStore[K, R],
	key K,
	fresh *R,
	merge func(stored, fresh *R),
) (UpsertOutcome, error) {
	stored, err := store.FindByKey(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("find %v: %w", key, err)
	}

	if stored == nil {
		if err := store.Create(ctx, fresh); err != nil {
			return 0, fmt.Errorf("create %v: %w", key, err)
		}
		return UpsertCreated, nil
	}

	merge(stored, fresh)
	if err := store.Update(ctx, stored); err != nil {
		return 0, fmt.Errorf("update %v: %w", key, err)
	}
	return UpsertUpdated, nil
}
