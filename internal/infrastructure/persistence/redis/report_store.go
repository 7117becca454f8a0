package redis

import (
	"context"
	"encoding/json"
	"fmt"
)

// ReportStore keeps the latest report and a short history list.
type ReportStore[T any] struct {
	cache      *Cache
	lastKey    string
	historyKey string
	maxHistory int64
}

// NewReportStore creates a store under the given name, e.g. "cycle".
func NewReportStore[T any](cache *Cache, name string, maxHistory int64) *ReportStore[T] {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &ReportStore[T]{
		cache:      cache,
		lastKey:    PrefixSync + name + ":last",
		historyKey: PrefixSync + name + ":history",
		maxHistory: maxHistory,
	}
}

// Save records report as the latest and pushes it onto the history.
func (s *ReportStore[T]) Save(ctx context.Context, report T) error {
	if err := s.cache.Set(ctx, s.lastKey, report, TTLCycleReport); err != nil {
		return fmt.Errorf("failed to save last report: %w", err)
	}
	if err := s.cache.PushCapped(ctx, s.historyKey, report, s.maxHistory, TTLCycleReport); err != nil {
		return fmt.Errorf("failed to append report history: %w", err)
	}
	return nil
}

// Last returns the latest report or ErrCacheMiss.
func (s *ReportStore[T]) Last(ctx context.Context) (T, error) {
	var report T
	err := s.cache.Get(ctx, s.lastKey, &report)
	return report, err
}

// History returns up to limit reports, newest first.
func (s *ReportStore[T]) History(ctx context.Context, limit int64) ([]T, error) {
	if limit <= 0 || limit > s.maxHistory {
		limit = s.maxHistory
	}

	raw, err := s.cache.Range(ctx, s.historyKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read report history: %w", err)
	}

	out := make([]T, 0, len(raw))
	for _, data := range raw {
		var report T
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		out = append(out, report)
	}
	return out, nil
}
