package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tle-eliminators/cf-tracker/internal/domain/settings"
)

// CachedSettingsStore is a read-through cache in front of a settings.Store.
// Redis failures are logged and fall through to the underlying store.
type CachedSettingsStore struct {
	inner  settings.Store
	cache  *Cache
	logger *slog.Logger
}

// NewCachedSettingsStore wraps inner with cache.
func NewCachedSettingsStore(inner settings.Store, cache *Cache, logger *slog.Logger) *CachedSettingsStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSettingsStore{inner: inner, cache: cache, logger: logger}
}

// Get returns the cached value, loading it from the store on a miss.
// Absent keys are not cached so a later Set is seen immediately.
func (s *CachedSettingsStore) Get(ctx context.Context, key, def string) (string, error) {
	var value string
	err := s.cache.Get(ctx, SettingKey(key), &value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("settings cache read failed", "key", key, "error", err)
	}

	st, err := s.inner.Find(ctx, key)
	if errors.Is(err, settings.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(ctx, SettingKey(key), st.Value, TTLSetting); err != nil {
		s.logger.Warn("settings cache write failed", "key", key, "error", err)
	}
	return st.Value, nil
}

// Set writes through to the store and then refreshes the cached value.
func (s *CachedSettingsStore) Set(ctx context.Context, key, value, description, actor string) (*settings.Setting, error) {
	st, err := s.inner.Set(ctx, key, value, description, actor)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, SettingKey(st.Key), st.Value, TTLSetting); err != nil {
		s.logger.Warn("settings cache refresh failed, invalidating", "key", st.Key, "error", err)
		_ = s.cache.Delete(ctx, SettingKey(st.Key))
	}
	return st, nil
}

// Find reads the full setting from the store.
func (s *CachedSettingsStore) Find(ctx context.Context, key string) (*settings.Setting, error) {
	return s.inner.Find(ctx, key)
}

// List reads all settings from the store.
func (s *CachedSettingsStore) List(ctx context.Context) ([]*settings.Setting, error) {
	return s.inner.List(ctx)
}
