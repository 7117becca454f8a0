package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tle-eliminators/cf-tracker/internal/domain/settings"
)

// SettingsStore implements settings.Store on the settings table.
type SettingsStore struct {
	db  Querier
	now func() time.Time
}

// NewSettingsStore creates a new SettingsStore.
func NewSettingsStore(db Querier) *SettingsStore {
	return &SettingsStore{db: db, now: time.Now}
}

// Get returns the stored value or def when the key is absent.
func (s *SettingsStore) Get(ctx context.Context, key, def string) (string, error) {
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if IsNoRows(err) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// Set upserts the setting. The last writer wins.
func (s *SettingsStore) Set(ctx context.Context, key, value, description, actor string) (*settings.Setting, error) {
	st, err := settings.New(key, value, description, actor, s.now())
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO settings (key, value, description, last_updated, updated_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			description = EXCLUDED.description,
			last_updated = EXCLUDED.last_updated,
			updated_by = EXCLUDED.updated_by
	`

	if _, err := s.db.Exec(ctx, query, st.Key, st.Value, st.Description, st.LastUpdated, st.UpdatedBy); err != nil {
		return nil, fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return st, nil
}

// Find returns the full setting or settings.ErrNotFound.
func (s *SettingsStore) Find(ctx context.Context, key string) (*settings.Setting, error) {
	row := s.db.QueryRow(ctx,
		`SELECT key, value, description, last_updated, updated_by FROM settings WHERE key = $1`, key)

	st, err := scanSetting(row)
	if IsNoRows(err) {
		return nil, settings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find setting %s: %w", key, err)
	}
	return st, nil
}

// List returns all settings ordered by key.
func (s *SettingsStore) List(ctx context.Context) ([]*settings.Setting, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key, value, description, last_updated, updated_by FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var out []*settings.Setting
	for rows.Next() {
		st, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanSetting(row pgx.Row) (*settings.Setting, error) {
	var st settings.Setting
	if err := row.Scan(&st.Key, &st.Value, &st.Description, &st.LastUpdated, &st.UpdatedBy); err != nil {
		return nil, err
	}
	return &st, nil
}
