package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// Migration is one forward-only schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// Migrations returns the embedded migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_students", UpSQL: migration001Up},
		{Version: 2, Name: "create_contest_and_problem_records", UpSQL: migration002Up},
		{Version: 3, Name: "create_settings", UpSQL: migration003Up},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

const migrationsTable = "schema_migrations"

// Migrator applies pending migrations, each in its own transaction.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	logger     *slog.Logger
}

// NewMigrator creates a migrator over the embedded migrations.
func NewMigrator(conn *Connection, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{conn: conn, migrations: Migrations(), logger: logger}
}

// Migrate applies every migration not yet recorded and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if _, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	done, err := m.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, mig := range m.migrations {
		if done[mig.Version] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return ran, fmt.Errorf("migration %03d_%s failed: %w", mig.Version, mig.Name, err)
		}
		m.logger.Info("migration applied", "version", mig.Version, "name", mig.Name)
		ran++
	}
	return ran, nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.conn.Query(ctx, "SELECT version FROM "+migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("failed to scan applied migrations: %w", err)
	}

	done := make(map[int]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO "+migrationsTable+" (version, name) VALUES ($1, $2)",
		mig.Version, mig.Name,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    name VARCHAR(100) NOT NULL DEFAULT '',
    email VARCHAR(255) NOT NULL DEFAULT '',
    phone VARCHAR(32) NOT NULL DEFAULT '',
    codeforces_handle VARCHAR(24) NOT NULL UNIQUE,
    current_rating INTEGER NOT NULL DEFAULT 0,
    max_rating INTEGER NOT NULL DEFAULT 0,
    total_contests INTEGER NOT NULL DEFAULT 0,
    solved_problems INTEGER NOT NULL DEFAULT 0,
    preferred_language VARCHAR(50) NOT NULL DEFAULT 'C++',
    last_updated TIMESTAMPTZ,
    last_submission_date TIMESTAMPTZ,
    email_reminders INTEGER NOT NULL DEFAULT 0,
    email_reminders_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    joined_on TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_email_reminders CHECK (email_reminders >= 0)
);

CREATE INDEX IF NOT EXISTS idx_students_last_submission ON students(last_submission_date);
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CONTEST & PROBLEM RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS contest_records (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    contest_id INTEGER NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    date TIMESTAMPTZ NOT NULL,
    rank INTEGER NOT NULL DEFAULT 0,
    old_rating INTEGER NOT NULL DEFAULT 0,
    new_rating INTEGER NOT NULL DEFAULT 0,
    rating_change INTEGER NOT NULL DEFAULT 0,
    unsolved_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_contest_records_student_contest UNIQUE (student_id, contest_id)
);

CREATE INDEX IF NOT EXISTS idx_contest_records_student_date ON contest_records(student_id, date DESC);

CREATE TABLE IF NOT EXISTS problem_records (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    problem_id VARCHAR(32) NOT NULL,
    contest_id INTEGER NOT NULL,
    problem_index VARCHAR(8) NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    rating INTEGER NOT NULL DEFAULT 0,
    tags TEXT[] NOT NULL DEFAULT '{}',
    solved_date TIMESTAMPTZ NOT NULL,
    submission_id BIGINT NOT NULL,
    language VARCHAR(64) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_problem_records_student_problem UNIQUE (student_id, problem_id)
);

CREATE INDEX IF NOT EXISTS idx_problem_records_student_solved ON problem_records(student_id, solved_date DESC);
`


// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS settings (
    key VARCHAR(100) PRIMARY KEY,
    value TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_by VARCHAR(100) NOT NULL DEFAULT 'system'
);
`

