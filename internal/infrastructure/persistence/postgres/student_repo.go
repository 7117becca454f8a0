package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	db Querier
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(db Querier) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `
	id, name, email, phone, codeforces_handle,
	current_rating, max_rating, total_contests, solved_problems, preferred_language,
	last_updated, last_submission_date, email_reminders, email_reminders_enabled,
	joined_on, created_at, updated_at`

// Create creates a new student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `INSERT INTO students (` + studentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.Exec(ctx, query,
		s.ID,
		s.Name,
		s.Email,
		s.Phone,
		s.CodeforcesHandle.String(),
		s.CurrentRating,
		s.MaxRating,
		s.TotalContests,
		s.SolvedProblems,
		s.PreferredLanguage.String(),
		nullTime(s.LastUpdated),
		s.LastSubmissionDate,
		s.EmailReminders,
		s.EmailRemindersEnabled,
		s.JoinedOn,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("student %s already exists: %w", s.CodeforcesHandle, err)
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns a student by internal ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	return scanStudent(r.db.QueryRow(ctx, query, id))
}

// List returns every student ordered by join date.
func (r *StudentRepository) List(ctx context.Context) ([]*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students ORDER BY joined_on, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []*student.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}

	return students, nil
}

// Update writes the synced aggregates only. Identity columns, the reminder
// counter and the reminder opt-in are left untouched, so a sync that read the
// row before a reminder was recorded cannot roll the counter back.
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	tag, err := r.db.Exec(ctx, updateAggregatesSQL, updateAggregatesArgs(s, time.Now().UTC())...)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return student.ErrStudentNotFound
	}

	return nil
}

// IncrementReminders bumps email_reminders in place and returns the new value.
func (r *StudentRepository) IncrementReminders(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE students SET
			email_reminders = email_reminders + 1,
			updated_at = $2
		WHERE id = $1
		RETURNING email_reminders
	`

	var n int
	err := r.db.QueryRow(ctx, query, id, time.Now().UTC()).Scan(&n)
	if IsNoRows(err) {
		return 0, student.ErrStudentNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment reminders: %w", err)
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

const updateAggregatesSQL = `
	UPDATE students SET
		current_rating = $1,
		max_rating = $2,
		total_contests = $3,
		solved_problems = $4,
		preferred_language = $5,
		last_updated = $6,
		last_submission_date = $7,
		updated_at = $8
	WHERE id = $9
`

func updateAggregatesArgs(s *student.Student, now time.Time) []any {
	return []any{
		s.CurrentRating,
		s.MaxRating,
		s.TotalContests,
		s.SolvedProblems,
		s.PreferredLanguage.String(),
		nullTime(s.LastUpdated),
		s.LastSubmissionDate,
		now,
		s.ID,
	}
}

func scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var handle, language string
	var lastUpdated *time.Time

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Email,
		&s.Phone,
		&handle,
		&s.CurrentRating,
		&s.MaxRating,
		&s.TotalContests,
		&s.SolvedProblems,
		&language,
		&lastUpdated,
		&s.LastSubmissionDate,
		&s.EmailReminders,
		&s.EmailRemindersEnabled,
		&s.JoinedOn,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, student.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	s.CodeforcesHandle = student.Handle(handle)
	s.PreferredLanguage = student.Language(language)
	if lastUpdated != nil {
		s.LastUpdated = *lastUpdated
	}

	return &s, nil
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
