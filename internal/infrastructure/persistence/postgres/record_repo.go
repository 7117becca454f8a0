package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEST RECORD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ContestRepository implements student.ContestRepository for PostgreSQL.
type ContestRepository struct {
	db Querier
}

// NewContestRepository creates a new ContestRepository.
func NewContestRepository(db Querier) *ContestRepository {
	return &ContestRepository{db: db}
}

const contestColumns = `
	id, student_id, contest_id, name, date, rank,
	old_rating, new_rating, rating_change, unsolved_count, created_at, updated_at`

// FindByKey returns the record for (student, contest) or nil.
func (r *ContestRepository) FindByKey(ctx context.Context, key student.ContestKey) (*student.ContestRecord, error) {
	query := `SELECT ` + contestColumns + ` FROM contest_records WHERE student_id = $1 AND contest_id = $2`

	rec, err := scanContest(r.db.QueryRow(ctx, query, key.StudentID, key.ContestID))
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contest record: %w", err)
	}
	return rec, nil
}

// Create inserts a new contest record.
func (r *ContestRepository) Create(ctx context.Context, rec *student.ContestRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	query := `INSERT INTO contest_records (` + contestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.StudentID, rec.ContestID, rec.Name, rec.Date, rec.Rank,
		rec.OldRating, rec.NewRating, rec.RatingChange, rec.UnsolvedCount,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contest record: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of an existing record.
func (r *ContestRepository) Update(ctx context.Context, rec *student.ContestRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE contest_records SET
			name = $1, date = $2, rank = $3, old_rating = $4, new_rating = $5,
			rating_change = $6, unsolved_count = $7, updated_at = $8
		WHERE student_id = $9 AND contest_id = $10
	`

	_, err := r.db.Exec(ctx, query,
		rec.Name, rec.Date, rec.Rank, rec.OldRating, rec.NewRating,
		rec.RatingChange, rec.UnsolvedCount, rec.UpdatedAt,
		rec.StudentID, rec.ContestID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contest record: %w", err)
	}
	return nil
}

// ListSince returns the student's contests dated at or after since, newest first.
func (r *ContestRepository) ListSince(ctx context.Context, studentID string, since time.Time) ([]*student.ContestRecord, error) {
	query := `SELECT ` + contestColumns + ` FROM contest_records
		WHERE student_id = $1 AND date >= $2
		ORDER BY date DESC`

	rows, err := r.db.Query(ctx, query, studentID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list contest records: %w", err)
	}
	defer rows.Close()

	var out []*student.ContestRecord
	for rows.Next() {
		rec, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contest record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanContest(row pgx.Row) (*student.ContestRecord, error) {
	var rec student.ContestRecord
	err := row.Scan(
		&rec.ID, &rec.StudentID, &rec.ContestID, &rec.Name, &rec.Date, &rec.Rank,
		&rec.OldRating, &rec.NewRating, &rec.RatingChange, &rec.UnsolvedCount,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROBLEM RECORD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProblemRepository implements student.ProblemRepository for PostgreSQL.
type ProblemRepository struct {
	db Querier
}

// NewProblemRepository creates a new ProblemRepository.
func NewProblemRepository(db Querier) *ProblemRepository {
	return &ProblemRepository{db: db}
}

const problemColumns = `
	id, student_id, problem_id, contest_id, problem_index, name, rating, tags,
	solved_date, submission_id, language, created_at, updated_at`

// FindByKey returns the record for (student, problem) or nil.
func (r *ProblemRepository) FindByKey(ctx context.Context, key student.ProblemKey) (*student.ProblemRecord, error) {
	query := `SELECT ` + problemColumns + ` FROM problem_records WHERE student_id = $1 AND problem_id = $2`

	rec, err := scanProblem(r.db.QueryRow(ctx, query, key.StudentID, key.ProblemID.String()))
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find problem record: %w", err)
	}
	return rec, nil
}

// Create inserts a new problem record.
func (r *ProblemRepository) Create(ctx context.Context, rec *student.ProblemRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	query := `INSERT INTO problem_records (` + problemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query, problemInsertArgs(rec)...)
	if err != nil {
		return fmt.Errorf("failed to create problem record: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of an existing record.
func (r *ProblemRepository) Update(ctx context.Context, rec *student.ProblemRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE problem_records SET
			contest_id = $1, problem_index = $2, name = $3, rating = $4, tags = $5,
			solved_date = $6, submission_id = $7, language = $8, updated_at = $9
		WHERE student_id = $10 AND problem_id = $11
	`

	_, err := r.db.Exec(ctx, query, problemUpdateArgs(rec)...)
	if err != nil {
		return fmt.Errorf("failed to update problem record: %w", err)
	}
	return nil
}

// problemInsertArgs follows problemColumns order.
func problemInsertArgs(rec *student.ProblemRecord) []any {
	return []any{
		rec.ID, rec.StudentID, rec.ProblemID.String(), rec.ContestID, rec.Index, rec.Name,
		rec.Rating, rec.Tags.Strings(), rec.SolvedDate, rec.SubmissionID, rec.Language,
		rec.CreatedAt, rec.UpdatedAt,
	}
}

func problemUpdateArgs(rec *student.ProblemRecord) []any {
	return []any{
		rec.ContestID, rec.Index, rec.Name, rec.Rating, rec.Tags.Strings(),
		rec.SolvedDate, rec.SubmissionID, rec.Language, rec.UpdatedAt,
		rec.StudentID, rec.ProblemID.String(),
	}
}

// ListSince returns problems solved at or after since, newest first.
func (r *ProblemRepository) ListSince(ctx context.Context, studentID string, since time.Time) ([]*student.ProblemRecord, error) {
	query := `SELECT ` + problemColumns + ` FROM problem_records
		WHERE student_id = $1 AND solved_date >= $2
		ORDER BY solved_date DESC`

	rows, err := r.db.Query(ctx, query, studentID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list problem records: %w", err)
	}
	defer rows.Close()

	var out []*student.ProblemRecord
	for rows.Next() {
		rec, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan problem record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanProblem(row pgx.Row) (*student.ProblemRecord, error) {
	var rec student.ProblemRecord
	var problemID string
	var tags []string

	err := row.Scan(
		&rec.ID, &rec.StudentID, &problemID, &rec.ContestID, &rec.Index, &rec.Name,
		&rec.Rating, &tags, &rec.SolvedDate, &rec.SubmissionID, &rec.Language,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.ProblemID = student.ProblemID(problemID)
	rec.Tags = student.NewTagSet(tags...)
	return &rec, nil
}
