package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/tle-eliminators/cf-tracker/internal/domain/shared"
	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE STUDENT
// Merges a freshly fetched Codeforces account into the stored records and
// recomputes the student's aggregates. Running it twice with the same account
// leaves storage unchanged apart from the lastUpdated stamp.
// ══════════════════════════════════════════════════════════════════════════════

// AccountFetcher loads the full remote snapshot of a handle.
type AccountFetcher interface {
	FetchAccount(ctx context.Context, handle student.Handle) (*student.Account, error)
}

// ReconcileResult summarises what a reconciliation changed.
type ReconcileResult struct {
	StudentID         string           `json:"studentId"`
	ContestsCreated   int              `json:"contestsCreated"`
	ContestsUpdated   int              `json:"contestsUpdated"`
	ProblemsCreated   int              `json:"problemsCreated"`
	ProblemsUpdated   int              `json:"problemsUpdated"`
	SolvedProblems    int              `json:"solvedProblems"`
	TotalContests     int              `json:"totalContests"`
	PreferredLanguage student.Language `json:"preferredLanguage"`
	SyncedAt          time.Time        `json:"syncedAt"`
}

// Reconciler applies a fetched account to storage.
type Reconciler struct {
	students student.Repository
	contests student.ContestRepository
	problems student.ProblemRepository
	now      func() time.Time
	logger   *slog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerClock overrides the time source.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	students student.Repository,
	contests student.ContestRepository,
	problems student.ProblemRepository,
	opts ...ReconcilerOption,
) *Reconciler {
	r := &Reconciler{
		students: students,
		contests: contests,
		problems: problems,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile merges acct into storage and saves st once at the end.
// st is only modified when the final save succeeds. Record upserts that
// completed before a failure stay committed.
func (r *Reconciler) Reconcile(ctx context.Context, st *student.Student, acct *student.Account) (*ReconcileResult, error) {
	next := st.Clone()
	now := r.now().UTC()
	result := &ReconcileResult{StudentID: st.ID, SyncedAt: now}

	// Profile.
	next.CurrentRating = acct.Profile.Rating
	next.MaxRating = acct.Profile.MaxRating
	next.LastUpdated = now

	// Contests.
	for _, change := range acct.Contests {
		fresh := contestRecordFrom(st.ID, change)
		outcome, err := Upsert[student.ContestKey, student.ContestRecord](ctx, r.contests, fresh.Key(), fresh, mergeContest)
		if err != nil {
			return nil, persistenceError("UpsertContest", err)
		}
		countOutcome(outcome, &result.ContestsCreated, &result.ContestsUpdated)
	}
	if len(acct.Contests) < st.TotalContests {
		r.logger.Warn("contest count decreased",
			"student_id", st.ID,
			"handle", st.CodeforcesHandle,
			"old", st.TotalContests,
			"new", len(acct.Contests),
		)
	}
	next.TotalContests = len(acct.Contests)

	// Accepted submissions, deduplicated by problem. The list is newest
	// first, so the first occurrence is the most recent accepted solve.
	seen := make(map[student.ProblemID]struct{})
	tally := student.NewLanguageTally()
	for _, sub := range acct.Submissions {
		if !sub.Accepted() {
			continue
		}
		tally.Add(student.ParseLanguage(sub.Language))

		pid := sub.Problem.ID()
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}

		fresh := problemRecordFrom(st.ID, sub)
		outcome, err := Upsert[student.ProblemKey, student.ProblemRecord](ctx, r.problems, fresh.Key(), fresh, mergeProblem)
		if err != nil {
			return nil, persistenceError("UpsertProblem", err)
		}
		countOutcome(outcome, &result.ProblemsCreated, &result.ProblemsUpdated)
	}

	if lang, ok := tally.Most(); ok {
		next.PreferredLanguage = lang
	}
	if len(seen) < st.SolvedProblems {
		r.logger.Warn("solved problem count decreased",
			"student_id", st.ID,
			"handle", st.CodeforcesHandle,
			"old", st.SolvedProblems,
			"new", len(seen),
		)
	}
	next.SolvedProblems = len(seen)

	// Latest submission of any verdict.
	if len(acct.Submissions) > 0 {
		latest := acct.Submissions[0].CreatedAt
		next.LastSubmissionDate = &latest
	}

	if err := r.students.Update(ctx, next); err != nil {
		return nil, persistenceError("SaveStudent", err)
	}
	*st = *next

	result.SolvedProblems = next.SolvedProblems
	result.TotalContests = next.TotalContests
	result.PreferredLanguage = next.PreferredLanguage
	return result, nil
}

func contestRecordFrom(studentID string, c student.RatingChange) *student.ContestRecord {
	return &student.ContestRecord{
		StudentID:    studentID,
		ContestID:    c.ContestID,
		Name:         c.ContestName,
		Date:         c.UpdatedAt,
		Rank:         c.Rank,
		OldRating:    c.OldRating,
		NewRating:    c.NewRating,
		RatingChange: c.NewRating - c.OldRating,
	}
}

// mergeContest copies remote fields. UnsolvedCount is owned locally.
func mergeContest(stored, fresh *student.ContestRecord) {
	stored.Name = fresh.Name
	stored.Date = fresh.Date
	stored.Rank = fresh.Rank
	stored.OldRating = fresh.OldRating
	stored.NewRating = fresh.NewRating
	stored.RatingChange = fresh.RatingChange
}

func problemRecordFrom(studentID string, s student.Submission) *student.ProblemRecord {
	return &student.ProblemRecord{
		StudentID:    studentID,
		ProblemID:    s.Problem.ID(),
		ContestID:    s.Problem.ContestID,
		Index:        s.Problem.Index,
		Name:         s.Problem.Name,
		Rating:       s.Problem.Rating,
		Tags:         s.Problem.Tags,
		SolvedDate:   s.CreatedAt,
		SubmissionID: s.ID,
		Language:     s.Language,
	}
}

func mergeProblem(stored, fresh *student.ProblemRecord) {
	stored.ContestID = fresh.ContestID
	stored.Index = fresh.Index
	stored.Name = fresh.Name
	stored.Rating = fresh.Rating
	stored.Tags = fresh.Tags
	stored.SolvedDate = fresh.SolvedDate
	stored.SubmissionID = fresh.SubmissionID
	stored.Language = fresh.Language
}

func countOutcome(o UpsertOutcome, created, updated *int) {
	switch o {
	case UpsertCreated:
		*created++
	case UpsertUpdated:
		*updated++
	}
}

func persistenceError(op string, err error) error {
	return shared.WrapError("student", op, shared.ErrPersistence, "failed to persist sync result", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNC STUDENT (on demand)
// ══════════════════════════════════════════════════════════════════════════════

// SyncStudentHandler fetches and reconciles a single student outside the
// scheduled cycle. It does not evaluate inactivity.
type SyncStudentHandler struct {
	students   student.Repository
	fetcher    AccountFetcher
	reconciler *Reconciler
}

// NewSyncStudentHandler creates a new SyncStudentHandler.
func NewSyncStudentHandler(students student.Repository, fetcher AccountFetcher, reconciler *Reconciler) *SyncStudentHandler {
	return &SyncStudentHandler{students: students, fetcher: fetcher, reconciler: reconciler}
}

// Handle syncs the student with the given ID and returns the updated entity.
func (h *SyncStudentHandler) Handle(ctx context.Context, studentID string) (*student.Student, *ReconcileResult, error) {
	st, err := h.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}

	acct, err := h.fetcher.FetchAccount(ctx, st.CodeforcesHandle)
	if err != nil {
		return nil, nil, err
	}

	result, err := h.reconciler.Reconcile(ctx, st, acct)
	if err != nil {
		return nil, nil, err
	}
	return st, result, nil
}
