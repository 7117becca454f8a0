// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
	"github.com/tle-eliminators/cf-tracker/pkg/timeutil"
)

// DefaultPeriodDays - период по умолчанию для запросов истории.
const DefaultPeriodDays = 30

// normalizeDays заменяет непозитивный период значением по умолчанию.
func normalizeDays(days int) int {
	if days <= 0 {
		return DefaultPeriodDays
	}
	return days
}

// ══════════════════════════════════════════════════════════════════════════════
// GET CONTEST HISTORY QUERY
// Возвращает участия студента в контестах за последние N дней,
// от новых к старым.
// ══════════════════════════════════════════════════════════════════════════════

// GetContestHistoryQuery содержит параметры запроса.
type GetContestHistoryQuery struct {
	// StudentID - внутренний ID студента.
	StudentID string

	// Days - глубина периода в днях (по умолчанию 30).
	Days int
}

// ContestDTO - запись контеста для API.
type ContestDTO struct {
	ContestID     int       `json:"contestId"`
	Name          string    `json:"contestName"`
	Date          time.Time `json:"date"`
	Rank          int       `json:"rank"`
	OldRating     int       `json:"oldRating"`
	NewRating     int       `json:"newRating"`
	RatingChange  int       `json:"ratingChange"`
	UnsolvedCount int       `json:"unsolvedProblems"`
}

// ContestHistoryDTO - результат запроса.
type ContestHistoryDTO struct {
	StudentID string       `json:"studentId"`
	Days      int          `json:"days"`
	Count     int          `json:"count"`
	Contests  []ContestDTO `json:"contests"`
}

// GetContestHistoryHandler обрабатывает запрос истории контестов.
type GetContestHistoryHandler struct {
	students student.Repository
	contests student.ContestRepository
	now      func() time.Time
}

// NewGetContestHistoryHandler создаёт новый handler.
func NewGetContestHistoryHandler(students student.Repository, contests student.ContestRepository) *GetContestHistoryHandler {
	return &GetContestHistoryHandler{students: students, contests: contests, now: time.Now}
}

// Handle выполняет запрос. Возвращает ErrStudentNotFound для неизвестного студента.
func (h *GetContestHistoryHandler) Handle(ctx context.Context, q GetContestHistoryQuery) (*ContestHistoryDTO, error) {
	days := normalizeDays(q.Days)

	if _, err := h.students.GetByID(ctx, q.StudentID); err != nil {
		return nil, err
	}

	since := timeutil.DaysAgo(h.now().UTC(), days)
	records, err := h.contests.ListSince(ctx, q.StudentID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}

	out := make([]ContestDTO, 0, len(records))
	for _, r := range records {
		out = append(out, ContestDTO{
			ContestID:     r.ContestID,
			Name:          r.Name,
			Date:          r.Date,
			Rank:          r.Rank,
			OldRating:     r.OldRating,
			NewRating:     r.NewRating,
			RatingChange:  r.RatingChange,
			UnsolvedCount: r.UnsolvedCount,
		})
	}

	return &ContestHistoryDTO{
		StudentID: q.StudentID,
		Days:      days,
		Count:     len(out),
		Contests:  out,
	}, nil
}
