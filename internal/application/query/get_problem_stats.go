package query

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
	"github.com/tle-eliminators/cf-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROBLEM STATS QUERY
// Статистика решённых задач за период: количество, самая сложная задача,
// средний рейтинг, задач в день и распределение по рейтингу.
// ══════════════════════════════════════════════════════════════════════════════

// BucketWidth - ширина корзины рейтинга.
const BucketWidth = 200

// UnratedBucket - корзина для задач без рейтинга.
const UnratedBucket = "unrated"

// GetProblemStatsQuery содержит параметры запроса.
type GetProblemStatsQuery struct {
	StudentID string
	Days      int
}

// ProblemDTO - решённая задача для API.
type ProblemDTO struct {
	ProblemID  string    `json:"problemId"`
	ContestID  int       `json:"contestId"`
	Index      string    `json:"index"`
	Name       string    `json:"name"`
	Rating     int       `json:"rating"`
	Tags       []string  `json:"tags"`
	SolvedDate time.Time `json:"solvedDate"`
	Language   string    `json:"language"`
}

// ProblemStatsDTO - результат запроса.
type ProblemStatsDTO struct {
	StudentID     string         `json:"studentId"`
	Days          int            `json:"days"`
	TotalProblems int            `json:"totalProblems"`
	MostDifficult *ProblemDTO    `json:"mostDifficultProblem"`
	AverageRating float64        `json:"avgRating"`
	AveragePerDay float64        `json:"avgProblemsPerDay"`
	RatingBuckets map[string]int `json:"ratingBuckets"`
	Problems      []ProblemDTO   `json:"problems"`
}

// GetProblemStatsHandler обрабатывает запрос статистики задач.
type GetProblemStatsHandler struct {
	students student.Repository
	problems student.ProblemRepository
	now      func() time.Time
}

// NewGetProblemStatsHandler создаёт новый handler.
func NewGetProblemStatsHandler(students student.Repository, problems student.ProblemRepository) *GetProblemStatsHandler {
	return &GetProblemStatsHandler{students: students, problems: problems, now: time.Now}
}

// Handle выполняет запрос.
func (h *GetProblemStatsHandler) Handle(ctx context.Context, q GetProblemStatsQuery) (*ProblemStatsDTO, error) {
	days := normalizeDays(q.Days)

	if _, err := h.students.GetByID(ctx, q.StudentID); err != nil {
		return nil, err
	}

	since := timeutil.DaysAgo(h.now().UTC(), days)
	records, err := h.problems.ListSince(ctx, q.StudentID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list problems: %w", err)
	}

	stats := &ProblemStatsDTO{
		StudentID:     q.StudentID,
		Days:          days,
		TotalProblems: len(records),
		RatingBuckets: make(map[string]int),
		Problems:      make([]ProblemDTO, 0, len(records)),
	}

	sum := 0
	for i, r := range records {
		dto := toProblemDTO(r)
		stats.Problems = append(stats.Problems, dto)
		sum += r.Rating
		stats.RatingBuckets[RatingBucket(r.Rating)]++

		// При равенстве рейтинга побеждает более поздняя запись списка.
		if stats.MostDifficult == nil || r.Rating >= stats.MostDifficult.Rating {
			stats.MostDifficult = &stats.Problems[i]
		}
	}

	if len(records) > 0 {
		stats.AverageRating = float64(sum) / float64(len(records))
	}
	stats.AveragePerDay = float64(len(records)) / float64(days)

	return stats, nil
}

// RatingBucket возвращает ключ корзины: нижняя граница кратная 200
// или "unrated" для задач без рейтинга.
func RatingBucket(rating int) string {
	if rating <= 0 {
		return UnratedBucket
	}
	return strconv.Itoa(rating / BucketWidth * BucketWidth)
}

func toProblemDTO(r *student.ProblemRecord) ProblemDTO {
	tags := r.Tags.Strings()
	if tags == nil {
		tags = []string{}
	}
	return ProblemDTO{
		ProblemID:  r.ProblemID.String(),
		ContestID:  r.ContestID,
		Index:      r.Index,
		Name:       r.Name,
		Rating:     r.Rating,
		Tags:       tags,
		SolvedDate: r.SolvedDate,
		Language:   r.Language,
	}
}
