package query

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tle-eliminators/cf-tracker/internal/domain/shared"
	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type stubStudents struct {
	student.Repository
	ids map[string]bool
}

func (s stubStudents) GetByID(_ context.Context, id string) (*student.Student, error) {
	if !s.ids[id] {
		return nil, student.ErrStudentNotFound
	}
	return &student.Student{ID: id}, nil
}

type stubContests struct {
	student.ContestRepository
	records []*student.ContestRecord
}

func (s stubContests) ListSince(_ context.Context, studentID string, since time.Time) ([]*student.ContestRecord, error) {
	var out []*student.ContestRecord
	for _, r := range s.records {
		if r.StudentID == studentID && !r.Date.Before(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

type stubProblems struct {
	student.ProblemRepository
	records []*student.ProblemRecord
}

func (s stubProblems) ListSince(_ context.Context, studentID string, since time.Time) ([]*student.ProblemRecord, error) {
	var out []*student.ProblemRecord
	for _, r := range s.records {
		if r.StudentID == studentID && !r.SolvedDate.Before(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SolvedDate.After(out[j].SolvedDate) })
	return out, nil
}

func daysAgo(n int) time.Time {
	return now.Add(-time.Duration(n) * 24 * time.Hour)
}

func TestGetContestHistory(t *testing.T) {
	contests := stubContests{records: []*student.ContestRecord{
		{StudentID: "s1", ContestID: 1, Name: "old", Date: daysAgo(40)},
		{StudentID: "s1", ContestID: 2, Name: "mid", Date: daysAgo(10), OldRating: 1500, NewRating: 1450, RatingChange: -50},
		{StudentID: "s1", ContestID: 3, Name: "new", Date: daysAgo(1)},
		{StudentID: "s2", ContestID: 3, Name: "other", Date: daysAgo(1)},
	}}
	h := NewGetContestHistoryHandler(stubStudents{ids: map[string]bool{"s1": true}}, contests)
	h.now = func() time.Time { return now }

	got, err := h.Handle(context.Background(), GetContestHistoryQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPeriodDays, got.Days)
	require.Equal(t, 2, got.Count)
	assert.Equal(t, "new", got.Contests[0].Name)
	assert.Equal(t, -50, got.Contests[1].RatingChange)

	got, err = h.Handle(context.Background(), GetContestHistoryQuery{StudentID: "s1", Days: 90})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count)

	_, err = h.Handle(context.Background(), GetContestHistoryQuery{StudentID: "nope"})
	assert.True(t, shared.IsNotFound(err))
}

func TestGetProblemStats(t *testing.T) {
	problems := stubProblems{records: []*student.ProblemRecord{
		{StudentID: "s1", ProblemID: "1-A", Name: "A", Rating: 800, SolvedDate: daysAgo(1)},
		{StudentID: "s1", ProblemID: "1-B", Name: "B", Rating: 1450, SolvedDate: daysAgo(2)},
		{StudentID: "s1", ProblemID: "2-C", Name: "C", Rating: 1450, SolvedDate: daysAgo(3)},
		{StudentID: "s1", ProblemID: "3-D", Name: "D", Rating: 0, SolvedDate: daysAgo(4)},
		{StudentID: "s1", ProblemID: "9-Z", Name: "Z", Rating: 3000, SolvedDate: daysAgo(60)},
	}}
	h := NewGetProblemStatsHandler(stubStudents{ids: map[string]bool{"s1": true}}, problems)
	h.now = func() time.Time { return now }

	got, err := h.Handle(context.Background(), GetProblemStatsQuery{StudentID: "s1", Days: 10})
	require.NoError(t, err)

	assert.Equal(t, 4, got.TotalProblems)
	assert.InDelta(t, 925.0, got.AverageRating, 0.001)
	assert.InDelta(t, 0.4, got.AveragePerDay, 0.001)
	assert.Equal(t, map[string]int{"800": 1, "1400": 2, "unrated": 1}, got.RatingBuckets)

	require.NotNil(t, got.MostDifficult)
	assert.Equal(t, "2-C", got.MostDifficult.ProblemID, "later record wins ties")
	assert.Equal(t, "1-A", got.Problems[0].ProblemID)
	assert.NotNil(t, got.Problems[0].Tags)
}

func TestGetProblemStats_Empty(t *testing.T) {
	h := NewGetProblemStatsHandler(stubStudents{ids: map[string]bool{"s1": true}}, stubProblems{})
	h.now = func() time.Time { return now }

	got, err := h.Handle(context.Background(), GetProblemStatsQuery{StudentID: "s1", Days: -3})
	require.NoError(t, err)
	assert.Equal(t, 30, got.Days)
	assert.Zero(t, got.TotalProblems)
	assert.Nil(t, got.MostDifficult)
	assert.Zero(t, got.AverageRating)
	assert.Empty(t, got.RatingBuckets)
}

func TestRatingBucket(t *testing.T) {
	assert.Equal(t, "unrated", RatingBucket(0))
	assert.Equal(t, "800", RatingBucket(800))
	assert.Equal(t, "800", RatingBucket(999))
	assert.Equal(t, "1000", RatingBucket(1000))
	assert.Equal(t, "3400", RatingBucket(3500))
}
