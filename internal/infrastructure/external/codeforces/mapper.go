package codeforces

import (
	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
	"github.com/tle-eliminators/cf-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to domain transformations
// ══════════════════════════════════════════════════════════════════════════════

// ProfileFromDTO converts a user.info element.
func ProfileFromDTO(dto UserDTO) student.Profile {
	return student.Profile{
		Handle:    student.Handle(dto.Handle),
		Rating:    dto.Rating,
		MaxRating: dto.MaxRating,
		Rank:      dto.Rank,
		MaxRank:   dto.MaxRank,
	}
}

// RatingChangesFromDTO converts user.rating results, keeping order.
func RatingChangesFromDTO(dtos []RatingChangeDTO) []student.RatingChange {
	out := make([]student.RatingChange, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, student.RatingChange{
			ContestID:   dto.ContestID,
			ContestName: dto.ContestName,
			Rank:        dto.Rank,
			OldRating:   dto.OldRating,
			NewRating:   dto.NewRating,
			UpdatedAt:   timeutil.FromUnix(dto.RatingUpdateTimeSeconds),
		})
	}
	return out
}

// SubmissionsFromDTO converts user.status results, keeping the newest-first order.
func SubmissionsFromDTO(dtos []SubmissionDTO) []student.Submission {
	out := make([]student.Submission, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, SubmissionFromDTO(dto))
	}
	return out
}

// SubmissionFromDTO converts a single submission. A problem without a
// contestId (gym or acmsguru) falls back to the submission's contestId.
func SubmissionFromDTO(dto SubmissionDTO) student.Submission {
	contestID := dto.Problem.ContestID
	if contestID == 0 {
		contestID = dto.ContestID
	}

	rating := 0
	if dto.Problem.Rating != nil {
		rating = *dto.Problem.Rating
	}

	return student.Submission{
		ID:        dto.ID,
		CreatedAt: timeutil.FromUnix(dto.CreationTimeSeconds),
		Problem: student.ProblemRef{
			ContestID: contestID,
			Index:     dto.Problem.Index,
			Name:      dto.Problem.Name,
			Rating:    rating,
			Tags:      student.NewTagSet(dto.Problem.Tags...),
		},
		Language: dto.ProgrammingLanguage,
		Verdict:  dto.Verdict,
	}
}
