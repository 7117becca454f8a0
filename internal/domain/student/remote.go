package student

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// REMOTE ACCOUNT SNAPSHOT
// Доменное представление ответа Codeforces API. Конвертация из DTO
// находится в infrastructure/external/codeforces.
// ══════════════════════════════════════════════════════════════════════════════

// VerdictAccepted - вердикт принятого решения.
const VerdictAccepted = "OK"

// Profile - данные из user.info.
type Profile struct {
	Handle    Handle
	Rating    int
	MaxRating int
	Rank      string
	MaxRank   string
}

// RatingChange - одна запись из user.rating.
type RatingChange struct {
	ContestID   int
	ContestName string
	Rank        int
	OldRating   int
	NewRating   int
	UpdatedAt   time.Time
}

// ProblemRef описывает задачу внутри посылки.
type ProblemRef struct {
	ContestID int
	Index     string
	Name      string
	Rating    int
	Tags      TagSet
}

// ID возвращает идентификатор задачи.
func (p ProblemRef) ID() ProblemID {
	return NewProblemID(p.ContestID, p.Index)
}

// Submission - одна посылка из user.status.
type Submission struct {
	ID        int64
	CreatedAt time.Time
	Problem   ProblemRef
	Language  string
	Verdict   string
}

// Accepted сообщает, принято ли решение.
func (s Submission) Accepted() bool {
	return s.Verdict == VerdictAccepted
}

// Account - полный снимок аккаунта, полученный за один цикл.
// Submissions упорядочены от новых к старым.
type Account struct {
	Profile     Profile
	Contests    []RatingChange
	Submissions []Submission
}
