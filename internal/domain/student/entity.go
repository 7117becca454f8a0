package student

import (
	"fmt"
	"strings"
	"time"

	"github.com/tle-eliminators/cf-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Handle представляет логин студента на Codeforces.
type Handle string

// IsValid проверяет корректность хэндла Codeforces (3-24 символа без пробелов).
func (h Handle) IsValid() bool {
	s := string(h)
	return len(s) >= 3 && len(s) <= 24 && !strings.ContainsAny(s, " \t\n\r")
}

// String возвращает строковое представление хэндла.
func (h Handle) String() string {
	return string(h)
}

// ProblemID идентифицирует задачу как "<contestID>-<index>", например "1850-A".
type ProblemID string

// NewProblemID собирает идентификатор задачи.
func NewProblemID(contestID int, index string) ProblemID {
	return ProblemID(fmt.Sprintf("%d-%s", contestID, index))
}

// String возвращает строковое представление идентификатора.
func (p ProblemID) String() string {
	return string(p)
}

// ContestKey - естественный ключ записи контеста.
type ContestKey struct {
	StudentID string
	ContestID int
}

// ProblemKey - естественный ключ записи задачи.
type ProblemKey struct {
	StudentID string
	ProblemID ProblemID
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// DefaultPreferredLanguage используется, пока у студента нет принятых решений.
const DefaultPreferredLanguage Language = "C++"

// Student - центральная сущность системы.
type Student struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// Name, Email, Phone - контактные данные, управляются снаружи.
	Name  string
	Email string
	Phone string

	// CodeforcesHandle - логин на Codeforces. Синхронизация его не меняет.
	CodeforcesHandle Handle

	// CurrentRating и MaxRating - рейтинг из профиля Codeforces.
	CurrentRating int
	MaxRating     int

	// TotalContests - количество рейтинговых контестов в последнем снимке.
	TotalContests int

	// SolvedProblems - количество различных принятых задач в последнем снимке.
	SolvedProblems int

	// PreferredLanguage - самый частый язык среди принятых решений.
	PreferredLanguage Language

	// LastUpdated - время последней успешной синхронизации.
	LastUpdated time.Time

	// LastSubmissionDate - время самой свежей посылки с любым вердиктом.
	// nil, если посылок не было.
	LastSubmissionDate *time.Time

	// EmailReminders - сколько напоминаний о неактивности было отправлено.
	EmailReminders int

	// EmailRemindersEnabled - разрешены ли напоминания.
	EmailRemindersEnabled bool

	// JoinedOn - время добавления студента.
	JoinedOn time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStudentParams содержит параметры для создания нового студента.
type NewStudentParams struct {
	ID     string
	Name   string
	Email  string
	Phone  string
	Handle Handle
}

// NewStudent создаёт нового студента со значениями по умолчанию.
func NewStudent(params NewStudentParams) (*Student, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("student", "Create", shared.ErrInvalidInput, "student id is required")
	}
	if !params.Handle.IsValid() {
		return nil, shared.ErrInvalidHandle
	}

	now := time.Now().UTC()

	return &Student{
		ID:                    params.ID,
		Name:                  strings.TrimSpace(params.Name),
		Email:                 strings.TrimSpace(params.Email),
		Phone:                 strings.TrimSpace(params.Phone),
		CodeforcesHandle:      params.Handle,
		PreferredLanguage:     DefaultPreferredLanguage,
		EmailRemindersEnabled: true,
		JoinedOn:              now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// Clone возвращает независимую копию студента.
func (s *Student) Clone() *Student {
	c := *s
	if s.LastSubmissionDate != nil {
		t := *s.LastSubmissionDate
		c.LastSubmissionDate = &t
	}
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEST & PROBLEM RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// ContestRecord - участие студента в одном рейтинговом контесте.
// Уникальна по (StudentID, ContestID).
type ContestRecord struct {
	ID           string
	StudentID    string
	ContestID    int
	Name         string
	Date         time.Time
	Rank         int
	OldRating    int
	NewRating    int
	RatingChange int

	// UnsolvedCount не приходит из user.rating, синхронизация его не трогает.
	UnsolvedCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key возвращает естественный ключ записи.
func (c *ContestRecord) Key() ContestKey {
	return ContestKey{StudentID: c.StudentID, ContestID: c.ContestID}
}

// ProblemRecord - принятая задача студента. Уникальна по (StudentID, ProblemID).
type ProblemRecord struct {
	ID           string
	StudentID    string
	ProblemID    ProblemID
	ContestID    int
	Index        string
	Name         string
	Rating       int // 0 - задача без рейтинга
	Tags         TagSet
	SolvedDate   time.Time
	SubmissionID int64
	Language     string // полная строка языка, как её вернул Codeforces

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key возвращает естественный ключ записи.
func (p *ProblemRecord) Key() ProblemKey {
	return ProblemKey{StudentID: p.StudentID, ProblemID: p.ProblemID}
}

// ErrStudentNotFound - студент не найден.
var ErrStudentNotFound = shared.ErrStudentNotFound
