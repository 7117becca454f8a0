package student

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции со студентами, нужные синхронизации.
type Repository interface {
	// Create создаёт нового студента.
	Create(ctx context.Context, student *Student) error

	// GetByID возвращает студента по внутреннему ID.
	// Возвращает ErrStudentNotFound, если студент не найден.
	GetByID(ctx context.Context, id string) (*Student, error)

	// List возвращает всех студентов. Используется как снимок в начале цикла.
	List(ctx context.Context) ([]*Student, error)

	// Update сохраняет агрегаты синхронизации (рейтинг, счётчики, язык, даты).
	// Счётчик напоминаний и флаг подписки не перезаписываются.
	// Возвращает ErrStudentNotFound, если студент не найден.
	Update(ctx context.Context, student *Student) error

	// IncrementReminders атомарно увеличивает счётчик напоминаний на единицу
	// и возвращает новое значение. Счётчик только растёт, даже если
	// параллельно идёт синхронизация того же студента.
	IncrementReminders(ctx context.Context, id string) (int, error)
}

// ContestRepository хранит записи участия в контестах.
type ContestRepository interface {
	// FindByKey возвращает запись или (nil, nil), если её нет.
	FindByKey(ctx context.Context, key ContestKey) (*ContestRecord, error)

	// Create вставляет новую запись.
	Create(ctx context.Context, record *ContestRecord) error

	// Update перезаписывает существующую запись.
	Update(ctx context.Context, record *ContestRecord) error

	// ListSince возвращает записи студента с Date >= since, от новых к старым.
	ListSince(ctx context.Context, studentID string, since time.Time) ([]*ContestRecord, error)
}

// ProblemRepository хранит принятые задачи.
type ProblemRepository interface {
	// FindByKey возвращает запись или (nil, nil), если её нет.
	FindByKey(ctx context.Context, key ProblemKey) (*ProblemRecord, error)

	// Create вставляет новую запись.
	Create(ctx context.Context, record *ProblemRecord) error

	// Update перезаписывает существующую запись.
	Update(ctx context.Context, record *ProblemRecord) error

	// ListSince возвращает записи студента с SolvedDate >= since, от новых к старым.
	ListSince(ctx context.Context, studentID string, since time.Time) ([]*ProblemRecord, error)
}
