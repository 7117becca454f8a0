// Package student содержит доменную модель студента, отслеживаемого через Codeforces.
//
// Пакет определяет:
//
//   - Сущности (Entities): Student, ContestRecord, ProblemRecord
//   - Value Objects: Handle, Language, TagSet, ProblemID
//   - Снимок удалённого аккаунта: Account, Profile, RatingChange, Submission
//   - Интерфейсы репозиториев: Repository, ContestRepository, ProblemRepository
//
// # Архитектурные принципы
//
//  1. Нет внешних зависимостей, кроме стандартной библиотеки и пакета shared
//  2. Dependency Inversion: интерфейсы определяются здесь, реализации в infrastructure
//  3. Записи контестов и задач создаются при первом появлении и дальше только обновляются
//
// # Идентичность
//
// Поля ID, Name, Email, Phone и CodeforcesHandle принадлежат сервису управления
// студентами. Синхронизация их никогда не меняет:
//
//	st := NewStudent(NewStudentParams{
//	    ID:     uuid.New().String(),
//	    Name:   "Alice",
//	    Email:  "alice@example.com",
//	    Handle: Handle("tourist"),
//	})
//
// # Агрегаты
//
// CurrentRating, MaxRating, TotalContests, SolvedProblems, PreferredLanguage и
// LastSubmissionDate пересчитываются из полного снимка аккаунта на каждом цикле.
// EmailReminders только растёт: ровно на единицу за цикл с успешной отправкой.
package student
