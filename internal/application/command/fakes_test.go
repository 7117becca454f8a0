package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tle-eliminators/cf-tracker/internal/domain/settings"
	"github.com/tle-eliminators/cf-tracker/internal/domain/student"
)

var errStorageDown = errors.New("storage down")

type memStudents struct {
	mu        sync.Mutex
	byID      map[string]*student.Student
	updates   int
	updateErr error
}

func newMemStudents(list ...*student.Student) *memStudents {
	m := &memStudents{byID: make(map[string]*student.Student)}
	for _, st := range list {
		m.byID[st.ID] = st.Clone()
	}
	return m
}

func (m *memStudents) Create(_ context.Context, st *student.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[st.ID] = st.Clone()
	return nil
}

func (m *memStudents) GetByID(_ context.Context, id string) (*student.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.byID[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return st.Clone(), nil
}

func (m *memStudents) List(_ context.Context) ([]*student.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*student.Student, 0, len(m.byID))
	for _, st := range m.byID {
		out = append(out, st.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStudents) Update(_ context.Context, st *student.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.byID[st.ID]
	if !ok {
		return student.ErrStudentNotFound
	}
	m.updates++
	next := st.Clone()
	next.EmailReminders = stored.EmailReminders
	next.EmailRemindersEnabled = stored.EmailRemindersEnabled
	m.byID[st.ID] = next
	return nil
}

func (m *memStudents) IncrementReminders(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return 0, m.updateErr
	}
	stored, ok := m.byID[id]
	if !ok {
		return 0, student.ErrStudentNotFound
	}
	stored.EmailReminders++
	return stored.EmailReminders, nil
}

func (m *memStudents) get(id string) *student.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].Clone()
}

type memContests struct {
	mu      sync.Mutex
	records map[student.ContestKey]*student.ContestRecord
	seq     int
}

func newMemContests() *memContests {
	return &memContests{records: make(map[student.ContestKey]*student.ContestRecord)}
}

func (m *memContests) FindByKey(_ context.Context, key student.ContestKey) (*student.ContestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

func (m *memContests) Create(_ context.Context, rec *student.ContestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c := *rec
	c.ID = fmt.Sprintf("contest-%d", m.seq)
	m.records[rec.Key()] = &c
	return nil
}

func (m *memContests) Update(_ context.Context, rec *student.ContestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *rec
	m.records[rec.Key()] = &c
	return nil
}

func (m *memContests) ListSince(_ context.Context, studentID string, since time.Time) ([]*student.ContestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*student.ContestRecord
	for _, rec := range m.records {
		if rec.StudentID == studentID && !rec.Date.Before(since) {
			c := *rec
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *memContests) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memProblems struct {
	mu        sync.Mutex
	records   map[student.ProblemKey]*student.ProblemRecord
	createErr error
}

func newMemProblems() *memProblems {
	return &memProblems{records: make(map[student.ProblemKey]*student.ProblemRecord)}
}

func (m *memProblems) FindByKey(_ context.Context, key student.ProblemKey) (*student.ProblemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

func (m *memProblems) Create(_ context.Context, rec *student.ProblemRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	c := *rec
	m.records[rec.Key()] = &c
	return nil
}

func (m *memProblems) Update(_ context.Context, rec *student.ProblemRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *rec
	m.records[rec.Key()] = &c
	return nil
}

func (m *memProblems) ListSince(_ context.Context, studentID string, since time.Time) ([]*student.ProblemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*student.ProblemRecord
	for _, rec := range m.records {
		if rec.StudentID == studentID && !rec.SolvedDate.Before(since) {
			c := *rec
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SolvedDate.After(out[j].SolvedDate) })
	return out, nil
}

func (m *memProblems) get(studentID string, id student.ProblemID) *student.ProblemRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[student.ProblemKey{StudentID: studentID, ProblemID: id}]
	if !ok {
		return nil
	}
	c := *rec
	return &c
}

func (m *memProblems) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type fakeNotifier struct {
	mu     sync.Mutex
	result bool
	calls  int
}

func (f *fakeNotifier) Send(context.Context, *student.Student) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result
}

type fakeFetcher struct {
	accounts map[student.Handle]*student.Account
	err      error

	// during runs inside FetchAccount, between the read and the save of a sync.
	during func()
}

func (f *fakeFetcher) FetchAccount(_ context.Context, handle student.Handle) (*student.Account, error) {
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	acct, ok := f.accounts[handle]
	if !ok {
		return nil, errors.New("unknown handle")
	}
	return acct, nil
}

type memSettings struct {
	values map[string]*settings.Setting
}

func (m *memSettings) Get(ctx context.Context, key, def string) (string, error) {
	st, err := m.Find(ctx, key)
	if err != nil {
		return def, nil
	}
	return st.Value, nil
}

func (m *memSettings) Set(_ context.Context, key, value, description, actor string) (*settings.Setting, error) {
	st, err := settings.New(key, value, description, actor, time.Now())
	if err != nil {
		return nil, err
	}
	m.values[st.Key] = st
	return st, nil
}

func (m *memSettings) Find(_ context.Context, key string) (*settings.Setting, error) {
	st, ok := m.values[key]
	if !ok {
		return nil, settings.ErrNotFound
	}
	return st, nil
}

func (m *memSettings) List(context.Context) ([]*settings.Setting, error) {
	out := make([]*settings.Setting, 0, len(m.values))
	for _, st := range m.values {
		out = append(out, st)
	}
	return out, nil
}

type fakeRescheduler struct {
	invalid     bool
	rescheduled []string
}

func (f *fakeRescheduler) Validate(string) error {
	if f.invalid {
		return errors.New("bad expression")
	}
	return nil
}

func (f *fakeRescheduler) Reschedule(expr string) error {
	f.rescheduled = append(f.rescheduled, expr)
	return nil
}

func newTestStudent(id string, handle student.Handle) *student.Student {
	st, err := student.NewStudent(student.NewStudentParams{
		ID:     id,
		Name:   "Student " + id,
		Email:  id + "@example.com",
		Handle: handle,
	})
	if err != nil {
		panic(err)
	}
	return st
}
