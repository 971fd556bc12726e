package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/m-sarabi/tutor-track/internal/model"
)

// Memory is an in-memory Store used by tests and local development. It
// mirrors Postgres semantics, keeps insertion order for listings, and
// journals every mutation so tests can assert operation ordering.
type Memory struct {
	mu       sync.Mutex
	notifier Notifier

	tutors     map[string]model.Tutor
	students   map[string]model.Student
	sessions   map[string]model.Session
	studentIDs []string
	sessionIDs []string

	journal []string

	// FailDeleteStudent forces the parent leg of the two-phase delete to
	// fail so tests can observe the partial-failure state.
	FailDeleteStudent error
}

func NewMemory(notifier Notifier) *Memory {
	return &Memory{
		notifier: notifier,
		tutors:   make(map[string]model.Tutor),
		students: make(map[string]model.Student),
		sessions: make(map[string]model.Session),
	}
}

func (m *Memory) notify(ctx context.Context, ev Event) {
	if m.notifier != nil {
		m.notifier.Notify(ctx, ev)
	}
}

func (m *Memory) record(op string) {
	m.journal = append(m.journal, op)
}

// Journal returns the ordered list of mutations performed so far.
func (m *Memory) Journal() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.journal))
	copy(out, m.journal)
	return out
}

// Tutors

func (m *Memory) CreateTutor(_ context.Context, tutor model.Tutor) (model.Tutor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tutors {
		if existing.Email == tutor.Email {
			return model.Tutor{}, ErrEmailExists
		}
	}
	tutor.ID = uuid.NewString()
	m.tutors[tutor.ID] = tutor
	m.record("create-tutor:" + tutor.ID)
	return tutor, nil
}

func (m *Memory) GetTutorByEmail(_ context.Context, email string) (model.Tutor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tutor := range m.tutors {
		if tutor.Email == email {
			return tutor, nil
		}
	}
	return model.Tutor{}, ErrNotFound
}

func (m *Memory) GetTutorByID(_ context.Context, id string) (model.Tutor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tutor, ok := m.tutors[id]
	if !ok {
		return model.Tutor{}, ErrNotFound
	}
	return tutor, nil
}

// Students

func (m *Memory) CreateStudent(ctx context.Context, student model.Student) (model.Student, error) {
	m.mu.Lock()
	student.ID = uuid.NewString()
	m.students[student.ID] = cloneStudent(student)
	m.studentIDs = append(m.studentIDs, student.ID)
	m.record("create-student:" + student.ID)
	m.mu.Unlock()

	m.notify(ctx, Event{Collection: CollectionStudents, TutorID: student.TutorID, StudentID: student.ID})
	return student, nil
}

func (m *Memory) GetStudent(_ context.Context, id string) (model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	student, ok := m.students[id]
	if !ok {
		return model.Student{}, ErrNotFound
	}
	return cloneStudent(student), nil
}

func (m *Memory) ListStudents(_ context.Context, filter StudentFilter) ([]model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var students []model.Student
	for _, id := range m.studentIDs {
		student := m.students[id]
		if student.TutorID != filter.TutorID {
			continue
		}
		if filter.Status != "" && student.Status != filter.Status {
			continue
		}
		students = append(students, cloneStudent(student))
	}
	return students, nil
}

func (m *Memory) UpdateStudent(ctx context.Context, id string, update StudentUpdate) error {
	m.mu.Lock()
	student, ok := m.students[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if update.Name != nil {
		student.Name = *update.Name
	}
	if update.Subject != nil {
		student.Subject = *update.Subject
	}
	if update.Contact != nil {
		student.Contact = *update.Contact
	}
	if update.Status != nil {
		student.Status = *update.Status
	}
	if update.Notes != nil {
		student.Notes = *update.Notes
	}
	if update.Dates != nil {
		student.Dates = append([]string(nil), (*update.Dates)...)
	}
	m.students[id] = student
	m.record("update-student:" + id)
	tutorID := student.TutorID
	m.mu.Unlock()

	m.notify(ctx, Event{Collection: CollectionStudents, TutorID: tutorID, StudentID: id})
	return nil
}

func (m *Memory) AppendTopic(ctx context.Context, id string, topic model.Topic) error {
	m.mu.Lock()
	student, ok := m.students[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	student.Syllabus = append(student.Syllabus, topic)
	m.students[id] = student
	m.record("append-topic:" + id)
	tutorID := student.TutorID
	m.mu.Unlock()

	m.notify(ctx, Event{Collection: CollectionStudents, TutorID: tutorID, StudentID: id})
	return nil
}

func (m *Memory) ReplaceSyllabus(ctx context.Context, id string, syllabus []model.Topic) error {
	m.mu.Lock()
	student, ok := m.students[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	student.Syllabus = append([]model.Topic(nil), syllabus...)
	m.students[id] = student
	m.record("replace-syllabus:" + id)
	tutorID := student.TutorID
	m.mu.Unlock()

	m.notify(ctx, Event{Collection: CollectionStudents, TutorID: tutorID, StudentID: id})
	return nil
}

func (m *Memory) DeleteStudent(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.FailDeleteStudent != nil {
		err := m.FailDeleteStudent
		m.mu.Unlock()
		return err
	}
	student, ok := m.students[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.students, id)
	m.studentIDs = removeID(m.studentIDs, id)
	m.record("delete-student:" + id)
	tutorID := student.TutorID
	m.mu.Unlock()

	m.notify(ctx, Event{Collection: CollectionStudents, TutorID: tutorID, StudentID: id})
	return nil
}

// Sessions

func (m *Memory) CreateSession(ctx context.Context, session model.Session) (model.Session, error) {
	m.mu.Lock()
	session.ID = uuid.NewString()
	m.sessions[session.ID] = cloneSession(session)
	m.sessionIDs = append(m.sessionIDs, session.ID)
	m.record("create-session:" + session.ID)
	m.mu.Unlock()

	m.notify(ctx, Event{Collection: CollectionSessions, TutorID: session.TutorID, StudentID: session.StudentID})
	return session, nil
}

func (m *Memory) GetSession(_ context.Context, id string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return cloneSession(session), nil
}

func (m *Memory) ListSessions(_ context.Context, filter SessionFilter) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sessions []model.Session
	for _, id := range m.sessionIDs {
		session := m.sessions[id]
		if session.StudentID != filter.StudentID {
			continue
		}
		if filter.TutorID != "" && session.TutorID != filter.TutorID {
			continue
		}
		sessions = append(sessions, cloneSession(session))
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].Date.After(sessions[j].Date) })
	return sessions, nil
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	m.sessionIDs = removeID(m.sessionIDs, id)
	m.record("delete-session:" + id)
	m.mu.Unlock()

	m.notify(ctx, Event{Collection: CollectionSessions, TutorID: session.TutorID, StudentID: session.StudentID})
	return nil
}

func (m *Memory) DeleteSessions(ctx context.Context, ids []string) error {
	touched := make(map[Event]struct{})
	m.mu.Lock()
	for _, id := range ids {
		session, ok := m.sessions[id]
		if !ok {
			continue
		}
		delete(m.sessions, id)
		m.sessionIDs = removeID(m.sessionIDs, id)
		m.record("delete-session:" + id)
		touched[Event{Collection: CollectionSessions, TutorID: session.TutorID, StudentID: session.StudentID}] = struct{}{}
	}
	m.mu.Unlock()

	for ev := range touched {
		m.notify(ctx, ev)
	}
	return nil
}

func cloneStudent(student model.Student) model.Student {
	student.Dates = append([]string(nil), student.Dates...)
	student.Syllabus = append([]model.Topic(nil), student.Syllabus...)
	return student
}

func cloneSession(session model.Session) model.Session {
	session.CoveredTopicIDs = append([]string(nil), session.CoveredTopicIDs...)
	return session
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
