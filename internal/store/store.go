// Package store is the document-store boundary: typed repositories over the
// tutors, students and sessions collections, with equality-filtered queries
// and change notifications feeding the live hub.
package store

import (
	"context"
	"errors"

	"github.com/m-sarabi/tutor-track/internal/model"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrEmailExists = errors.New("a tutor with this email already exists")
)

// Event describes a committed mutation. TutorID and StudentID route the
// event to the page regions that query the touched documents.
type Event struct {
	Collection string `json:"collection"`
	TutorID    string `json:"tutorId"`
	StudentID  string `json:"studentId,omitempty"`
}

const (
	CollectionStudents = "students"
	CollectionSessions = "sessions"
)

// Notifier receives an Event after every successful write. A nil Notifier
// is allowed and drops events.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// StudentFilter holds the equality filters every student query applies.
// TutorID is mandatory: ownership is enforced at the query, not the caller.
type StudentFilter struct {
	TutorID string
	Status  string
}

// SessionFilter mirrors the composite studentId+tutorId session query. The
// two-phase student delete passes an empty TutorID, matching the original
// cleanup query which filters on studentId alone.
type SessionFilter struct {
	StudentID string
	TutorID   string
}

// StudentUpdate is a partial field update; nil fields are left untouched.
type StudentUpdate struct {
	Name    *string
	Subject *string
	Contact *string
	Dates   *[]string
	Status  *string
	Notes   *string
}

type Store interface {
	CreateTutor(ctx context.Context, tutor model.Tutor) (model.Tutor, error)
	GetTutorByEmail(ctx context.Context, email string) (model.Tutor, error)
	GetTutorByID(ctx context.Context, id string) (model.Tutor, error)

	CreateStudent(ctx context.Context, student model.Student) (model.Student, error)
	GetStudent(ctx context.Context, id string) (model.Student, error)
	ListStudents(ctx context.Context, filter StudentFilter) ([]model.Student, error)
	UpdateStudent(ctx context.Context, id string, update StudentUpdate) error
	// AppendTopic is the one targeted syllabus primitive: an additive
	// array append. Edits and deletes rewrite the whole array through
	// ReplaceSyllabus instead.
	AppendTopic(ctx context.Context, id string, topic model.Topic) error
	ReplaceSyllabus(ctx context.Context, id string, syllabus []model.Topic) error
	DeleteStudent(ctx context.Context, id string) error

	CreateSession(ctx context.Context, session model.Session) (model.Session, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	// ListSessions returns sessions ordered by date descending.
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteSessions(ctx context.Context, ids []string) error
}
