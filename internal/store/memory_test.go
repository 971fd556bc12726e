package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/m-sarabi/tutor-track/internal/model"
)

func seedStudent(t *testing.T, m *Memory, tutorID string) model.Student {
	t.Helper()
	student, err := m.CreateStudent(context.Background(), model.Student{
		TutorID:  tutorID,
		Name:     "Ada",
		Subject:  "Maths",
		Contact:  "ada@example.com",
		Status:   model.StudentActive,
		Dates:    []string{"2026-04-01T10:00:00Z"},
		Syllabus: []model.Topic{},
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	return student
}

func TestListStudentsFiltersByTutorAndStatus(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	mine := seedStudent(t, m, "tutor-1")
	seedStudent(t, m, "tutor-2")
	archived := seedStudent(t, m, "tutor-1")
	status := model.StudentArchived
	if err := m.UpdateStudent(ctx, archived.ID, StudentUpdate{Status: &status}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	active, err := m.ListStudents(ctx, StudentFilter{TutorID: "tutor-1", Status: model.StudentActive})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].ID != mine.ID {
		t.Fatalf("expected only the active tutor-1 student")
	}

	all, err := m.ListStudents(ctx, StudentFilter{TutorID: "tutor-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tutor-1 students, got %d", len(all))
	}
}

func TestArchiveRestoreRoundTrip(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	student := seedStudent(t, m, "tutor-1")

	before, err := m.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	archived := model.StudentArchived
	if err := m.UpdateStudent(ctx, student.ID, StudentUpdate{Status: &archived}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	active := model.StudentActive
	if err := m.UpdateStudent(ctx, student.ID, StudentUpdate{Status: &active}); err != nil {
		t.Fatalf("restore: %v", err)
	}

	after, err := m.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("expected student identical after archive/restore round trip:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestUpdateStudentPartialFields(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	student := seedStudent(t, m, "tutor-1")

	name := "Ada L."
	dates := []string{"2026-05-01T10:00:00Z", "2026-05-08T10:00:00Z"}
	if err := m.UpdateStudent(ctx, student.ID, StudentUpdate{Name: &name, Dates: &dates}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := m.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Ada L." || len(got.Dates) != 2 {
		t.Fatalf("expected updated name and dates, got %+v", got)
	}
	if got.Subject != "Maths" || got.Contact != "ada@example.com" {
		t.Fatalf("expected untouched fields preserved, got %+v", got)
	}
}

func TestAppendTopicAndReplaceSyllabus(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	student := seedStudent(t, m, "tutor-1")

	topic := model.Topic{ID: "t1", Title: "Fractions", Status: model.TopicNotStarted}
	if err := m.AppendTopic(ctx, student.ID, topic); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, _ := m.GetStudent(ctx, student.ID)
	if len(got.Syllabus) != 1 || got.Syllabus[0] != topic {
		t.Fatalf("expected appended topic, got %+v", got.Syllabus)
	}

	if err := m.ReplaceSyllabus(ctx, student.ID, nil); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ = m.GetStudent(ctx, student.ID)
	if len(got.Syllabus) != 0 {
		t.Fatalf("expected empty syllabus after replace, got %+v", got.Syllabus)
	}
}

func TestListSessionsOrderedByDateDesc(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for _, offset := range []int{0, 2, 1} {
		_, err := m.CreateSession(ctx, model.Session{
			StudentID: "student-1",
			TutorID:   "tutor-1",
			Date:      base.AddDate(0, 0, offset),
			Duration:  45,
		})
		if err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	sessions, err := m.ListSessions(ctx, SessionFilter{StudentID: "student-1", TutorID: "tutor-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i].Date.After(sessions[i-1].Date) {
			t.Fatalf("expected date descending order")
		}
	}
}

func TestDeleteSessionsBatch(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		session, err := m.CreateSession(ctx, model.Session{StudentID: "student-1", TutorID: "tutor-1", Date: time.Now()})
		if err != nil {
			t.Fatalf("create session: %v", err)
		}
		ids = append(ids, session.ID)
	}

	if err := m.DeleteSessions(ctx, ids); err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	sessions, err := m.ListSessions(ctx, SessionFilter{StudentID: "student-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions after batch delete, got %d", len(sessions))
	}
}

func TestCreateTutorDuplicateEmail(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	if _, err := m.CreateTutor(ctx, model.Tutor{Email: "tutor@example.com", Name: "New Tutor"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.CreateTutor(ctx, model.Tutor{Email: "tutor@example.com", Name: "Other"}); err != ErrEmailExists {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestGetStudentAbsent(t *testing.T) {
	m := NewMemory(nil)
	if _, err := m.GetStudent(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
