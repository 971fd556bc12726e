package model

import (
	"testing"
	"time"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rfc(t time.Time) string { return t.Format(time.RFC3339) }

func TestUpcomingDatesFiltersAndSorts(t *testing.T) {
	futureA := now.Add(48 * time.Hour)
	pastB := now.Add(-24 * time.Hour)
	futureC := now.Add(24 * time.Hour)

	student := Student{Dates: []string{rfc(futureA), rfc(pastB), rfc(futureC)}}
	upcoming := student.UpcomingDates(now)

	if len(upcoming) != 2 {
		t.Fatalf("expected 2 upcoming dates, got %d", len(upcoming))
	}
	if !upcoming[0].Equal(futureC) || !upcoming[1].Equal(futureA) {
		t.Fatalf("expected ascending [futureC, futureA], got %v", upcoming)
	}
}

func TestUpcomingDatesSkipsUnparsable(t *testing.T) {
	student := Student{Dates: []string{"not-a-date", rfc(now.Add(time.Hour))}}
	if got := len(student.UpcomingDates(now)); got != 1 {
		t.Fatalf("expected 1 upcoming date, got %d", got)
	}
}

func TestNextSessionEmpty(t *testing.T) {
	student := Student{Dates: []string{rfc(now.Add(-time.Hour))}}
	if _, ok := student.NextSession(now); ok {
		t.Fatalf("expected no next session")
	}
}

func TestSortByNextSession(t *testing.T) {
	withSession := Student{Name: "X", Dates: []string{rfc(now.Add(time.Hour))}}
	withoutSession := Student{Name: "A"}
	later := Student{Name: "B", Dates: []string{rfc(now.Add(2 * time.Hour))}}

	students := []Student{withoutSession, later, withSession}
	SortByNextSession(students, now)

	if students[0].Name != "X" || students[1].Name != "B" || students[2].Name != "A" {
		t.Fatalf("unexpected order: %s, %s, %s", students[0].Name, students[1].Name, students[2].Name)
	}
}

func TestSortByNextSessionStableWithoutSessions(t *testing.T) {
	students := []Student{{Name: "B"}, {Name: "A"}, {Name: "C"}}
	SortByNextSession(students, now)
	if students[0].Name != "B" || students[1].Name != "A" || students[2].Name != "C" {
		t.Fatalf("expected stable order for students without sessions")
	}
}

func TestReplaceTopicStatus(t *testing.T) {
	syllabus := []Topic{
		{ID: "t1", Title: "Algebra", Status: TopicNotStarted},
		{ID: "t2", Title: "Geometry", Status: TopicInProgress},
	}

	updated := ReplaceTopicStatus(syllabus, "t2", TopicCompleted)
	if updated[1].Status != TopicCompleted {
		t.Fatalf("expected t2 completed, got %s", updated[1].Status)
	}
	if updated[0].Status != TopicNotStarted {
		t.Fatalf("expected t1 untouched")
	}
	if syllabus[1].Status != TopicInProgress {
		t.Fatalf("expected input syllabus unmodified")
	}
}

func TestReplaceTopicStatusAbsentID(t *testing.T) {
	syllabus := []Topic{{ID: "t1", Title: "Algebra", Status: TopicNotStarted}}
	updated := ReplaceTopicStatus(syllabus, "missing", TopicCompleted)
	if len(updated) != 1 || updated[0] != syllabus[0] {
		t.Fatalf("expected syllabus unchanged for absent topic id")
	}
}

func TestRemoveTopic(t *testing.T) {
	syllabus := []Topic{{ID: "t1"}, {ID: "t2"}}
	updated := RemoveTopic(syllabus, "t1")
	if len(updated) != 1 || updated[0].ID != "t2" {
		t.Fatalf("expected only t2 to remain")
	}
}

func TestRemoveTopicAbsentID(t *testing.T) {
	syllabus := []Topic{{ID: "t1"}, {ID: "t2"}}
	updated := RemoveTopic(syllabus, "missing")
	if len(updated) != 2 {
		t.Fatalf("expected syllabus unchanged for absent topic id")
	}
}

func TestTopicTitleDanglingReference(t *testing.T) {
	student := Student{Syllabus: []Topic{{ID: "t1", Title: "Algebra"}}}
	if _, ok := student.TopicTitle("gone"); ok {
		t.Fatalf("expected dangling reference to report false")
	}
	title, ok := student.TopicTitle("t1")
	if !ok || title != "Algebra" {
		t.Fatalf("expected Algebra, got %q", title)
	}
}
