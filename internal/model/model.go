package model

import (
	"sort"
	"time"
)

const (
	StudentActive   = "Active"
	StudentArchived = "Archived"
)

const (
	TopicNotStarted = "Not Started"
	TopicInProgress = "In Progress"
	TopicCompleted  = "Completed"
)

type Tutor struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Topic is one syllabus entry, embedded in its Student.
type Topic struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

type Student struct {
	ID       string
	TutorID  string
	Name     string
	Subject  string
	Contact  string
	Status   string
	Dates    []string // scheduled session date-times, RFC3339
	Notes    string
	Syllabus []Topic
}

type Session struct {
	ID              string
	StudentID       string
	TutorID         string
	Date            time.Time
	Duration        int
	Notes           string
	NextSteps       string
	CoveredTopicIDs []string
}

// UpcomingDates returns the student's scheduled dates strictly after now,
// ascending. Unparsable entries are skipped.
func (s Student) UpcomingDates(now time.Time) []time.Time {
	var upcoming []time.Time
	for _, raw := range s.Dates {
		parsed, err := parseDate(raw)
		if err != nil {
			continue
		}
		if parsed.After(now) {
			upcoming = append(upcoming, parsed)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].Before(upcoming[j]) })
	return upcoming
}

// NextSession returns the earliest upcoming date, if any.
func (s Student) NextSession(now time.Time) (time.Time, bool) {
	upcoming := s.UpcomingDates(now)
	if len(upcoming) == 0 {
		return time.Time{}, false
	}
	return upcoming[0], true
}

// SortByNextSession orders students for the dashboard: students with an
// upcoming session come before students without one, ascending by that
// session's date. Ties keep their incoming order.
func SortByNextSession(students []Student, now time.Time) {
	sort.SliceStable(students, func(i, j int) bool {
		nextI, okI := students[i].NextSession(now)
		nextJ, okJ := students[j].NextSession(now)
		if okI != okJ {
			return okI
		}
		if !okI {
			return false
		}
		return nextI.Before(nextJ)
	})
}

// TopicTitle resolves a covered-topic reference against the syllabus.
// Dangling references report false and render as dropped text.
func (s Student) TopicTitle(topicID string) (string, bool) {
	for _, topic := range s.Syllabus {
		if topic.ID == topicID {
			return topic.Title, true
		}
	}
	return "", false
}

// ReplaceTopicStatus maps the syllabus, swapping the one matching topic's
// status. An absent id yields an equal copy.
func ReplaceTopicStatus(syllabus []Topic, topicID, status string) []Topic {
	updated := make([]Topic, len(syllabus))
	for i, topic := range syllabus {
		if topic.ID == topicID {
			topic.Status = status
		}
		updated[i] = topic
	}
	return updated
}

// RemoveTopic filters the syllabus, dropping the matching topic.
func RemoveTopic(syllabus []Topic, topicID string) []Topic {
	updated := make([]Topic, 0, len(syllabus))
	for _, topic := range syllabus {
		if topic.ID != topicID {
			updated = append(updated, topic)
		}
	}
	return updated
}

func parseDate(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02T15:04", raw)
}
