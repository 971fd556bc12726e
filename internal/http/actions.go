package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m-sarabi/tutor-track/internal/auth"
	"github.com/m-sarabi/tutor-track/internal/model"
	"github.com/m-sarabi/tutor-track/internal/store"
)

var (
	errUnknownAction   = errors.New("unknown action")
	errConfirmRequired = errors.New("confirmation required")
	errForbidden       = errors.New("not found or not owned by caller")
)

// command is the tagged-variant form of the user actions: parsing the form
// produces exactly one variant, and dispatch matches over all of them.
type command interface {
	name() string
	failure() string
}

type addStudentCmd struct {
	Name    string `validate:"required"`
	Subject string `validate:"required"`
	Contact string
	Dates   []string
}

type editStudentCmd struct {
	StudentID string `validate:"required"`
	Name      string `validate:"required"`
	Subject   string `validate:"required"`
	Contact   string
	Dates     []string
}

type archiveStudentCmd struct {
	StudentID string `validate:"required"`
	Confirm   bool
}

type restoreStudentCmd struct {
	StudentID string `validate:"required"`
}

type deleteStudentCmd struct {
	StudentID string `validate:"required"`
	Confirm   bool
}

type addTopicCmd struct {
	StudentID string `validate:"required"`
	Title     string `validate:"required"`
}

type updateTopicStatusCmd struct {
	StudentID string `validate:"required"`
	TopicID   string `validate:"required"`
	Status    string `validate:"required,oneof='Not Started' 'In Progress' 'Completed'"`
}

type deleteTopicCmd struct {
	StudentID string `validate:"required"`
	TopicID   string `validate:"required"`
	Confirm   bool
}

type saveNotesCmd struct {
	StudentID string `validate:"required"`
	Notes     string
}

type logSessionCmd struct {
	StudentID string `validate:"required"`
	Date      string `validate:"required"`
	Duration  int
	Notes     string
	NextSteps string
	TopicIDs  []string
}

type deleteSessionCmd struct {
	SessionID string `validate:"required"`
	Confirm   bool
}

func (addStudentCmd) name() string        { return "add-student" }
func (editStudentCmd) name() string       { return "edit-student" }
func (archiveStudentCmd) name() string    { return "archive-student" }
func (restoreStudentCmd) name() string    { return "restore-student" }
func (deleteStudentCmd) name() string     { return "delete-student" }
func (addTopicCmd) name() string          { return "add-topic" }
func (updateTopicStatusCmd) name() string { return "update-topic-status" }
func (deleteTopicCmd) name() string       { return "delete-topic" }
func (saveNotesCmd) name() string         { return "save-notes" }
func (logSessionCmd) name() string        { return "log-session" }
func (deleteSessionCmd) name() string     { return "delete-session" }

func (addStudentCmd) failure() string        { return "Failed to add student. Please try again." }
func (editStudentCmd) failure() string       { return "Failed to update student. Please try again." }
func (archiveStudentCmd) failure() string    { return "Failed to archive student." }
func (restoreStudentCmd) failure() string    { return "Failed to restore student." }
func (deleteStudentCmd) failure() string     { return "Failed to delete student and their data." }
func (addTopicCmd) failure() string          { return "Failed to add topic." }
func (updateTopicStatusCmd) failure() string { return "Failed to update topic status." }
func (deleteTopicCmd) failure() string       { return "Failed to delete topic." }
func (saveNotesCmd) failure() string         { return "Failed to save notes." }
func (logSessionCmd) failure() string        { return "Failed to log session." }
func (deleteSessionCmd) failure() string     { return "Failed to delete session log." }

// parseCommand inspects the action marker and builds the matching variant.
// A nil command with nil error is a silent no-op.
func parseCommand(r *http.Request) (command, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	confirmed := r.PostFormValue("confirm") == "yes"

	switch action := r.PostFormValue("action"); action {
	case "add-student":
		return addStudentCmd{
			Name:    strings.TrimSpace(r.PostFormValue("name")),
			Subject: strings.TrimSpace(r.PostFormValue("subject")),
			Contact: strings.TrimSpace(r.PostFormValue("contact")),
			Dates:   parseDates(r.PostForm["dates"]),
		}, nil
	case "edit-student":
		return editStudentCmd{
			StudentID: r.PostFormValue("studentId"),
			Name:      strings.TrimSpace(r.PostFormValue("name")),
			Subject:   strings.TrimSpace(r.PostFormValue("subject")),
			Contact:   strings.TrimSpace(r.PostFormValue("contact")),
			Dates:     parseDates(r.PostForm["dates"]),
		}, nil
	case "archive-student":
		return archiveStudentCmd{StudentID: r.PostFormValue("studentId"), Confirm: confirmed}, nil
	case "restore-student":
		return restoreStudentCmd{StudentID: r.PostFormValue("studentId")}, nil
	case "delete-student":
		return deleteStudentCmd{StudentID: r.PostFormValue("studentId"), Confirm: confirmed}, nil
	case "add-topic":
		// An empty title is a silent no-op, not an error.
		title := r.PostFormValue("title")
		if title == "" {
			return nil, nil
		}
		return addTopicCmd{StudentID: r.PostFormValue("studentId"), Title: title}, nil
	case "update-topic-status":
		return updateTopicStatusCmd{
			StudentID: r.PostFormValue("studentId"),
			TopicID:   r.PostFormValue("topicId"),
			Status:    r.PostFormValue("status"),
		}, nil
	case "delete-topic":
		return deleteTopicCmd{
			StudentID: r.PostFormValue("studentId"),
			TopicID:   r.PostFormValue("topicId"),
			Confirm:   confirmed,
		}, nil
	case "save-notes":
		return saveNotesCmd{StudentID: r.PostFormValue("studentId"), Notes: r.PostFormValue("notes")}, nil
	case "log-session":
		duration, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("duration")))
		if err != nil {
			return nil, fmt.Errorf("invalid duration: %w", err)
		}
		return logSessionCmd{
			StudentID: r.PostFormValue("studentId"),
			Date:      r.PostFormValue("date"),
			Duration:  duration,
			Notes:     r.PostFormValue("notes"),
			NextSteps: r.PostFormValue("nextSteps"),
			TopicIDs:  r.PostForm["topics"],
		}, nil
	case "delete-session":
		return deleteSessionCmd{SessionID: r.PostFormValue("sessionId"), Confirm: confirmed}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownAction, action)
	}
}

// parseDates normalizes the repeated scheduled-date inputs: empties are
// dropped, the rest are stored as RFC3339 strings.
func parseDates(raw []string) []string {
	var dates []string
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02T15:04", value)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, value)
		}
		if err != nil {
			continue
		}
		dates = append(dates, parsed.UTC().Format(time.RFC3339))
	}
	return dates
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	returnTo := s.localPath(r.PostFormValue("return"), "/")

	cmd, err := parseCommand(r)
	if err != nil {
		log.Printf("action parse: %v", err)
		s.flash(w, "Invalid request.")
		http.Redirect(w, r, returnTo, http.StatusSeeOther)
		return
	}
	if cmd == nil {
		http.Redirect(w, r, returnTo, http.StatusSeeOther)
		return
	}
	if err := s.validate.Struct(cmd); err != nil {
		s.flash(w, "Missing required fields.")
		http.Redirect(w, r, returnTo, http.StatusSeeOther)
		return
	}

	actionsTotal.WithLabelValues(cmd.name()).Inc()
	redirect, err := s.dispatch(r.Context(), ident, cmd)
	if err != nil {
		log.Printf("action %s: %v", cmd.name(), err)
		switch {
		case errors.Is(err, errConfirmRequired):
			s.flash(w, "Confirmation required.")
		case errors.Is(err, errForbidden), errors.Is(err, store.ErrNotFound):
			s.flash(w, "Student not found, or you do not have access.")
		default:
			s.flash(w, cmd.failure())
		}
		http.Redirect(w, r, returnTo, http.StatusSeeOther)
		return
	}
	if redirect == "" {
		redirect = returnTo
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// dispatch runs one command against the store. The match is exhaustive
// over the command variants; the returned path, when set, overrides the
// caller's return target.
func (s *Server) dispatch(ctx context.Context, ident *auth.Claims, cmd command) (string, error) {
	switch cmd := cmd.(type) {
	case addStudentCmd:
		_, err := s.store.CreateStudent(ctx, model.Student{
			TutorID:  ident.TutorID,
			Name:     cmd.Name,
			Subject:  cmd.Subject,
			Contact:  cmd.Contact,
			Status:   model.StudentActive,
			Dates:    cmd.Dates,
			Notes:    "",
			Syllabus: []model.Topic{},
		})
		return "", err

	case editStudentCmd:
		if _, err := s.ownedStudent(ctx, ident, cmd.StudentID); err != nil {
			return "", err
		}
		return "", s.store.UpdateStudent(ctx, cmd.StudentID, store.StudentUpdate{
			Name:    &cmd.Name,
			Subject: &cmd.Subject,
			Contact: &cmd.Contact,
			Dates:   &cmd.Dates,
		})

	case archiveStudentCmd:
		if !cmd.Confirm {
			return "", errConfirmRequired
		}
		if _, err := s.ownedStudent(ctx, ident, cmd.StudentID); err != nil {
			return "", err
		}
		status := model.StudentArchived
		if err := s.store.UpdateStudent(ctx, cmd.StudentID, store.StudentUpdate{Status: &status}); err != nil {
			return "", err
		}
		return joinPath(s.cfg.BasePath, "/"), nil

	case restoreStudentCmd:
		if _, err := s.ownedStudent(ctx, ident, cmd.StudentID); err != nil {
			return "", err
		}
		status := model.StudentActive
		return "", s.store.UpdateStudent(ctx, cmd.StudentID, store.StudentUpdate{Status: &status})

	case deleteStudentCmd:
		if !cmd.Confirm {
			return "", errConfirmRequired
		}
		if _, err := s.ownedStudent(ctx, ident, cmd.StudentID); err != nil {
			return "", err
		}
		return "", s.deleteStudentWithSessions(ctx, cmd.StudentID)

	case addTopicCmd:
		if _, err := s.ownedStudent(ctx, ident, cmd.StudentID); err != nil {
			return "", err
		}
		return "", s.store.AppendTopic(ctx, cmd.StudentID, model.Topic{
			ID:     uuid.NewString(),
			Title:  cmd.Title,
			Status: model.TopicNotStarted,
		})

	case updateTopicStatusCmd:
		student, err := s.ownedStudent(ctx, ident, cmd.StudentID)
		if err != nil {
			return "", err
		}
		updated := model.ReplaceTopicStatus(student.Syllabus, cmd.TopicID, cmd.Status)
		return "", s.store.ReplaceSyllabus(ctx, cmd.StudentID, updated)

	case deleteTopicCmd:
		if !cmd.Confirm {
			return "", errConfirmRequired
		}
		student, err := s.ownedStudent(ctx, ident, cmd.StudentID)
		if err != nil {
			return "", err
		}
		updated := model.RemoveTopic(student.Syllabus, cmd.TopicID)
		return "", s.store.ReplaceSyllabus(ctx, cmd.StudentID, updated)

	case saveNotesCmd:
		if _, err := s.ownedStudent(ctx, ident, cmd.StudentID); err != nil {
			return "", err
		}
		return "", s.store.UpdateStudent(ctx, cmd.StudentID, store.StudentUpdate{Notes: &cmd.Notes})

	case logSessionCmd:
		if _, err := s.ownedStudent(ctx, ident, cmd.StudentID); err != nil {
			return "", err
		}
		date, err := time.Parse("2006-01-02", cmd.Date)
		if err != nil {
			date, err = time.Parse(time.RFC3339, cmd.Date)
		}
		if err != nil {
			return "", fmt.Errorf("invalid session date: %w", err)
		}
		_, err = s.store.CreateSession(ctx, model.Session{
			StudentID:       cmd.StudentID,
			TutorID:         ident.TutorID,
			Date:            date.UTC(),
			Duration:        cmd.Duration,
			Notes:           cmd.Notes,
			NextSteps:       cmd.NextSteps,
			CoveredTopicIDs: cmd.TopicIDs,
		})
		return "", err

	case deleteSessionCmd:
		if !cmd.Confirm {
			return "", errConfirmRequired
		}
		session, err := s.store.GetSession(ctx, cmd.SessionID)
		if err != nil {
			return "", err
		}
		if session.TutorID != ident.TutorID {
			return "", errForbidden
		}
		return "", s.store.DeleteSession(ctx, cmd.SessionID)

	default:
		return "", fmt.Errorf("%w: %T", errUnknownAction, cmd)
	}
}

// deleteStudentWithSessions is the two-phase delete: dependent sessions
// first, the student document last. The phases are not transactional; a
// failure after the batch leaves an orphaned student with no sessions,
// never dangling sessions.
func (s *Server) deleteStudentWithSessions(ctx context.Context, studentID string) error {
	sessions, err := s.store.ListSessions(ctx, store.SessionFilter{StudentID: studentID})
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}
	if err := s.store.DeleteSessions(ctx, ids); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if err := s.store.DeleteStudent(ctx, studentID); err != nil {
		log.Printf("two-phase delete: student %s orphaned after session cleanup: %v", studentID, err)
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// ownedStudent loads a student and enforces the ownership invariant on
// every student-scoped write.
func (s *Server) ownedStudent(ctx context.Context, ident *auth.Claims, studentID string) (model.Student, error) {
	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return model.Student{}, err
	}
	if student.TutorID != ident.TutorID {
		return model.Student{}, errForbidden
	}
	return student, nil
}
