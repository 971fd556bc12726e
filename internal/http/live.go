package http

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/m-sarabi/tutor-track/internal/live"
	"github.com/m-sarabi/tutor-track/internal/model"
	"github.com/m-sarabi/tutor-track/internal/store"
)

// handleLiveStudents streams the student roster region. The optional
// status query selects the archived variant; each push re-renders the
// full list, mirroring a snapshot listener.
func (s *Server) handleLiveStudents(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	archived := r.URL.Query().Get("status") == string(model.StudentArchived)

	event := "students-list"
	status := model.StudentActive
	if archived {
		event = "archived-students-list"
		status = model.StudentArchived
	}

	flusher, ok := beginSSE(w)
	if !ok {
		return
	}
	sub := s.hub.Subscribe(r.Context(), live.TopicStudents(ident.TutorID))
	defer sub.Close()

	for {
		students, err := s.store.ListStudents(r.Context(), store.StudentFilter{
			TutorID: ident.TutorID,
			Status:  status,
		})
		if err != nil {
			log.Printf("live students: %v", err)
			return
		}
		if !archived {
			model.SortByNextSession(students, time.Now())
		}
		html, err := s.tmpl.region("region_students.html", studentsRegion{
			Base:     s.cfg.BasePath,
			Students: students,
			Now:      time.Now(),
			Archived: archived,
		})
		if err != nil {
			log.Printf("live students render: %v", err)
			return
		}
		writeSSE(w, event, html)
		flusher.Flush()
		livePushesTotal.Inc()

		select {
		case <-r.Context().Done():
			return
		case <-sub.C():
		}
	}
}

// handleLiveStudent streams the three single-student regions: notes,
// syllabus and scheduled sessions. One push re-renders all three.
func (s *Server) handleLiveStudent(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	studentID := chi.URLParam(r, "studentID")

	if _, err := s.ownedStudent(r.Context(), ident, studentID); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	flusher, ok := beginSSE(w)
	if !ok {
		return
	}
	sub := s.hub.Subscribe(r.Context(), live.TopicStudent(studentID))
	defer sub.Close()

	for {
		student, err := s.store.GetStudent(r.Context(), studentID)
		if err != nil {
			// Deleted mid-stream: tell the page to leave.
			writeSSE(w, "student-gone", joinPath(s.cfg.BasePath, "/"))
			flusher.Flush()
			return
		}
		region := studentRegion{Base: s.cfg.BasePath, Student: student, Now: time.Now()}
		for _, part := range []struct{ event, tmpl string }{
			{"student-notes-container", "region_notes.html"},
			{"syllabus-list", "region_syllabus.html"},
			{"scheduled-sessions-list", "region_scheduled.html"},
		} {
			html, err := s.tmpl.region(part.tmpl, region)
			if err != nil {
				log.Printf("live student render %s: %v", part.tmpl, err)
				return
			}
			writeSSE(w, part.event, html)
		}
		flusher.Flush()
		livePushesTotal.Inc()

		select {
		case <-r.Context().Done():
			return
		case <-sub.C():
		}
	}
}

// handleLiveSessions streams the session log region for one student.
func (s *Server) handleLiveSessions(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	studentID := chi.URLParam(r, "studentID")

	if _, err := s.ownedStudent(r.Context(), ident, studentID); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	flusher, ok := beginSSE(w)
	if !ok {
		return
	}
	sub := s.hub.Subscribe(r.Context(), live.TopicSessions(studentID))
	defer sub.Close()

	for {
		student, err := s.store.GetStudent(r.Context(), studentID)
		if err != nil {
			return
		}
		sessions, err := s.store.ListSessions(r.Context(), store.SessionFilter{
			StudentID: studentID,
			TutorID:   ident.TutorID,
		})
		if err != nil {
			log.Printf("live sessions: %v", err)
			return
		}
		html, err := s.tmpl.region("region_sessions.html", sessionsRegion{
			Base:     s.cfg.BasePath,
			Student:  student,
			Sessions: sessions,
		})
		if err != nil {
			log.Printf("live sessions render: %v", err)
			return
		}
		writeSSE(w, "session-log-list", html)
		flusher.Flush()
		livePushesTotal.Inc()

		select {
		case <-r.Context().Done():
			return
		case <-sub.C():
		}
	}
}

func beginSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return flusher, true
}

// writeSSE frames one named event. Multi-line payloads become one data
// line each, per the EventSource format.
func writeSSE(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
