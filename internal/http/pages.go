package http

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/m-sarabi/tutor-track/internal/model"
	"github.com/m-sarabi/tutor-track/internal/store"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.tmpl.page(w, http.StatusOK, "login.html", authPage{
		Base:           s.cfg.BasePath,
		GoogleClientID: s.cfg.GoogleClientID,
	})
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.tmpl.page(w, http.StatusOK, "signup.html", authPage{Base: s.cfg.BasePath})
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	students, err := s.store.ListStudents(r.Context(), store.StudentFilter{
		TutorID: ident.TutorID,
		Status:  model.StudentActive,
	})
	if err != nil {
		log.Printf("dashboard: list students: %v", err)
		http.Error(w, "Something went wrong.", http.StatusInternalServerError)
		return
	}
	now := time.Now()
	model.SortByNextSession(students, now)

	s.tmpl.page(w, http.StatusOK, "dashboard.html", dashboardPage{
		appPage: s.appPageData(w, r),
		Region: studentsRegion{
			Base:     s.cfg.BasePath,
			Students: students,
			Now:      now,
		},
	})
}

func (s *Server) handleArchivedPage(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	students, err := s.store.ListStudents(r.Context(), store.StudentFilter{
		TutorID: ident.TutorID,
		Status:  model.StudentArchived,
	})
	if err != nil {
		log.Printf("archived: list students: %v", err)
		http.Error(w, "Something went wrong.", http.StatusInternalServerError)
		return
	}

	s.tmpl.page(w, http.StatusOK, "archived.html", archivedPage{
		appPage: s.appPageData(w, r),
		Region: studentsRegion{
			Base:     s.cfg.BasePath,
			Students: students,
			Now:      time.Now(),
			Archived: true,
		},
	})
}

func (s *Server) handleStudentPage(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	studentID := chi.URLParam(r, "studentID")

	// Ownership check before anything else renders or subscribes.
	student, err := s.store.GetStudent(r.Context(), studentID)
	if err != nil || student.TutorID != ident.TutorID {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("student page: get %s: %v", studentID, err)
		}
		s.tmpl.page(w, http.StatusNotFound, "error.html", errorPage{
			appPage: s.appPageData(w, r),
			Message: "Student not found, or you do not have access.",
		})
		return
	}

	sessions, err := s.store.ListSessions(r.Context(), store.SessionFilter{
		StudentID: student.ID,
		TutorID:   ident.TutorID,
	})
	if err != nil {
		log.Printf("student page: list sessions: %v", err)
		http.Error(w, "Something went wrong.", http.StatusInternalServerError)
		return
	}

	s.tmpl.page(w, http.StatusOK, "student.html", studentPage{
		appPage: s.appPageData(w, r),
		Student: student,
		Doc: studentRegion{
			Base:    s.cfg.BasePath,
			Student: student,
			Now:     time.Now(),
			Edit:    r.URL.Query().Get("notes") == "edit",
		},
		Sessions: sessionsRegion{
			Base:     s.cfg.BasePath,
			Student:  student,
			Sessions: sessions,
		},
	})
}
