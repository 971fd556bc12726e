package http

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/m-sarabi/tutor-track/internal/auth"
	"github.com/m-sarabi/tutor-track/internal/model"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

type templates struct {
	t *template.Template
}

func parseTemplates() (*templates, error) {
	t := template.New("").Funcs(template.FuncMap{
		"datetime": formatDateTime,
		"date":     formatDate,
		"localdt":  inputDateTime,
		"covered":  coveredTitles,
		"href":     joinPath,
	})
	t, err := t.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &templates{t: t}, nil
}

func (t *templates) page(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := t.t.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("render %s: %v", name, err)
		http.Error(w, "Something went wrong.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (t *templates) region(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Template data

type authPage struct {
	Base           string
	Error          string
	GoogleClientID string
}

type appPage struct {
	Base     string
	Identity *auth.Claims
	Flash    string
}

type dashboardPage struct {
	appPage
	Region studentsRegion
}

type archivedPage struct {
	appPage
	Region studentsRegion
}

type studentPage struct {
	appPage
	Student  model.Student
	Doc      studentRegion
	Sessions sessionsRegion
}

type errorPage struct {
	appPage
	Message string
}

type studentsRegion struct {
	Base     string
	Students []model.Student
	Now      time.Time
	Archived bool
}

type studentRegion struct {
	Base    string
	Student model.Student
	Now     time.Time
	Edit    bool
}

type sessionsRegion struct {
	Base     string
	Student  model.Student
	Sessions []model.Session
}

func (s *Server) appPageData(w http.ResponseWriter, r *http.Request) appPage {
	return appPage{
		Base:     s.cfg.BasePath,
		Identity: identityFromContext(r.Context()),
		Flash:    s.takeFlash(w, r),
	}
}

func (s *Server) renderNotFound(w http.ResponseWriter) {
	s.tmpl.page(w, http.StatusNotFound, "notfound.html", appPage{Base: s.cfg.BasePath})
}

// Formatting helpers shared by pages and live regions.

func formatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

func formatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

// inputDateTime turns a stored RFC3339 date back into the value a
// datetime-local input expects. Unparsable values pass through.
func inputDateTime(value string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.Format("2006-01-02T15:04")
}

// coveredTitles resolves a session's covered-topic references against the
// student's syllabus; dangling references are dropped.
func coveredTitles(student model.Student, session model.Session) string {
	var titles []string
	for _, topicID := range session.CoveredTopicIDs {
		if title, ok := student.TopicTitle(topicID); ok {
			titles = append(titles, title)
		}
	}
	return strings.Join(titles, ", ")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
