// Package http serves the TutorTrack application: guarded page routes,
// the action dispatcher and the live page-region streams.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m-sarabi/tutor-track/internal/auth"
	"github.com/m-sarabi/tutor-track/internal/config"
	"github.com/m-sarabi/tutor-track/internal/live"
	"github.com/m-sarabi/tutor-track/internal/store"
)

var (
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutortrack_actions_total",
		Help: "Dispatched user actions by name.",
	}, []string{"action"})
	livePushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutortrack_live_pushes_total",
		Help: "Rendered live region pushes.",
	})
)

const (
	sessionCookie  = "tutortrack_session"
	flashCookie    = "tutortrack_flash"
	redirectCookie = "tutortrack_redirect"
)

type Server struct {
	cfg      config.Config
	store    store.Store
	hub      *live.Hub
	tmpl     *templates
	validate *validator.Validate
}

func NewServer(cfg config.Config, st store.Store, hub *live.Hub) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		store:    st,
		hub:      hub,
		tmpl:     tmpl,
		validate: validator.New(),
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cleanPath)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	staticRoot, _ := fs.Sub(staticFiles, "static")
	staticPrefix := joinPath(s.cfg.BasePath, "/static")
	r.Handle(staticPrefix+"/*", http.StripPrefix(staticPrefix+"/", http.FileServer(http.FS(staticRoot))))

	app := func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(s.redirectAuthed)
			r.Get("/login", s.handleLoginPage)
			r.Get("/signup", s.handleSignupPage)
			r.Post("/auth/login", s.handleLogin)
			r.Post("/auth/signup", s.handleSignup)
			r.Post("/auth/google", s.handleGoogleSignIn)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.handleDashboardPage)
			r.Get("/archived", s.handleArchivedPage)
			r.Get("/student/{studentID}", s.handleStudentPage)
			r.Post("/auth/logout", s.handleLogout)
			r.Post("/action", s.handleAction)
			r.Get("/live/students", s.handleLiveStudents)
			r.Get("/live/student/{studentID}", s.handleLiveStudent)
			r.Get("/live/student/{studentID}/sessions", s.handleLiveSessions)
		})
	}

	if s.cfg.BasePath == "/" {
		app(r)
	} else {
		r.Route(s.cfg.BasePath, app)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, s.cfg.BasePath, http.StatusSeeOther)
		})
	}

	r.NotFound(s.handleNotFound)
	return r
}

// cleanPath applies the one normalization rule: collapse duplicate slashes
// and strip a single trailing slash, so /login/ and //login route like
// /login.
func cleanPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		for strings.Contains(path, "//") {
			path = strings.ReplaceAll(path, "//", "/")
		}
		if len(path) > 1 && strings.HasSuffix(path, "/") {
			path = strings.TrimSuffix(path, "/")
		}
		if path == "" {
			path = "/"
		}
		r.URL.Path = path
		next.ServeHTTP(w, r)
	})
}

// joinPath joins the base prefix with an app path the way the navigation
// helper did: concatenate, then collapse any double slash.
func joinPath(base, path string) string {
	joined := base + path
	for strings.Contains(joined, "//") {
		joined = strings.ReplaceAll(joined, "//", "/")
	}
	if len(joined) > 1 {
		joined = strings.TrimSuffix(joined, "/")
	}
	if joined == "" {
		return "/"
	}
	return joined
}

// Session guard

type identityKey struct{}

// sessionMiddleware resolves the session cookie into the request identity.
// It never rejects; route groups decide what an absent identity means.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := s.identityFromRequest(r)
		ctx := context.WithValue(r.Context(), identityKey{}, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) identityFromRequest(r *http.Request) *auth.Claims {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims, err := auth.ParseSessionToken(s.cfg.JWTSecret, cookie.Value)
	if err != nil {
		return nil
	}
	return claims
}

func identityFromContext(ctx context.Context) *auth.Claims {
	ident, _ := ctx.Value(identityKey{}).(*auth.Claims)
	return ident
}

// requireAuth redirects unauthenticated requests to the login page,
// stashing the requested deep link for replay after sign-in.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identityFromContext(r.Context()) == nil {
			if r.Method == http.MethodGet {
				s.stashRedirect(w, r.URL.Path)
			}
			http.Redirect(w, r, joinPath(s.cfg.BasePath, "/login"), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// redirectAuthed sends signed-in tutors away from the auth pages.
func (s *Server) redirectAuthed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identityFromContext(r.Context()) != nil {
			http.Redirect(w, r, joinPath(s.cfg.BasePath, "/"), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleNotFound follows the guard order of the route loop: an anonymous
// visitor is sent to login whatever they asked for; a signed-in tutor gets
// the 404 view.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if s.identityFromRequest(r) == nil {
		if r.Method == http.MethodGet {
			s.stashRedirect(w, r.URL.Path)
		}
		http.Redirect(w, r, joinPath(s.cfg.BasePath, "/login"), http.StatusSeeOther)
		return
	}
	s.renderNotFound(w)
}

// Cookies

func (s *Server) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSession(w http.ResponseWriter) {
	clearCookie(w, sessionCookie)
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

// flash sets the one-shot message the next page render shows, the alert
// analogue.
func (s *Server) flash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(message),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) takeFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	clearCookie(w, flashCookie)
	message, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return message
}

func (s *Server) stashRedirect(w http.ResponseWriter, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     redirectCookie,
		Value:    url.QueryEscape(path),
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeRedirect pops the stashed deep link, if it is a safe local path.
func (s *Server) takeRedirect(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(redirectCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	clearCookie(w, redirectCookie)
	path, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return ""
	}
	return path
}

// localPath restricts redirect targets to in-app paths.
func (s *Server) localPath(path, fallback string) string {
	if strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "//") {
		return path
	}
	return joinPath(s.cfg.BasePath, fallback)
}
