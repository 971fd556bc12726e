package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/m-sarabi/tutor-track/internal/auth"
	"github.com/m-sarabi/tutor-track/internal/config"
	"github.com/m-sarabi/tutor-track/internal/live"
	"github.com/m-sarabi/tutor-track/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Memory) {
	t.Helper()
	cfg := config.Config{
		JWTSecret:  "test-secret",
		JWTIssuer:  "tutortrack",
		SessionTTL: time.Hour,
		BasePath:   "/tutor-track",
	}
	mem := store.NewMemory(nil)
	srv, err := NewServer(cfg, mem, live.NewHub(nil))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, mem
}

func sessionCookieFor(t *testing.T, srv *Server, tutorID string) *http.Cookie {
	t.Helper()
	token, err := auth.NewSessionToken(srv.cfg.JWTSecret, srv.cfg.JWTIssuer, srv.cfg.SessionTTL, auth.Claims{
		TutorID: tutorID,
		Email:   "tutor@example.com",
		Name:    "Test Tutor",
	})
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	return &http.Cookie{Name: sessionCookie, Value: token}
}

func doGet(srv *Server, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func doPost(srv *Server, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func cookieValue(rec *httptest.ResponseRecorder, name string) (string, bool) {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name && cookie.MaxAge >= 0 {
			value, err := url.QueryUnescape(cookie.Value)
			if err != nil {
				return "", false
			}
			return value, value != ""
		}
	}
	return "", false
}

func TestRootRedirectsToBasePath(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doGet(srv, "/")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/tutor-track" {
		t.Fatalf("expected redirect to /tutor-track, got %q", got)
	}
}

func TestGuardRedirectsAnonymousToLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/tutor-track/", "/tutor-track/archived", "/tutor-track/student/abc"} {
		rec := doGet(srv, path)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("%s: expected 303, got %d", path, rec.Code)
		}
		if got := rec.Header().Get("Location"); got != "/tutor-track/login" {
			t.Fatalf("%s: expected redirect to login, got %q", path, got)
		}
	}
}

func TestGuardStashesAndReplaysDeepLink(t *testing.T) {
	srv, mem := newTestServer(t)

	rec := doGet(srv, "/tutor-track/student/abc123")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	var stash *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == redirectCookie {
			stash = cookie
		}
	}
	if stash == nil {
		t.Fatal("expected deep link stash cookie")
	}

	doPost(srv, "/tutor-track/auth/signup", url.Values{
		"email":    {"tutor@example.com"},
		"password": {"secret123"},
	})
	tutor, err := mem.GetTutorByEmail(context.Background(), "tutor@example.com")
	if err != nil {
		t.Fatalf("GetTutorByEmail: %v", err)
	}

	rec = doPost(srv, "/tutor-track/auth/login", url.Values{
		"email":    {tutor.Email},
		"password": {"secret123"},
	}, stash)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/tutor-track/student/abc123" {
		t.Fatalf("expected deep link replay, got %q", got)
	}
}

func TestUnknownPathAuthenticatedGets404(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := sessionCookieFor(t, srv, "tutor-1")
	rec := doGet(srv, "/tutor-track/no-such-page", cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Page not found") {
		t.Fatalf("expected not-found page, got %q", rec.Body.String())
	}
}

func TestUnknownPathAnonymousRedirectsToLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doGet(srv, "/tutor-track/no-such-page")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/tutor-track/login" {
		t.Fatalf("expected redirect to login, got %q", got)
	}
}

func TestAuthPagesRedirectSignedInTutor(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := sessionCookieFor(t, srv, "tutor-1")
	for _, path := range []string{"/tutor-track/login", "/tutor-track/signup"} {
		rec := doGet(srv, path, cookie)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("%s: expected 303, got %d", path, rec.Code)
		}
		if got := rec.Header().Get("Location"); got != "/tutor-track" {
			t.Fatalf("%s: expected redirect home, got %q", path, got)
		}
	}
}

func TestCleanPathNormalizesSlashes(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/tutor-track/login/", "//tutor-track//login"} {
		rec := doGet(srv, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestExpiredSessionTreatedAsAnonymous(t *testing.T) {
	srv, _ := newTestServer(t)
	token, err := auth.NewSessionToken(srv.cfg.JWTSecret, srv.cfg.JWTIssuer, -time.Minute, auth.Claims{TutorID: "tutor-1"})
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	rec := doGet(srv, "/tutor-track/", &http.Cookie{Name: sessionCookie, Value: token})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/tutor-track/login" {
		t.Fatalf("expected redirect to login, got %q", got)
	}
}

func TestJoinPath(t *testing.T) {
	cases := []struct {
		base, path, want string
	}{
		{"/tutor-track", "/", "/tutor-track"},
		{"/tutor-track", "/login", "/tutor-track/login"},
		{"/tutor-track/", "/login", "/tutor-track/login"},
		{"/", "/login", "/login"},
		{"/", "/", "/"},
	}
	for _, tc := range cases {
		if got := joinPath(tc.base, tc.path); got != tc.want {
			t.Errorf("joinPath(%q, %q) = %q, want %q", tc.base, tc.path, got, tc.want)
		}
	}
}

func TestTakeRedirectRejectsExternalTargets(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, bad := range []string{"https://evil.example", "//evil.example/x", "relative/path"} {
		req := httptest.NewRequest(http.MethodGet, "/tutor-track/login", nil)
		req.AddCookie(&http.Cookie{Name: redirectCookie, Value: url.QueryEscape(bad)})
		rec := httptest.NewRecorder()
		if got := srv.takeRedirect(rec, req); got != "" {
			t.Errorf("takeRedirect(%q) = %q, want empty", bad, got)
		}
	}
}
