package http

import (
	"errors"
	"log"
	"net/http"
	"strings"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"

	"github.com/m-sarabi/tutor-track/internal/auth"
	"github.com/m-sarabi/tutor-track/internal/crypto"
	"github.com/m-sarabi/tutor-track/internal/model"
	"github.com/m-sarabi/tutor-track/internal/store"
)

const minPasswordLength = 6

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(strings.ToLower(r.PostFormValue("email")))
	password := r.PostFormValue("password")

	if email == "" || password == "" {
		s.signupError(w, http.StatusBadRequest, "Email and password are required.")
		return
	}
	if len(password) < minPasswordLength {
		s.signupError(w, http.StatusBadRequest, "Password should be at least 6 characters.")
		return
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		log.Printf("signup: hash password: %v", err)
		s.signupError(w, http.StatusInternalServerError, "Sign up failed. Please try again.")
		return
	}

	tutor, err := s.store.CreateTutor(r.Context(), model.Tutor{
		Email:        email,
		Name:         "New Tutor",
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			s.signupError(w, http.StatusConflict, "Sign up failed: the email address is already in use.")
			return
		}
		log.Printf("signup: create tutor: %v", err)
		s.signupError(w, http.StatusInternalServerError, "Sign up failed. Please try again.")
		return
	}

	s.startSession(w, r, tutor)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(strings.ToLower(r.PostFormValue("email")))
	password := r.PostFormValue("password")

	if email == "" || password == "" {
		s.loginError(w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	tutor, err := s.store.GetTutorByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.loginError(w, http.StatusUnauthorized, "Login failed: invalid email or password.")
			return
		}
		log.Printf("login: get tutor: %v", err)
		s.loginError(w, http.StatusInternalServerError, "Login failed. Please try again.")
		return
	}
	if err := crypto.CheckPassword(tutor.PasswordHash, password); err != nil {
		s.loginError(w, http.StatusUnauthorized, "Login failed: invalid email or password.")
		return
	}

	s.startSession(w, r, tutor)
}

// handleGoogleSignIn accepts the ID token the Google Identity Services
// button posts back, verifies it, and signs the tutor in, creating the
// account on first sight of the email.
func (s *Server) handleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.cfg.GoogleClientID == "" {
		s.loginError(w, http.StatusNotFound, "Google Sign-in is not configured.")
		return
	}
	credential := r.PostFormValue("credential")
	if credential == "" {
		s.loginError(w, http.StatusBadRequest, "Google Sign-in failed: missing credential.")
		return
	}

	verifier := googleAuthIDTokenVerifier.Verifier{}
	if err := verifier.VerifyIDToken(credential, []string{s.cfg.GoogleClientID}); err != nil {
		log.Printf("google sign-in: verify: %v", err)
		s.loginError(w, http.StatusUnauthorized, "Google Sign-in failed.")
		return
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(credential)
	if err != nil || claimSet.Email == "" {
		s.loginError(w, http.StatusUnauthorized, "Google Sign-in failed.")
		return
	}

	email := strings.TrimSpace(strings.ToLower(claimSet.Email))
	tutor, err := s.store.GetTutorByEmail(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		name := claimSet.Name
		if name == "" {
			name = "New Tutor"
		}
		tutor, err = s.store.CreateTutor(r.Context(), model.Tutor{Email: email, Name: name})
	}
	if err != nil {
		log.Printf("google sign-in: tutor lookup: %v", err)
		s.loginError(w, http.StatusInternalServerError, "Google Sign-in failed.")
		return
	}

	s.startSession(w, r, tutor)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSession(w)
	http.Redirect(w, r, joinPath(s.cfg.BasePath, "/login"), http.StatusSeeOther)
}

// startSession issues the session cookie and replays a stashed deep link,
// if one survived the login redirect.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, tutor model.Tutor) {
	token, err := auth.NewSessionToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.SessionTTL, auth.Claims{
		TutorID: tutor.ID,
		Email:   tutor.Email,
		Name:    tutor.Name,
	})
	if err != nil {
		log.Printf("start session: token: %v", err)
		s.loginError(w, http.StatusInternalServerError, "Login failed. Please try again.")
		return
	}
	s.setSession(w, token)

	target := s.takeRedirect(w, r)
	if target == "" {
		target = joinPath(s.cfg.BasePath, "/")
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) loginError(w http.ResponseWriter, status int, message string) {
	s.tmpl.page(w, status, "login.html", authPage{
		Base:           s.cfg.BasePath,
		Error:          message,
		GoogleClientID: s.cfg.GoogleClientID,
	})
}

func (s *Server) signupError(w http.ResponseWriter, status int, message string) {
	s.tmpl.page(w, status, "signup.html", authPage{
		Base:  s.cfg.BasePath,
		Error: message,
	})
}
