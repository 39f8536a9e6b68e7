package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/marcus/soilnet/internal/serverdb"
)

// SignupRequest is the JSON body for POST /v1/auth/signup.
type SignupRequest struct {
	Email    string            `json:"email" validate:"required,email,max=254"`
	Password string            `json:"password" validate:"required,min=8,max=72"`
	Role     string            `json:"role" validate:"required,oneof=farmer consultant"`
	Metadata map[string]string `json:"metadata" validate:"omitempty,dive,keys,oneof=full_name phone,endkeys,max=200"`
}

// LoginRequest is the JSON body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	APIKey    string `json:"api_key"`
	ExpiresAt string `json:"expires_at"`
}

// MeResponse is returned by GET /v1/auth/me.
type MeResponse struct {
	UserID  string            `json:"user_id"`
	Email   string            `json:"email"`
	Role    string            `json:"role"`
	Profile *serverdb.Profile `json:"profile,omitempty"`
}

// handleSignup handles POST /v1/auth/signup.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.config.AllowSignup {
		writeError(w, http.StatusForbidden, ErrCodeSignupDisabled, "signups are disabled")
		return
	}
	var req SignupRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	user, err := s.store.CreateUser(req.Email, req.Password, req.Role, req.Metadata)
	if errors.Is(err, serverdb.ErrEmailTaken) {
		s.logAuthEvent(req.Email, serverdb.AuthEventDuplicate, map[string]string{"ip": clientIP(r)})
		writeError(w, http.StatusConflict, ErrCodeAlreadyRegistered, "User already registered")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("create user", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to create user")
		return
	}

	resp, ok := s.issueKey(w, r, user, "signup")
	if !ok {
		return
	}
	s.metrics.RecordSignup()
	s.logAuthEvent(user.Email, serverdb.AuthEventSignup, map[string]string{"role": user.Role, "ip": clientIP(r)})
	logFor(r.Context()).Info("user signed up", "uid", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, resp)
}

// handleLogin handles POST /v1/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	user, err := s.store.Authenticate(req.Email, req.Password)
	if errors.Is(err, serverdb.ErrInvalidCredentials) {
		s.logAuthEvent(req.Email, serverdb.AuthEventLoginFailed, map[string]string{"ip": clientIP(r)})
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		logFor(r.Context()).Error("authenticate", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to authenticate")
		return
	}

	resp, ok := s.issueKey(w, r, user, "login")
	if !ok {
		return
	}
	s.logAuthEvent(user.Email, serverdb.AuthEventLogin, map[string]string{"ip": clientIP(r)})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) issueKey(w http.ResponseWriter, r *http.Request, user *serverdb.User, name string) (*AuthResponse, bool) {
	expiry := time.Now().UTC().Add(s.config.APIKeyTTL)
	if s.config.APIKeyTTL <= 0 {
		expiry = time.Now().UTC().Add(365 * 24 * time.Hour)
	}
	plaintext, _, err := s.store.GenerateAPIKey(user.ID, name, &expiry)
	if err != nil {
		logFor(r.Context()).Error("generate api key", "uid", user.ID, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to generate api key")
		return nil, false
	}
	return &AuthResponse{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		APIKey:    plaintext,
		ExpiresAt: expiry.Format(time.RFC3339),
	}, true
}

// handleEmailExists handles GET /v1/auth/exists?email=.
func (s *Server) handleEmailExists(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "valid email is required")
		return
	}
	exists, err := s.store.EmailExists(email)
	if err != nil {
		logFor(r.Context()).Error("check email", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to check email")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// handleMe handles GET /v1/auth/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())
	profile, err := s.store.GetProfileByUserID(user.UserID)
	if err != nil {
		logFor(r.Context()).Error("get profile", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{UserID: user.UserID, Email: user.Email, Role: user.Role, Profile: profile})
}

// logAuthEvent logs an auth event, silently ignoring errors.
func (s *Server) logAuthEvent(email, eventType string, meta map[string]string) {
	metadata := "{}"
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			metadata = string(b)
		}
	}
	if err := s.store.InsertAuthEvent(email, eventType, metadata); err != nil {
		slog.Warn("log auth event", "type", eventType, "err", err)
	}
}
