// Package admin serves the operator interface: login, credential
// inventory, enrollment kick-off and the OAuth callback. It binds
// separately from the MCP endpoint so it can stay off the public
// network entirely.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/calmcp/calmcp/internal/credentials"
	"github.com/calmcp/calmcp/internal/enroll"
	"github.com/calmcp/calmcp/internal/logging"
)

const (
	// DefaultAddr is the default bind address for the admin server.
	DefaultAddr = ":5000"

	defaultReadHeaderTimeout = 10 * time.Second
)

// Config holds the admin server settings.
type Config struct {
	Addr          string
	Username      string
	Password      string
	SessionSecret string
}

// Server is the operator-facing HTTP server.
type Server struct {
	httpServer *http.Server
	cfg        Config
	sessions   *SessionManager
	store      credentials.Store
	enroller   *enroll.Enroller
	onDelete   func(userID string)
	logger     *slog.Logger
}

// NewServer creates the admin server. onDelete, if non-nil, runs after
// a credential record is removed so callers can evict derived state.
func NewServer(cfg Config, store credentials.Store, enroller *enroll.Enroller, onDelete func(userID string), logger *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		sessions: NewSessionManager(cfg.SessionSecret),
		store:    store,
		enroller: enroller,
		onDelete: onDelete,
		logger:   logging.WithComponent(logger, "admin"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.Handle("GET /credentials", s.requireSession(s.handleListCredentials))
	mux.Handle("DELETE /credentials/{user}", s.requireSession(s.handleDeleteCredentials))
	mux.Handle("GET /oauth2authorize/{user}", s.requireSession(s.handleAuthorize))
	mux.Handle("GET /oauth2callback", s.requireSession(s.handleCallback))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	return s
}

// Start starts the server in a blocking manner.
func (s *Server) Start() error {
	s.logger.Info("starting admin server", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down admin server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Password)) == 1
	if !userOK || !passOK {
		s.logger.Warn("admin login rejected", "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.sessions.Issue(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged in"})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		if _, err := s.sessions.Validate(cookie.Value); err != nil {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		next(w, r)
	})
}

type credentialSummary struct {
	UserID    string   `json:"user_id"`
	ExpiresAt string   `json:"expires_at"`
	Scopes    []string `json:"scopes,omitempty"`
	UpdatedAt string   `json:"updated_at"`
}

// handleListCredentials lists enrolled users. Token material never
// leaves the store.
func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "credential store unavailable")
		return
	}

	summaries := make([]credentialSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, credentialSummary{
			UserID:    rec.UserID,
			ExpiresAt: rec.ExpiresAt.Format(time.RFC3339),
			Scopes:    rec.Scopes,
			UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"credentials": summaries})
}

func (s *Server) handleDeleteCredentials(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	if err := s.store.Delete(r.Context(), userID); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no credentials for user")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "credential store unavailable")
		return
	}

	if s.onDelete != nil {
		s.onDelete(userID)
	}

	s.logger.Info("credentials deleted",
		logging.Operation("delete_credentials"),
		logging.User(userID),
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleAuthorize starts an enrollment flow and redirects the
// operator's browser to the provider consent page.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	authURL, err := s.enroller.Start(userID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback completes the enrollment round trip.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		writeError(w, http.StatusBadRequest, "authorization denied: "+errParam)
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "missing state or code")
		return
	}

	userID, err := s.enroller.Complete(r.Context(), state, code)
	if err != nil {
		switch {
		case errors.Is(err, enroll.ErrFlowNotFound), errors.Is(err, enroll.ErrFlowExpired):
			writeError(w, http.StatusBadRequest, "authorization flow not found or expired, restart enrollment")
		default:
			writeError(w, http.StatusBadGateway, "enrollment failed: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "enrolled",
		"user_id": userID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
