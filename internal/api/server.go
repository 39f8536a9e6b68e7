package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/marcus/soilnet/internal/inference"
	"github.com/marcus/soilnet/internal/serverdb"
	"github.com/marcus/soilnet/internal/storage"
)

// Request body limits.
const (
	maxJSONBytes   = 1 << 20
	maxUploadBytes = 60 << 20
)

// Server is the HTTP API server for soilnet.
type Server struct {
	config      Config
	http        *http.Server
	store       *serverdb.ServerDB
	files       *storage.Store
	classifier  inference.Classifier
	metrics     *Metrics
	rateLimiter *RateLimiter
	validate    *validator.Validate
	cancel      context.CancelFunc
}

// NewServer creates a new Server with the given config, store, file store
// and soil classifier.
func NewServer(cfg Config, store *serverdb.ServerDB, files *storage.Store, classifier inference.Classifier) (*Server, error) {
	if store == nil || files == nil {
		return nil, fmt.Errorf("store and file store are required")
	}
	s := &Server{
		config:      cfg,
		store:       store,
		files:       files,
		classifier:  classifier,
		metrics:     NewMetrics(),
		rateLimiter: NewRateLimiter(),
		validate:    newValidator(),
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.rateLimiter.Run(ctx.Done(), 5*time.Minute)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("cleanup panic", "panic", r)
			}
		}()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.store.CleanupAuthEvents(s.config.AuthEventRetention)
				if err != nil {
					slog.Error("cleanup auth events", "err", err)
				} else if n > 0 {
					slog.Info("cleaned up auth events", "count", n)
				}
			}
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.http.Shutdown(ctx)
}

// Handler returns the server's HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health & metrics
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metricz", s.handleMetrics)

	// Auth (public)
	mux.HandleFunc("POST /v1/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /v1/auth/exists", s.handleEmailExists)
	mux.HandleFunc("GET /v1/auth/me", s.requireAuth(s.handleMe))

	// Registration
	mux.HandleFunc("GET /v1/profiles/{userID}", s.requireAuth(s.withRateLimit(s.handleGetProfile)))
	mux.HandleFunc("POST /v1/uploads", s.requireAuth(s.withRateLimit(s.handleUpload)))
	mux.HandleFunc("POST /v1/signup/finalize", s.requireAuth(s.withRateLimit(s.handleFinalize)))
	mux.Handle("GET /files/{path...}", http.StripPrefix("/files", s.files.Handler()))

	// Consultant farmer management
	mux.HandleFunc("GET /v1/farmers", s.requireRole(serverdb.RoleConsultant, s.withRateLimit(s.handleListFarmers)))
	mux.HandleFunc("POST /v1/farmers", s.requireRole(serverdb.RoleConsultant, s.withRateLimit(s.handleCreateFarmer)))
	mux.HandleFunc("GET /v1/farmers/{id}", s.requireRole(serverdb.RoleConsultant, s.withRateLimit(s.handleGetFarmer)))
	mux.HandleFunc("PATCH /v1/farmers/{id}", s.requireRole(serverdb.RoleConsultant, s.withRateLimit(s.handleUpdateFarmer)))
	mux.HandleFunc("DELETE /v1/farmers/{id}", s.requireRole(serverdb.RoleConsultant, s.withRateLimit(s.handleDeleteFarmer)))

	// Notifications
	mux.HandleFunc("GET /v1/notifications", s.requireAuth(s.withRateLimit(s.handleListNotifications)))
	mux.HandleFunc("POST /v1/notifications/read-all", s.requireAuth(s.withRateLimit(s.handleReadAllNotifications)))
	mux.HandleFunc("POST /v1/notifications/{id}/read", s.requireAuth(s.withRateLimit(s.handleReadNotification)))
	mux.HandleFunc("DELETE /v1/notifications/{id}", s.requireAuth(s.withRateLimit(s.handleDeleteNotification)))

	// Soil classification
	mux.HandleFunc("POST /v1/soil/classify", s.requireAuth(s.withRateLimit(s.handleClassify)))
	mux.HandleFunc("GET /v1/soil/results", s.requireAuth(s.withRateLimit(s.handleListSoilResults)))
	mux.HandleFunc("GET /v1/soil/results/{id}", s.requireAuth(s.withRateLimit(s.handleGetSoilResult)))

	return chain(mux, recoveryMiddleware, requestIDMiddleware, loggerMiddleware, metricsMiddleware(s.metrics), loggingMiddleware, s.CORSMiddleware, maxBytesMiddleware(maxJSONBytes, maxUploadBytes), authRateLimitMiddleware(s.rateLimiter, s.config.RateLimitAuth))
}

// handleHealth returns a health check response, pinging the server DB.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics returns a snapshot of server metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
