// Package server exposes the webhook endpoint that accepts quiz-solving
// requests and launches chain runs in the background.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"quizsolver/internal/config"
	"quizsolver/internal/logging"
)

// LaunchFunc starts one chain run in the background and returns its run
// identifier. It must not block the request handler.
type LaunchFunc func(url string) string

// solveRequest is the webhook payload.
type solveRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// Server validates incoming requests against the operator identity and
// hands accepted URLs to the launcher.
type Server struct {
	cfg    *config.Config
	launch LaunchFunc
	http   *http.Server
}

// New builds a server. launch is invoked once per accepted request.
func New(cfg *config.Config, launch LaunchFunc) *Server {
	s := &Server{cfg: cfg, launch: launch}
	s.http = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route mux, exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleInfo(w, r)
	case http.MethodPost:
		s.handleSolve(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method not allowed"})
	}
}

// handleSolve validates the payload and operator identity, then starts a
// background chain run. The secret is checked before anything else
// happens so an unauthorized caller cannot trigger page fetches.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.ServerWarn("rejected request: invalid payload: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid JSON payload"})
		return
	}
	if req.Email == "" || req.Secret == "" || req.URL == "" {
		logging.ServerWarn("rejected request: missing fields")
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Missing required fields: email, secret, url"})
		return
	}

	if req.Secret != s.cfg.Operator.Secret {
		logging.ServerWarn("rejected request for %s: invalid secret", req.URL)
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Invalid secret"})
		return
	}
	if !strings.EqualFold(req.Email, s.cfg.Operator.Email) {
		logging.ServerWarn("rejected request for %s: email mismatch", req.URL)
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Email does not match configured operator"})
		return
	}

	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "URL must be absolute"})
		return
	}

	runID := s.launch(req.URL)
	if runID == "" {
		runID = uuid.New().String()[:8]
	}
	logging.Server("accepted quiz request for %s (run %s)", req.URL, runID)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "quiz solving started",
		"url":     req.URL,
		"run_id":  runID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.cfg.Name,
		"version": s.cfg.Version,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": s.cfg.Name,
		"version": s.cfg.Version,
		"endpoints": map[string]string{
			"POST /":      "submit a quiz URL for solving",
			"GET /health": "health check",
		},
	})
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logging.Server("listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Server("shutting down")
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.ServerError("write response: %v", err)
	}
}
