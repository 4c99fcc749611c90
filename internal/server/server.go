// Package server exposes the orchestration core over HTTP: JSON handlers
// for session, queue, and repo-config operations, plus a WebSocket event
// stream with catch-up replay.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/forgebuild/foreman/internal/queue"
	"github.com/forgebuild/foreman/internal/repocfg"
	"github.com/forgebuild/foreman/internal/session"
)

const maxRequestBody = 1 << 20

// Server bundles the core services behind an HTTP router.
type Server struct {
	sessions  *session.Manager
	queue     *queue.Queue
	repos     *repocfg.Store
	log       *slog.Logger
	keepalive time.Duration
}

// Options configures a Server.
type Options struct {
	Sessions *session.Manager
	Queue    *queue.Queue
	Repos    *repocfg.Store
	Logger   *slog.Logger
	// KeepaliveInterval paces WebSocket pings; zero means 30s.
	KeepaliveInterval time.Duration
}

// New builds a Server. Sessions is required; the rest are optional and
// their routes respond 503 when absent.
func New(opts Options) (*Server, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	keepalive := opts.KeepaliveInterval
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	return &Server{
		sessions:  opts.Sessions,
		queue:     opts.Queue,
		repos:     opts.Repos,
		log:       log,
		keepalive: keepalive,
	}, nil
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleStartSession)
		r.Get("/sessions", s.handleListActive)
		r.Get("/sessions/{id}", s.handleGetStatus)
		r.Get("/sessions/{id}/events", s.handleGetEvents)
		r.Post("/sessions/{id}/cancel", s.handleCancel)
		r.Get("/sessions/{id}/stream", s.handleStream)
		r.Get("/history", s.handleHistory)
		r.Post("/cleanup", s.handleCleanup)

		r.Get("/queue", s.handleQueueStatus)
		r.Post("/queue", s.handleEnqueue)
		r.Delete("/queue", s.handleClearQueue)
		r.Post("/queue/remove", s.handleRemoveFromQueue)
		r.Post("/webhook/push", s.handleWebhookPush)

		r.Get("/repos", s.handleListRepos)
		r.Post("/repos", s.handleUpsertRepo)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes the request body into T with a size cap and strict
// field checking.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("invalid request body: %w", err)
	}
	return v, nil
}
