package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forgebuild/foreman/internal/queue"
	"github.com/forgebuild/foreman/internal/repocfg"
	"github.com/forgebuild/foreman/internal/session"
)

type startSessionResponse struct {
	SessionID string `json:"sessionId"`
	StreamURL string `json:"streamUrl"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	req, err := readJSON[session.Request](w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.sessions.StartSession(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, startSessionResponse{
		SessionID: id,
		StreamURL: fmt.Sprintf("/api/sessions/%s/stream", id),
	})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.GetStatus(chi.URLParam(r, "id"))
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	after := -1
	if raw := r.URL.Query().Get("after"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be an integer")
			return
		}
		after = n
	}

	evs, err := s.sessions.GetEvents(chi.URLParam(r, "id"), after)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	// An empty body is fine; reason is optional.
	if r.ContentLength > 0 {
		parsed, err := readJSON[struct {
			Reason string `json:"reason"`
		}](w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		body = parsed
	}

	if !s.sessions.Cancel(chi.URLParam(r, "id"), body.Reason) {
		writeError(w, http.StatusNotFound, "session not found or not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleListActive(w http.ResponseWriter, r *http.Request) {
	active := s.sessions.ListActive()
	if active == nil {
		active = []session.Status{}
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	hist := s.sessions.GetHistory(limit)
	if hist == nil {
		hist = []session.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	body, err := readJSON[struct {
		MaxAge string `json:"maxAge"`
	}](w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxAge, err := time.ParseDuration(body.MaxAge)
	if err != nil || maxAge < 0 {
		writeError(w, http.StatusBadRequest, "maxAge must be a duration like 24h")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": s.sessions.Cleanup(maxAge)})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "build queue not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.queue.Status())
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "build queue not configured")
		return
	}
	job, err := readJSON[queue.BuildJob](w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if job.Repo == "" || job.Branch == "" {
		writeError(w, http.StatusBadRequest, "repo and branch are required")
		return
	}
	if job.Trigger == "" {
		job.Trigger = queue.TriggerManual
	}
	s.queue.Enqueue(job)
	writeJSON(w, http.StatusAccepted, map[string]string{"key": job.Key()})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "build queue not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": s.queue.Clear()})
}

func (s *Server) handleRemoveFromQueue(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "build queue not configured")
		return
	}
	body, err := readJSON[struct {
		Repo   string `json:"repo"`
		Branch string `json:"branch"`
	}](w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.queue.Remove(body.Repo, body.Branch) {
		writeError(w, http.StatusNotFound, "job not queued")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

// handleWebhookPush enqueues a build for pushes to repos with auto-build
// enabled.
func (s *Server) handleWebhookPush(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "build queue not configured")
		return
	}
	body, err := readJSON[struct {
		Repo   string        `json:"repo"`
		Branch string        `json:"branch"`
		Commit *queue.Commit `json:"commit"`
	}](w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Repo == "" || body.Branch == "" {
		writeError(w, http.StatusBadRequest, "repo and branch are required")
		return
	}

	if s.repos != nil {
		cfg, ok := s.repos.Get(body.Repo)
		if !ok || !cfg.AutoBuild {
			writeJSON(w, http.StatusOK, map[string]bool{"enqueued": false})
			return
		}
	}

	s.queue.Enqueue(queue.BuildJob{
		Repo:    body.Repo,
		Branch:  body.Branch,
		Trigger: queue.TriggerWebhook,
		Commit:  body.Commit,
	})
	writeJSON(w, http.StatusAccepted, map[string]bool{"enqueued": true})
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	if s.repos == nil {
		writeError(w, http.StatusServiceUnavailable, "repo config store not configured")
		return
	}
	repos := s.repos.List()
	if repos == nil {
		repos = []repocfg.RepoConfig{}
	}
	writeJSON(w, http.StatusOK, repos)
}

func (s *Server) handleUpsertRepo(w http.ResponseWriter, r *http.Request) {
	if s.repos == nil {
		writeError(w, http.StatusServiceUnavailable, "repo config store not configured")
		return
	}
	cfg, err := readJSON[repocfg.RepoConfig](w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if cfg.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.repos.Update(cfg.Name, func(c *repocfg.RepoConfig) { *c = cfg }); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
