package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgebuild/foreman/internal/agent"
	"github.com/forgebuild/foreman/internal/ai"
	"github.com/forgebuild/foreman/internal/capability"
	"github.com/forgebuild/foreman/internal/events"
	"github.com/forgebuild/foreman/internal/stream"
)

// ErrNotFound is returned for lookups of unknown session ids.
var ErrNotFound = fmt.Errorf("session not found")

// Process is the supervisor-facing view of a spawned subprocess.
// agent.Agent satisfies it; tests substitute their own.
type Process interface {
	Wait(ctx context.Context) (*agent.Result, error)
	Stop(grace time.Duration)
	Kill() error
	Output() []string
}

// SpawnFunc starts the agent subprocess for a session.
type SpawnFunc func(ctx context.Context, cfg agent.Config, prompt string) (Process, error)

func defaultSpawn(ctx context.Context, cfg agent.Config, prompt string) (Process, error) {
	return agent.Spawn(ctx, cfg, prompt)
}

// Options configures a Manager. Zero values get sensible defaults.
type Options struct {
	// Binary is the agent CLI executable.
	Binary string
	// Model is the default model override for new sessions.
	Model string
	// GracePeriod is how long Stop waits before force-killing.
	GracePeriod time.Duration
	// HistoryLimit bounds the terminal-session history ring.
	HistoryLimit int
	// DefaultTimeout replaces the preset timeout for requests that do
	// not override it themselves. Zero keeps the preset value.
	DefaultTimeout time.Duration
	// Registry resolves named tool-server templates.
	Registry capability.Registry
	// Logger receives lifecycle logs.
	Logger *slog.Logger
	// Summarizer refines derived summaries when configured. A nil
	// summarizer keeps the local derivation.
	Summarizer *ai.Summarizer
	// Spawn overrides subprocess creation. Test hook.
	Spawn SpawnFunc
}

// Manager owns every live session record. It is the single writer of
// session state; observers read through snapshots and the hub.
type Manager struct {
	opts  Options
	hub   *stream.Hub
	log   *slog.Logger
	spawn SpawnFunc

	mu       sync.Mutex
	sessions map[string]*record
	history  *historyRing
}

// record is the manager's live session entity.
type record struct {
	mu sync.Mutex

	id      string
	req     Request
	caps    capability.AgentCapabilities
	servers []capability.ToolServerDefinition

	state        State
	phase        string
	startedAt    time.Time
	lastActivity time.Time
	files        []string
	subagents    int
	errMsg       string

	proc  Process
	guard *agent.ConfigGuard
	timer *time.Timer

	finishOnce sync.Once
	done       chan struct{}
}

// NewManager builds a Manager publishing into hub.
func NewManager(hub *stream.Hub, opts Options) *Manager {
	if opts.Binary == "" {
		opts.Binary = "claude"
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 5 * time.Second
	}
	if opts.Registry == nil {
		opts.Registry = capability.DefaultRegistry()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	spawn := opts.Spawn
	if spawn == nil {
		spawn = defaultSpawn
	}
	return &Manager{
		opts:     opts,
		hub:      hub,
		log:      log,
		spawn:    spawn,
		sessions: make(map[string]*record),
		history:  newHistoryRing(opts.HistoryLimit),
	}
}

// StartSession validates the request, registers a pending session, and
// spawns the agent asynchronously. The returned id is immediately usable
// with GetStatus, GetEvents, and Subscribe.
func (m *Manager) StartSession(req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("prompt is required")
	}
	if req.Mode == "" {
		req.Mode = ModeTask
	}
	if !ValidMode(req.Mode) {
		return "", fmt.Errorf("invalid session mode %q", req.Mode)
	}
	if req.WorkingDir == "" {
		req.WorkingDir = "."
	}
	if req.Model == "" {
		req.Model = m.opts.Model
	}

	caps := capability.Resolve(req.Preset, req.Overrides)
	if m.opts.DefaultTimeout > 0 && (req.Overrides == nil || req.Overrides.Timeout == nil) {
		caps.Timeout = m.opts.DefaultTimeout
	}
	servers := capability.ResolveToolServers(m.opts.Registry, req.ToolServers, req.CustomTools)

	id := uuid.NewString()
	rec := &record{
		id:           id,
		req:          req,
		caps:         caps,
		servers:      servers,
		state:        StatePending,
		startedAt:    time.Now(),
		lastActivity: time.Now(),
		done:         make(chan struct{}),
	}

	m.hub.Register(id)
	m.mu.Lock()
	m.sessions[id] = rec
	m.mu.Unlock()

	m.log.Info("session created",
		"session_id", id, "mode", req.Mode, "working_dir", req.WorkingDir)

	go m.run(rec)

	return id, nil
}

// run drives one session from pending to a terminal state.
func (m *Manager) run(rec *record) {
	m.publish(rec, events.NewSessionStart(rec.id, events.SessionStartData{
		Mode:       string(rec.req.Mode),
		WorkingDir: rec.req.WorkingDir,
		Repo:       rec.req.Repo,
		Branch:     rec.req.Branch,
		Model:      rec.req.Model,
	}))

	if rec.caps.AllowMCP && len(rec.servers) > 0 {
		m.setPhase(rec, "writing tool config")
		m.publish(rec, events.NewProgress(rec.id, "setup", "writing tool server config", nil))
		guard, err := agent.WriteMCPConfig(rec.req.WorkingDir, rec.servers)
		if err != nil {
			m.finish(rec, StateFailed, false, "", fmt.Sprintf("tool config write failed: %v", err))
			return
		}
		rec.mu.Lock()
		rec.guard = guard
		terminal := rec.state.IsTerminal()
		rec.mu.Unlock()
		if terminal {
			// Cancel won the race while the config write was in
			// flight, so finish saw a nil guard. Restore here.
			if err := guard.Restore(); err != nil {
				m.log.Warn("tool config restore failed",
					"session_id", rec.id, "error", err)
			}
			return
		}
	}

	m.setPhase(rec, "spawning agent")
	m.publish(rec, events.NewProgress(rec.id, "setup", "spawning agent process", nil))

	// stdout and stderr are captured on separate goroutines; the parser
	// is single-stream, so line handling is serialized here.
	parser := events.NewParser(rec.id)
	var parseMu sync.Mutex
	cfg := agent.Config{
		Binary:       m.opts.Binary,
		WorkingDir:   rec.req.WorkingDir,
		Mode:         string(rec.req.Mode),
		SystemPrompt: rec.req.SystemPrompt,
		Capabilities: rec.caps,
		ToolServers:  rec.servers,
		Model:        rec.req.Model,
		AllowMacros:  rec.req.AllowMacros,
		Env:          rec.req.Env,
		OnLine: func(line string, stderr bool) {
			parseMu.Lock()
			evs := parser.ParseLine(line)
			spawned := parser.SubagentsSpawned()
			parseMu.Unlock()

			rec.mu.Lock()
			rec.lastActivity = time.Now()
			rec.subagents = spawned
			rec.mu.Unlock()

			for _, ev := range evs {
				m.publish(rec, ev)
			}
		},
	}
	prompt := agent.ComposePrompt(cfg, rec.req.Prompt)

	// Cancellation may have won the race during setup.
	rec.mu.Lock()
	if rec.state.IsTerminal() {
		rec.mu.Unlock()
		return
	}
	rec.mu.Unlock()

	proc, err := m.spawn(context.Background(), cfg, prompt)
	if err != nil {
		m.finish(rec, StateFailed, false, "", fmt.Sprintf("spawn failed: %v", err))
		return
	}

	rec.mu.Lock()
	if rec.state.IsTerminal() {
		// Cancelled between the check above and spawn completing.
		rec.mu.Unlock()
		_ = proc.Kill()
		return
	}
	rec.proc = proc
	rec.state = StateRunning
	rec.timer = time.AfterFunc(rec.caps.Timeout, func() {
		m.cancel(rec, fmt.Sprintf("session timed out after %s", rec.caps.Timeout))
	})
	rec.mu.Unlock()

	m.setPhase(rec, "running")

	res, err := proc.Wait(context.Background())
	if err != nil {
		m.finish(rec, StateFailed, false, "", fmt.Sprintf("agent wait failed: %v", err))
		return
	}
	if res.ExitCode == 0 {
		m.finish(rec, StateCompleted, true, "", "")
	} else {
		m.finish(rec, StateFailed, false, "", fmt.Sprintf("agent exited with code %d", res.ExitCode))
	}
}

// finish performs the single terminal transition: derived fields, the one
// session_end event, config restore, and the history record. Exactly one
// caller wins; later calls are no-ops.
func (m *Manager) finish(rec *record, state State, success bool, summary, errMsg string) {
	rec.finishOnce.Do(func() {
		rec.mu.Lock()
		if rec.timer != nil {
			rec.timer.Stop()
		}
		// The terminal state and the guard snapshot are taken in one
		// critical section. A config write still in flight sees the
		// terminal state when it records its guard and restores it
		// itself, so exactly one side restores.
		rec.state = state
		proc := rec.proc
		guard := rec.guard
		started := rec.startedAt
		subagents := rec.subagents
		rec.mu.Unlock()

		var output string
		if proc != nil {
			output = strings.Join(proc.Output(), "\n")
		}
		evs, _ := m.hub.Replay(rec.id)
		files := events.ExtractModifiedFiles(output, evs)
		if summary == "" {
			if errMsg != "" {
				summary = errMsg
			} else {
				summary = events.DeriveSummary(output, len(files), subagents)
				summary = m.opts.Summarizer.Summarize(context.Background(), output, summary)
			}
		}
		duration := time.Since(started)

		m.publish(rec, events.NewProgress(rec.id, "finishing", string(state), nil))
		m.publish(rec, events.NewSessionEnd(rec.id, success, summary, files, duration))

		if guard != nil {
			if err := guard.Restore(); err != nil {
				m.log.Warn("tool config restore failed",
					"session_id", rec.id, "error", err)
			}
		}

		rec.mu.Lock()
		rec.errMsg = errMsg
		rec.files = files
		rec.subagents = subagents
		rec.phase = ""
		rec.lastActivity = time.Now()
		rec.mu.Unlock()

		m.history.add(HistoryEntry{
			ID:            rec.id,
			Mode:          rec.req.Mode,
			Prompt:        rec.req.Prompt,
			State:         state,
			StartedAt:     started,
			Duration:      duration,
			FilesModified: files,
			Summary:       summary,
		})

		m.log.Info("session finished",
			"session_id", rec.id, "state", state, "duration", duration)

		close(rec.done)
	})
}

// cancel terminates rec with the given reason. Reports false when the
// session is already terminal.
func (m *Manager) cancel(rec *record, reason string) bool {
	rec.mu.Lock()
	if rec.state.IsTerminal() {
		rec.mu.Unlock()
		return false
	}
	proc := rec.proc
	rec.mu.Unlock()

	if proc != nil {
		proc.Stop(m.opts.GracePeriod)
	}
	m.finish(rec, StateCancelled, false, reason, "")
	return true
}

// Cancel requests termination of a session. Unknown or already-terminal
// sessions report false.
func (m *Manager) Cancel(id, reason string) bool {
	m.mu.Lock()
	rec, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	if reason == "" {
		reason = "cancelled by request"
	}
	return m.cancel(rec, reason)
}

// GetStatus returns a point-in-time snapshot of a session.
func (m *Manager) GetStatus(id string) (Status, error) {
	m.mu.Lock()
	rec, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return Status{}, ErrNotFound
	}
	return rec.snapshot(), nil
}

// GetEvents returns the session's events with index greater than after;
// pass after = -1 for the full log.
func (m *Manager) GetEvents(id string, after int) ([]events.StreamEvent, error) {
	evs, err := m.hub.EventsAfter(id, after)
	if err != nil {
		return nil, ErrNotFound
	}
	return evs, nil
}

// Subscribe attaches a callback to the session's event stream. Log entries
// with index greater than after are delivered first; pass -1 for the full
// log.
func (m *Manager) Subscribe(id string, after int, cb stream.Callback) (func(), error) {
	unsub, err := m.hub.Subscribe(id, after, cb)
	if err != nil {
		return nil, ErrNotFound
	}
	return unsub, nil
}

// StreamClosed reports whether the session's event stream has already seen
// its terminal event.
func (m *Manager) StreamClosed(id string) (bool, error) {
	closed, err := m.hub.Closed(id)
	if err != nil {
		return false, ErrNotFound
	}
	return closed, nil
}

// ListActive returns snapshots of all non-terminal sessions.
func (m *Manager) ListActive() []Status {
	m.mu.Lock()
	recs := make([]*record, 0, len(m.sessions))
	for _, rec := range m.sessions {
		recs = append(recs, rec)
	}
	m.mu.Unlock()

	var out []Status
	for _, rec := range recs {
		st := rec.snapshot()
		if !st.State.IsTerminal() {
			out = append(out, st)
		}
	}
	return out
}

// GetHistory returns up to limit terminal-session records, newest first.
func (m *Manager) GetHistory(limit int) []HistoryEntry {
	return m.history.list(limit)
}

// Cleanup purges terminal sessions idle longer than maxAge and returns
// how many were removed. Live sessions are never touched.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var stale []string
	for id, rec := range m.sessions {
		rec.mu.Lock()
		if rec.state.IsTerminal() && rec.lastActivity.Before(cutoff) {
			stale = append(stale, id)
		}
		rec.mu.Unlock()
	}
	for _, id := range stale {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, id := range stale {
		m.hub.Purge(id)
	}
	if len(stale) > 0 {
		m.log.Info("cleaned up sessions", "count", len(stale))
	}
	return len(stale)
}

// Wait blocks until the session reaches a terminal state.
func (m *Manager) Wait(ctx context.Context, id string) error {
	m.mu.Lock()
	rec, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-rec.done:
		return nil
	}
}

func (m *Manager) publish(rec *record, ev events.StreamEvent) {
	if err := m.hub.Publish(rec.id, ev); err != nil {
		m.log.Warn("event publish failed", "session_id", rec.id, "error", err)
	}
}

func (m *Manager) setPhase(rec *record, phase string) {
	rec.mu.Lock()
	rec.phase = phase
	rec.mu.Unlock()
}

func (r *record) snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	files := make([]string, len(r.files))
	copy(files, r.files)

	return Status{
		ID:               r.id,
		Mode:             r.req.Mode,
		State:            r.state,
		Prompt:           r.req.Prompt,
		WorkingDir:       r.req.WorkingDir,
		Repo:             r.req.Repo,
		Branch:           r.req.Branch,
		Model:            r.req.Model,
		CurrentPhase:     r.phase,
		StartedAt:        r.startedAt,
		LastActivity:     r.lastActivity,
		FilesModified:    files,
		SubagentsSpawned: r.subagents,
		Error:            r.errMsg,
	}
}
