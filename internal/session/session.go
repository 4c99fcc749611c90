// Package session owns the lifecycle of agent sessions: creation, state
// transitions, cancellation, timeout enforcement, history, and garbage
// collection.
package session

import (
	"time"

	"github.com/forgebuild/foreman/internal/capability"
)

// Mode labels what kind of work a session performs.
type Mode string

const (
	ModeBranch   Mode = "branch"
	ModeProject  Mode = "project"
	ModeTask     Mode = "task"
	ModeReview   Mode = "review"
	ModeRefactor Mode = "refactor"
)

// ValidMode reports whether m is one of the recognized session modes.
func ValidMode(m Mode) bool {
	switch m {
	case ModeBranch, ModeProject, ModeTask, ModeReview, ModeRefactor:
		return true
	}
	return false
}

// State is a session's position in its lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Request describes a session to start.
type Request struct {
	Mode         Mode                              `json:"mode"`
	Prompt       string                            `json:"prompt"`
	WorkingDir   string                            `json:"workingDir,omitempty"`
	Repo         string                            `json:"repo,omitempty"`
	Branch       string                            `json:"branch,omitempty"`
	SystemPrompt string                            `json:"systemPrompt,omitempty"`
	Preset       capability.Preset                 `json:"preset,omitempty"`
	Overrides    *capability.Overrides             `json:"overrides,omitempty"`
	ToolServers  []string                          `json:"toolServers,omitempty"`
	CustomTools  []capability.ToolServerDefinition `json:"customTools,omitempty"`
	Model        string                            `json:"model,omitempty"`
	AllowMacros  bool                              `json:"allowMacros,omitempty"`
	Env          map[string]string                 `json:"env,omitempty"`
}

// Status is a read-only snapshot of a session, safe to hand to observers.
type Status struct {
	ID               string    `json:"id"`
	Mode             Mode      `json:"mode"`
	State            State     `json:"state"`
	Prompt           string    `json:"prompt"`
	WorkingDir       string    `json:"workingDir"`
	Repo             string    `json:"repo,omitempty"`
	Branch           string    `json:"branch,omitempty"`
	Model            string    `json:"model,omitempty"`
	CurrentPhase     string    `json:"currentPhase,omitempty"`
	StartedAt        time.Time `json:"startedAt"`
	LastActivity     time.Time `json:"lastActivity"`
	FilesModified    []string  `json:"filesModified,omitempty"`
	SubagentsSpawned int       `json:"subagentsSpawned"`
	Error            string    `json:"error,omitempty"`
}

// HistoryEntry is the compact record kept after a session terminates.
type HistoryEntry struct {
	ID            string        `json:"id"`
	Mode          Mode          `json:"mode"`
	Prompt        string        `json:"prompt"`
	State         State         `json:"state"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
	FilesModified []string      `json:"filesModified,omitempty"`
	Summary       string        `json:"summary"`
}
