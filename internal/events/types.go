// Package events defines the typed stream-event model for agent sessions
// and the parser that turns raw subprocess output into ordered events.
package events

import (
	"time"
)

// EventType discriminates the StreamEvent union. The set is closed: every
// event a session can ever emit is one of these fourteen kinds.
type EventType string

const (
	// EventSessionStart is the first event of every session and echoes a
	// subset of its configuration.
	EventSessionStart EventType = "session_start"
	// EventThinking carries the agent's reasoning text.
	EventThinking EventType = "thinking"
	// EventText carries assistant output text. Partial-flagged text events
	// are raw lines that did not decode as structured output.
	EventText EventType = "text"
	// EventToolUse is a generic tool invocation that has no specialized kind.
	EventToolUse EventType = "tool_use"
	// EventToolResult is the outcome of a prior tool invocation.
	EventToolResult EventType = "tool_result"
	// EventSubagentSpawn records a delegated sub-agent launch.
	EventSubagentSpawn EventType = "subagent_spawn"
	// EventSubagentResult records a sub-agent's outcome.
	EventSubagentResult EventType = "subagent_result"
	// EventFileEdit records a file create, edit, or delete.
	EventFileEdit EventType = "file_edit"
	// EventBashCommand records a shell command the agent ran.
	EventBashCommand EventType = "bash_command"
	// EventBashOutput carries shell command output.
	EventBashOutput EventType = "bash_output"
	// EventError carries an error surfaced by the agent or supervisor.
	EventError EventType = "error"
	// EventWarning carries a non-fatal warning.
	EventWarning EventType = "warning"
	// EventProgress reports phase/setup progress for observers.
	EventProgress EventType = "progress"
	// EventSessionEnd is emitted exactly once per session and is always the
	// last event in the log.
	EventSessionEnd EventType = "session_end"
)

// FileAction is the kind of file modification a file_edit event records.
type FileAction string

const (
	FileActionCreate FileAction = "create"
	FileActionEdit   FileAction = "edit"
	FileActionDelete FileAction = "delete"
)

// StreamEvent is one entry in a session's append-only event log. Type
// selects which payload pointer is populated; exactly one payload is
// non-nil per event.
type StreamEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`

	SessionStart   *SessionStartData   `json:"session_start,omitempty"`
	Thinking       *ThinkingData       `json:"thinking,omitempty"`
	Text           *TextData           `json:"text,omitempty"`
	ToolUse        *ToolUseData        `json:"tool_use,omitempty"`
	ToolResult     *ToolResultData     `json:"tool_result,omitempty"`
	SubagentSpawn  *SubagentSpawnData  `json:"subagent_spawn,omitempty"`
	SubagentResult *SubagentResultData `json:"subagent_result,omitempty"`
	FileEdit       *FileEditData       `json:"file_edit,omitempty"`
	BashCommand    *BashCommandData    `json:"bash_command,omitempty"`
	BashOutput     *BashOutputData     `json:"bash_output,omitempty"`
	Error          *ErrorData          `json:"error,omitempty"`
	Warning        *WarningData        `json:"warning,omitempty"`
	Progress       *ProgressData       `json:"progress,omitempty"`
	SessionEnd     *SessionEndData     `json:"session_end,omitempty"`
}

// SessionStartData echoes the configuration subset observers need.
type SessionStartData struct {
	Mode       string `json:"mode"`
	WorkingDir string `json:"working_dir"`
	Repo       string `json:"repo,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Model      string `json:"model,omitempty"`
}

// ThinkingData carries agent reasoning text.
type ThinkingData struct {
	Content string `json:"content"`
}

// TextData carries assistant output text.
type TextData struct {
	Content string `json:"content"`
	// Partial marks raw fallback lines and piecemeal streaming chunks.
	Partial bool `json:"partial"`
}

// ToolUseData records a generic tool invocation.
type ToolUseData struct {
	ToolName string         `json:"tool_name"`
	ToolID   string         `json:"tool_id,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
}

// ToolResultData records the outcome of a tool invocation.
type ToolResultData struct {
	ToolID  string `json:"tool_id,omitempty"`
	Result  string `json:"result,omitempty"`
	Success bool   `json:"success"`
}

// SubagentSpawnData records a delegated sub-agent launch.
type SubagentSpawnData struct {
	SubagentID  string `json:"subagent_id"`
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
}

// SubagentResultData records a sub-agent's outcome.
type SubagentResultData struct {
	SubagentID string `json:"subagent_id"`
	Result     string `json:"result,omitempty"`
	Success    bool   `json:"success"`
}

// FileEditData records a file modification.
type FileEditData struct {
	Path   string     `json:"path"`
	Action FileAction `json:"action"`
	Diff   string     `json:"diff,omitempty"`
}

// BashCommandData records a shell command the agent ran.
type BashCommandData struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
}

// BashOutputData carries shell command output.
type BashOutputData struct {
	Output   string `json:"output"`
	Stderr   bool   `json:"stderr"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// ErrorData carries an error surfaced by the agent or supervisor.
type ErrorData struct {
	Message     string `json:"message"`
	Code        string `json:"code,omitempty"`
	Recoverable bool   `json:"recoverable"`
}

// WarningData carries a non-fatal warning.
type WarningData struct {
	Message string `json:"message"`
}

// ProgressData reports phase progress for observers.
type ProgressData struct {
	Phase   string   `json:"phase"`
	Message string   `json:"message,omitempty"`
	Percent *float64 `json:"percent,omitempty"`
}

// SessionEndData summarizes a finished session.
type SessionEndData struct {
	Success       bool          `json:"success"`
	Summary       string        `json:"summary"`
	FilesModified []string      `json:"files_modified,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// IsTerminal reports whether this event closes the stream.
func (e *StreamEvent) IsTerminal() bool {
	return e.Type == EventSessionEnd
}
