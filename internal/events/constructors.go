package events

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event IDs are ULIDs so the log sorts lexicographically by creation time.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newEventID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func newEvent(sessionID string, typ EventType) StreamEvent {
	return StreamEvent{
		ID:        newEventID(),
		Type:      typ,
		Timestamp: time.Now(),
		SessionID: sessionID,
	}
}

// NewSessionStart builds the opening event of a session.
func NewSessionStart(sessionID string, data SessionStartData) StreamEvent {
	ev := newEvent(sessionID, EventSessionStart)
	ev.SessionStart = &data
	return ev
}

// NewThinking builds a thinking event.
func NewThinking(sessionID, content string) StreamEvent {
	ev := newEvent(sessionID, EventThinking)
	ev.Thinking = &ThinkingData{Content: content}
	return ev
}

// NewText builds a text event.
func NewText(sessionID, content string, partial bool) StreamEvent {
	ev := newEvent(sessionID, EventText)
	ev.Text = &TextData{Content: content, Partial: partial}
	return ev
}

// NewToolUse builds a generic tool-use event.
func NewToolUse(sessionID, toolName, toolID string, input map[string]any) StreamEvent {
	ev := newEvent(sessionID, EventToolUse)
	ev.ToolUse = &ToolUseData{ToolName: toolName, ToolID: toolID, Input: input}
	return ev
}

// NewToolResult builds a tool-result event.
func NewToolResult(sessionID, toolID, result string, success bool) StreamEvent {
	ev := newEvent(sessionID, EventToolResult)
	ev.ToolResult = &ToolResultData{ToolID: toolID, Result: result, Success: success}
	return ev
}

// NewSubagentSpawn builds a subagent-spawn event.
func NewSubagentSpawn(sessionID, subagentID, description, prompt string) StreamEvent {
	ev := newEvent(sessionID, EventSubagentSpawn)
	ev.SubagentSpawn = &SubagentSpawnData{SubagentID: subagentID, Description: description, Prompt: prompt}
	return ev
}

// NewSubagentResult builds a subagent-result event.
func NewSubagentResult(sessionID, subagentID, result string, success bool) StreamEvent {
	ev := newEvent(sessionID, EventSubagentResult)
	ev.SubagentResult = &SubagentResultData{SubagentID: subagentID, Result: result, Success: success}
	return ev
}

// NewFileEdit builds a file-edit event.
func NewFileEdit(sessionID, path string, action FileAction, diff string) StreamEvent {
	ev := newEvent(sessionID, EventFileEdit)
	ev.FileEdit = &FileEditData{Path: path, Action: action, Diff: diff}
	return ev
}

// NewBashCommand builds a bash-command event.
func NewBashCommand(sessionID, command, cwd string) StreamEvent {
	ev := newEvent(sessionID, EventBashCommand)
	ev.BashCommand = &BashCommandData{Command: command, Cwd: cwd}
	return ev
}

// NewBashOutput builds a bash-output event.
func NewBashOutput(sessionID, output string, stderr bool, exitCode *int) StreamEvent {
	ev := newEvent(sessionID, EventBashOutput)
	ev.BashOutput = &BashOutputData{Output: output, Stderr: stderr, ExitCode: exitCode}
	return ev
}

// NewError builds an error event.
func NewError(sessionID, message, code string, recoverable bool) StreamEvent {
	ev := newEvent(sessionID, EventError)
	ev.Error = &ErrorData{Message: message, Code: code, Recoverable: recoverable}
	return ev
}

// NewWarning builds a warning event.
func NewWarning(sessionID, message string) StreamEvent {
	ev := newEvent(sessionID, EventWarning)
	ev.Warning = &WarningData{Message: message}
	return ev
}

// NewProgress builds a progress event. percent may be nil.
func NewProgress(sessionID, phase, message string, percent *float64) StreamEvent {
	ev := newEvent(sessionID, EventProgress)
	ev.Progress = &ProgressData{Phase: phase, Message: message, Percent: percent}
	return ev
}

// NewSessionEnd builds the terminal event of a session.
func NewSessionEnd(sessionID string, success bool, summary string, filesModified []string, duration time.Duration) StreamEvent {
	ev := newEvent(sessionID, EventSessionEnd)
	ev.SessionEnd = &SessionEndData{
		Success:       success,
		Summary:       summary,
		FilesModified: filesModified,
		Duration:      duration,
	}
	return ev
}
