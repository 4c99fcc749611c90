package events

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parser turns raw agent output lines into StreamEvents. One parser is
// created per session; it is not safe for concurrent use (the supervisor
// feeds it from a single goroutine).
type Parser struct {
	// SessionID is stamped onto every produced event.
	SessionID string

	// subagentSeq numbers the sub-agents this session has spawned.
	subagentSeq int
	// taskToolIDs maps tool IDs of delegation calls to sub-agent IDs so
	// their results can be surfaced as subagent_result events.
	taskToolIDs map[string]string
}

// NewParser creates a parser for the given session.
func NewParser(sessionID string) *Parser {
	return &Parser{
		SessionID:   sessionID,
		taskToolIDs: make(map[string]string),
	}
}

// SubagentsSpawned returns how many delegation calls the parser has seen.
func (p *Parser) SubagentsSpawned() int {
	return p.subagentSeq
}

// rawLine is the wire shape of one structured output line. The agent CLI
// emits newline-delimited JSON; fields are a superset across line types.
type rawLine struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	IsPartial *bool           `json:"is_partial"`
	Name      string          `json:"name"`
	ID        string          `json:"id"`
	Input     map[string]any  `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
	Message   *rawMessage     `json:"message"`
	Error     string          `json:"error"`
	Code      string          `json:"code"`
}

// rawMessage is the composite assistant-message shape whose nested content
// blocks are unrolled into primitive events.
type rawMessage struct {
	Content []rawBlock `json:"content"`
}

type rawBlock struct {
	Type     string         `json:"type"`
	Text     string         `json:"text"`
	Thinking string         `json:"thinking"`
	Name     string         `json:"name"`
	ID       string         `json:"id"`
	Input    map[string]any `json:"input"`
}

// ParseLine parses a single output line into zero or more events, in
// source order. Lines that fail structured decoding are never discarded:
// they come back as a partial text event, so a subprocess that emits no
// structured output at all still surfaces everything it prints.
func (p *Parser) ParseLine(line string) []StreamEvent {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	var raw rawLine
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return []StreamEvent{NewText(p.SessionID, line, true)}
	}

	switch raw.Type {
	case "text":
		partial := false
		if raw.IsPartial != nil {
			partial = *raw.IsPartial
		}
		return []StreamEvent{NewText(p.SessionID, raw.Text, partial)}

	case "thinking":
		return []StreamEvent{NewThinking(p.SessionID, raw.Thinking)}

	case "tool_use":
		return []StreamEvent{p.specializeToolUse(raw.Name, raw.ID, raw.Input)}

	case "tool_result":
		result := decodeToolContent(raw.Content)
		if subID, ok := p.taskToolIDs[raw.ToolUseID]; ok {
			delete(p.taskToolIDs, raw.ToolUseID)
			return []StreamEvent{NewSubagentResult(p.SessionID, subID, result, !raw.IsError)}
		}
		return []StreamEvent{NewToolResult(p.SessionID, raw.ToolUseID, result, !raw.IsError)}

	case "assistant":
		if raw.Message == nil {
			break
		}
		evs := make([]StreamEvent, 0, len(raw.Message.Content))
		for _, block := range raw.Message.Content {
			switch block.Type {
			case "text":
				evs = append(evs, NewText(p.SessionID, block.Text, false))
			case "thinking":
				evs = append(evs, NewThinking(p.SessionID, block.Thinking))
			case "tool_use":
				evs = append(evs, p.specializeToolUse(block.Name, block.ID, block.Input))
			}
		}
		return evs

	case "error":
		msg := raw.Error
		if msg == "" {
			msg = raw.Text
		}
		return []StreamEvent{NewError(p.SessionID, msg, raw.Code, true)}
	}

	// Structured but unrecognized: treat like an unparseable line rather
	// than dropping it.
	return []StreamEvent{NewText(p.SessionID, line, true)}
}

// specializeToolUse maps a raw tool invocation to its specialized event
// kind. Unknown tool names fall through to a generic tool_use event.
func (p *Parser) specializeToolUse(name, id string, input map[string]any) StreamEvent {
	switch name {
	case "Write":
		return NewFileEdit(p.SessionID, stringField(input, "file_path"), FileActionCreate, synthesizeDiff(input))
	case "Edit", "MultiEdit", "NotebookEdit":
		return NewFileEdit(p.SessionID, stringField(input, "file_path"), FileActionEdit, synthesizeDiff(input))
	case "Bash":
		cwd := stringField(input, "cwd")
		return NewBashCommand(p.SessionID, stringField(input, "command"), cwd)
	case "Task":
		// subagentSeq only counts spawns for status reporting. The
		// depth cap is enforced by the agent itself, via the composed
		// system prompt and CLI arguments.
		p.subagentSeq++
		subID := fmt.Sprintf("%s-sub-%d", p.SessionID, p.subagentSeq)
		if id != "" {
			p.taskToolIDs[id] = subID
		}
		return NewSubagentSpawn(p.SessionID, subID, stringField(input, "description"), stringField(input, "prompt"))
	default:
		return NewToolUse(p.SessionID, name, id, input)
	}
}

// synthesizeDiff constructs a minimal unified-style diff when an edit call
// carries both the old and new content.
func synthesizeDiff(input map[string]any) string {
	oldStr := stringField(input, "old_string")
	newStr := stringField(input, "new_string")
	if oldStr == "" || newStr == "" {
		return ""
	}

	var b strings.Builder
	for _, l := range strings.Split(oldStr, "\n") {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	for _, l := range strings.Split(newStr, "\n") {
		b.WriteString("+ ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// decodeToolContent renders a tool_result content payload as text. The
// payload may be a plain string, a block list, or arbitrary JSON.
func decodeToolContent(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}

	var blocks []rawBlock
	if err := json.Unmarshal(content, &blocks); err == nil {
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}

	return string(content)
}

func stringField(input map[string]any, key string) string {
	if input == nil {
		return ""
	}
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}
