package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineTextThenFallback(t *testing.T) {
	p := NewParser("s1")

	evs := p.ParseLine(`{"type":"text","text":"hi"}`)
	require.Len(t, evs, 1)
	assert.Equal(t, EventText, evs[0].Type)
	assert.Equal(t, "hi", evs[0].Text.Content)
	assert.False(t, evs[0].Text.Partial)

	evs = p.ParseLine(`not json`)
	require.Len(t, evs, 1)
	assert.Equal(t, EventText, evs[0].Type)
	assert.Equal(t, "not json", evs[0].Text.Content)
	assert.True(t, evs[0].Text.Partial)
}

func TestParseLineEmpty(t *testing.T) {
	p := NewParser("s1")
	assert.Nil(t, p.ParseLine(""))
	assert.Nil(t, p.ParseLine("   "))
}

func TestParseLineThinking(t *testing.T) {
	p := NewParser("s1")
	evs := p.ParseLine(`{"type":"thinking","thinking":"hmm"}`)
	require.Len(t, evs, 1)
	assert.Equal(t, EventThinking, evs[0].Type)
	assert.Equal(t, "hmm", evs[0].Thinking.Content)
}

func TestParseLineToolUseSpecialization(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantType EventType
		check    func(t *testing.T, ev StreamEvent)
	}{
		{
			name:     "Write becomes file_edit create",
			line:     `{"type":"tool_use","name":"Write","id":"t1","input":{"file_path":"main.go","content":"x"}}`,
			wantType: EventFileEdit,
			check: func(t *testing.T, ev StreamEvent) {
				assert.Equal(t, "main.go", ev.FileEdit.Path)
				assert.Equal(t, FileActionCreate, ev.FileEdit.Action)
			},
		},
		{
			name:     "Edit becomes file_edit edit with diff",
			line:     `{"type":"tool_use","name":"Edit","id":"t2","input":{"file_path":"a.go","old_string":"foo","new_string":"bar"}}`,
			wantType: EventFileEdit,
			check: func(t *testing.T, ev StreamEvent) {
				assert.Equal(t, FileActionEdit, ev.FileEdit.Action)
				assert.Equal(t, "- foo\n+ bar", ev.FileEdit.Diff)
			},
		},
		{
			name:     "Bash becomes bash_command",
			line:     `{"type":"tool_use","name":"Bash","id":"t3","input":{"command":"go test ./..."}}`,
			wantType: EventBashCommand,
			check: func(t *testing.T, ev StreamEvent) {
				assert.Equal(t, "go test ./...", ev.BashCommand.Command)
			},
		},
		{
			name:     "unknown tool stays generic",
			line:     `{"type":"tool_use","name":"Grep","id":"t4","input":{"pattern":"x"}}`,
			wantType: EventToolUse,
			check: func(t *testing.T, ev StreamEvent) {
				assert.Equal(t, "Grep", ev.ToolUse.ToolName)
				assert.Equal(t, "t4", ev.ToolUse.ToolID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser("s1")
			evs := p.ParseLine(tt.line)
			require.Len(t, evs, 1)
			assert.Equal(t, tt.wantType, evs[0].Type)
			tt.check(t, evs[0])
		})
	}
}

func TestParseLineTaskSpawnsSubagent(t *testing.T) {
	p := NewParser("s1")

	evs := p.ParseLine(`{"type":"tool_use","name":"Task","id":"t9","input":{"description":"fix tests","prompt":"go fix them"}}`)
	require.Len(t, evs, 1)
	assert.Equal(t, EventSubagentSpawn, evs[0].Type)
	assert.Equal(t, "s1-sub-1", evs[0].SubagentSpawn.SubagentID)
	assert.Equal(t, "fix tests", evs[0].SubagentSpawn.Description)
	assert.Equal(t, 1, p.SubagentsSpawned())

	// The matching tool_result comes back as subagent_result.
	evs = p.ParseLine(`{"type":"tool_result","tool_use_id":"t9","content":"done","is_error":false}`)
	require.Len(t, evs, 1)
	assert.Equal(t, EventSubagentResult, evs[0].Type)
	assert.Equal(t, "s1-sub-1", evs[0].SubagentResult.SubagentID)
	assert.True(t, evs[0].SubagentResult.Success)
}

func TestParseLineToolResult(t *testing.T) {
	p := NewParser("s1")
	evs := p.ParseLine(`{"type":"tool_result","tool_use_id":"t1","content":"ok","is_error":false}`)
	require.Len(t, evs, 1)
	assert.Equal(t, EventToolResult, evs[0].Type)
	assert.Equal(t, "ok", evs[0].ToolResult.Result)
	assert.True(t, evs[0].ToolResult.Success)

	evs = p.ParseLine(`{"type":"tool_result","tool_use_id":"t2","content":"boom","is_error":true}`)
	require.Len(t, evs, 1)
	assert.False(t, evs[0].ToolResult.Success)
}

func TestParseLineToolResultBlockContent(t *testing.T) {
	p := NewParser("s1")
	evs := p.ParseLine(`{"type":"tool_result","tool_use_id":"t1","content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}]}`)
	require.Len(t, evs, 1)
	assert.Equal(t, "line one\nline two", evs[0].ToolResult.Result)
}

func TestParseLineAssistantMessageUnrolled(t *testing.T) {
	p := NewParser("s1")
	line := `{"type":"assistant","message":{"content":[` +
		`{"type":"text","text":"Let me edit the file."},` +
		`{"type":"tool_use","name":"Edit","id":"t5","input":{"file_path":"b.go"}},` +
		`{"type":"thinking","thinking":"considering"}]}}`

	evs := p.ParseLine(line)
	require.Len(t, evs, 3)
	assert.Equal(t, EventText, evs[0].Type)
	assert.False(t, evs[0].Text.Partial)
	assert.Equal(t, EventFileEdit, evs[1].Type)
	assert.Equal(t, EventThinking, evs[2].Type)
}

func TestParseLineUnknownTypeFallsBack(t *testing.T) {
	p := NewParser("s1")
	evs := p.ParseLine(`{"type":"system","subtype":"init"}`)
	require.Len(t, evs, 1)
	assert.Equal(t, EventText, evs[0].Type)
	assert.True(t, evs[0].Text.Partial)
}

func TestParseLineError(t *testing.T) {
	p := NewParser("s1")
	evs := p.ParseLine(`{"type":"error","error":"rate limited","code":"429"}`)
	require.Len(t, evs, 1)
	assert.Equal(t, EventError, evs[0].Type)
	assert.Equal(t, "rate limited", evs[0].Error.Message)
	assert.Equal(t, "429", evs[0].Error.Code)
}

func TestEventIDsAreOrdered(t *testing.T) {
	p := NewParser("s1")
	a := p.ParseLine(`{"type":"text","text":"a"}`)[0]
	b := p.ParseLine(`{"type":"text","text":"b"}`)[0]
	assert.Less(t, a.ID, b.ID, "ULIDs should sort in creation order")
}
