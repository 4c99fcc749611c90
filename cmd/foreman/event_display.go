package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/forgebuild/foreman/internal/events"
)

// displayEvent prints one stream event in a compact one-line format.
func displayEvent(ev events.StreamEvent) {
	timestamp := ev.Timestamp.Format("15:04:05")
	gray := color.New(color.FgHiBlack).SprintFunc()
	label := color.New(color.FgMagenta).Sprint(string(ev.Type))

	fmt.Printf("%s %s [%s] %s %s\n",
		eventIcon(ev.Type), gray(timestamp), label,
		eventMessage(ev), gray(eventDetail(ev)))
}

func eventIcon(t events.EventType) string {
	switch t {
	case events.EventSessionStart:
		return "🚀"
	case events.EventThinking:
		return "🧠"
	case events.EventToolUse, events.EventToolResult:
		return "🔧"
	case events.EventSubagentSpawn, events.EventSubagentResult:
		return "🤖"
	case events.EventFileEdit:
		return "📝"
	case events.EventBashCommand, events.EventBashOutput:
		return "💻"
	case events.EventError:
		return "❌"
	case events.EventWarning:
		return "⚠️"
	case events.EventProgress:
		return "⏳"
	case events.EventSessionEnd:
		return "🏁"
	default:
		return "💬"
	}
}

// eventMessage is the primary human-readable line for an event.
func eventMessage(ev events.StreamEvent) string {
	switch {
	case ev.SessionStart != nil:
		return fmt.Sprintf("mode=%s dir=%s", ev.SessionStart.Mode, ev.SessionStart.WorkingDir)
	case ev.Thinking != nil:
		return truncateString(ev.Thinking.Content, 80)
	case ev.Text != nil:
		return truncateString(ev.Text.Content, 80)
	case ev.ToolUse != nil:
		return ev.ToolUse.ToolName
	case ev.ToolResult != nil:
		if ev.ToolResult.Success {
			return "ok"
		}
		return "failed"
	case ev.SubagentSpawn != nil:
		return truncateString(ev.SubagentSpawn.Description, 80)
	case ev.SubagentResult != nil:
		return truncateString(ev.SubagentResult.Result, 80)
	case ev.FileEdit != nil:
		return fmt.Sprintf("%s %s", ev.FileEdit.Action, ev.FileEdit.Path)
	case ev.BashCommand != nil:
		return truncateString(ev.BashCommand.Command, 80)
	case ev.BashOutput != nil:
		return truncateString(ev.BashOutput.Output, 80)
	case ev.Error != nil:
		return color.New(color.FgRed).Sprint(truncateString(ev.Error.Message, 80))
	case ev.Warning != nil:
		return color.New(color.FgYellow).Sprint(truncateString(ev.Warning.Message, 80))
	case ev.Progress != nil:
		if ev.Progress.Message != "" {
			return fmt.Sprintf("%s: %s", ev.Progress.Phase, ev.Progress.Message)
		}
		return ev.Progress.Phase
	case ev.SessionEnd != nil:
		verdict := color.New(color.FgGreen).Sprint("success")
		if !ev.SessionEnd.Success {
			verdict = color.New(color.FgRed).Sprint("failure")
		}
		return fmt.Sprintf("%s: %s", verdict, truncateString(ev.SessionEnd.Summary, 70))
	}
	return ""
}

// eventDetail is the secondary, dimmed part of the line.
func eventDetail(ev events.StreamEvent) string {
	switch {
	case ev.Progress != nil && ev.Progress.Percent != nil:
		return fmt.Sprintf("(%.0f%%)", *ev.Progress.Percent)
	case ev.SessionEnd != nil && len(ev.SessionEnd.FilesModified) > 0:
		return fmt.Sprintf("(%d files, %s)",
			len(ev.SessionEnd.FilesModified), ev.SessionEnd.Duration.Round(time.Second))
	case ev.Text != nil && ev.Text.Partial:
		return "(raw)"
	}
	return ""
}

func truncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
