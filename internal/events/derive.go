package events

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Best-effort extraction of modified files and a closing summary from
// free-text agent output. These are derived fields for progress display
// and history, not an audit trail; file_edit events are the reliable
// signal and always take precedence.
var (
	modifiedFileRe = regexp.MustCompile(`(?i)\b(?:edited|modified|created|wrote|updated|deleted)\s+(?:file\s+)?([\w./~-]+\.[A-Za-z0-9]+)`)
	summaryRe      = regexp.MustCompile(`(?i)(?:summary|completed|finished)\s*:\s*(.+)`)
)

// ExtractModifiedFiles merges file paths from file_edit events with
// recognizable phrasing in the raw output. The result is de-duplicated
// and sorted.
func ExtractModifiedFiles(output string, evs []StreamEvent) []string {
	seen := make(map[string]bool)

	for _, ev := range evs {
		if ev.Type == EventFileEdit && ev.FileEdit != nil && ev.FileEdit.Path != "" {
			seen[ev.FileEdit.Path] = true
		}
	}

	for _, m := range modifiedFileRe.FindAllStringSubmatch(output, -1) {
		path := strings.TrimRight(m[1], ".,;:")
		if path != "" {
			seen[path] = true
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// DeriveSummary assembles a short human sentence from the derived counters
// and the first summary-like phrase found in the output.
func DeriveSummary(output string, filesModified, subagents int) string {
	var phrase string
	if m := summaryRe.FindStringSubmatch(output); m != nil {
		phrase = strings.TrimSpace(m[1])
		if len(phrase) > 200 {
			phrase = phrase[:197] + "..."
		}
	}

	var parts []string
	if phrase != "" {
		parts = append(parts, phrase)
	}
	if filesModified > 0 {
		parts = append(parts, fmt.Sprintf("%d file(s) modified", filesModified))
	}
	if subagents > 0 {
		parts = append(parts, fmt.Sprintf("%d sub-agent(s) spawned", subagents))
	}

	if len(parts) == 0 {
		return "Session completed"
	}
	return strings.Join(parts, "; ")
}
