package agent

import (
	"fmt"
	"strings"

	"github.com/forgebuild/foreman/internal/capability"
)

// modePreambles frame the task for each session mode.
var modePreambles = map[string]string{
	"branch":   "You are working on a dedicated branch of this repository. Make the requested changes and keep the build green.",
	"project":  "You are working across this project. Prefer small, reviewable changes.",
	"task":     "You are executing a single focused task. Do not expand scope beyond it.",
	"review":   "You are reviewing code. Report findings; do not modify files unless explicitly asked.",
	"refactor": "You are refactoring. Preserve observable behavior; rely on the test suite to prove it.",
}

// ComposePrompt assembles the full prompt handed to the agent subprocess:
// mode preamble, optional system-prompt override, capability and
// tool-server disclosure, then the user prompt.
func ComposePrompt(cfg Config, userPrompt string) string {
	var b strings.Builder

	if preamble, ok := modePreambles[cfg.Mode]; ok {
		b.WriteString(preamble)
		b.WriteString("\n\n")
	}

	if cfg.SystemPrompt != "" {
		b.WriteString(cfg.SystemPrompt)
		b.WriteString("\n\n")
	}

	b.WriteString(disclose(cfg.Capabilities, cfg.ToolServers, cfg.AllowMacros))
	b.WriteString("\n")
	b.WriteString(userPrompt)

	return b.String()
}

// disclose tells the agent what it is and is not allowed to do, so its
// behavior matches the enforced allow-list instead of discovering limits
// by trial and error.
func disclose(caps capability.AgentCapabilities, servers []capability.ToolServerDefinition, allowMacros bool) string {
	var lines []string
	lines = append(lines, "# Session permissions")

	deny := func(what string) string { return "- You may NOT " + what + "." }
	allow := func(what string) string { return "- You may " + what + "." }

	if caps.AllowFileEdits {
		lines = append(lines, allow("create and edit files"))
	} else {
		lines = append(lines, deny("modify any files"))
	}
	if caps.AllowBash {
		lines = append(lines, allow("run shell commands"))
	} else {
		lines = append(lines, deny("run shell commands"))
	}
	if caps.AllowGitOps {
		lines = append(lines, allow("run git operations"))
	} else {
		lines = append(lines, deny("run git operations"))
	}
	if caps.AllowSubAgents {
		lines = append(lines, allow(fmt.Sprintf("delegate to sub-agents (max depth %d)", caps.MaxSubAgentDepth)))
	} else {
		lines = append(lines, deny("delegate work to sub-agents"))
	}
	if caps.AllowWebSearch {
		lines = append(lines, allow("search and fetch from the web"))
	} else {
		lines = append(lines, deny("access the web"))
	}
	if !allowMacros {
		lines = append(lines, deny("use CLI slash-commands or macros"))
	}

	if len(servers) > 0 {
		lines = append(lines, "", "# Available tool servers")
		for _, srv := range servers {
			desc := srv.Description
			if desc == "" {
				desc = srv.Command
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", srv.Name, desc))
		}
	}

	return strings.Join(lines, "\n") + "\n"
}
