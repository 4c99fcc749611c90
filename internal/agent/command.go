package agent

import (
	"os"
	"strings"

	"github.com/forgebuild/foreman/internal/capability"
)

// BuildArgs constructs the agent CLI argument vector from the session's
// capabilities. The capability set is the single source of truth for the
// tool allow-list: a capability that is off never contributes its tools.
func BuildArgs(cfg Config, prompt string) []string {
	args := []string{"-p", prompt, "--output-format", "stream-json", "--verbose"}

	if tools := allowedTools(cfg.Capabilities); len(tools) > 0 {
		args = append(args, "--allowedTools", strings.Join(tools, ","))
	}

	// Unattended file edits only when the capability grants them.
	if cfg.Capabilities.AllowFileEdits {
		args = append(args, "--permission-mode", "acceptEdits")
	}

	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}

	if cfg.Capabilities.AllowMCP && len(cfg.ToolServers) > 0 {
		args = append(args, "--mcp-config", MCPConfigFileName)
	}

	return args
}

// allowedTools maps capabilities to the agent's tool allow-list.
func allowedTools(caps capability.AgentCapabilities) []string {
	// Read-only tools are always permitted.
	tools := []string{"Read", "Glob", "Grep"}

	if caps.AllowFileEdits {
		tools = append(tools, "Write", "Edit", "MultiEdit")
	}
	if caps.AllowBash {
		tools = append(tools, "Bash")
	}
	if caps.AllowSubAgents {
		tools = append(tools, "Task")
	}
	if caps.AllowWebSearch {
		tools = append(tools, "WebSearch", "WebFetch")
	}
	return tools
}

// BuildEnv merges the process environment, the session's extra variables,
// and every tool server's variables, in that order (later wins).
func BuildEnv(cfg Config) []string {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range cfg.Env {
		merged[k] = v
	}
	for _, srv := range cfg.ToolServers {
		for k, v := range srv.Env {
			merged[k] = v
		}
	}

	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	return env
}
