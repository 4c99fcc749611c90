package capability

// ToolServerDefinition describes an auxiliary helper process the agent
// subprocess may invoke via a local descriptor file.
type ToolServerDefinition struct {
	// Name is the server's key in the descriptor file.
	Name string `json:"name"`
	// Command is the executable that launches the server.
	Command string `json:"command"`
	// Args are passed to the command.
	Args []string `json:"args,omitempty"`
	// Env is merged into the server's environment.
	Env map[string]string `json:"env,omitempty"`
	// Description is a human-readable summary for prompt disclosure.
	Description string `json:"description,omitempty"`
}

// Registry maps template names to tool-server definitions.
type Registry map[string]ToolServerDefinition

// DefaultRegistry returns the built-in tool-server templates.
func DefaultRegistry() Registry {
	return Registry{
		"playwright": {
			Name:        "playwright",
			Command:     "npx",
			Args:        []string{"@playwright/mcp@latest", "--headless"},
			Description: "Browser automation for verifying web UIs and capturing screenshots",
		},
		"filesystem": {
			Name:        "filesystem",
			Command:     "npx",
			Args:        []string{"-y", "@modelcontextprotocol/server-filesystem", "."},
			Description: "Read-only filesystem inspection outside the working tree",
		},
		"github": {
			Name:        "github",
			Command:     "npx",
			Args:        []string{"-y", "@modelcontextprotocol/server-github"},
			Description: "GitHub issue and pull-request access",
		},
	}
}

// ResolveToolServers builds a session's tool-server list: the union of
// requested templates and caller-supplied custom definitions. Template
// lookup is best-effort; unknown names are silently skipped. Custom
// definitions are always appended, after the templates, in caller order.
func ResolveToolServers(reg Registry, requested []string, custom []ToolServerDefinition) []ToolServerDefinition {
	servers := make([]ToolServerDefinition, 0, len(requested)+len(custom))
	seen := make(map[string]bool)

	for _, name := range requested {
		def, ok := reg[name]
		if !ok || seen[def.Name] {
			continue
		}
		seen[def.Name] = true
		servers = append(servers, def)
	}
	for _, def := range custom {
		if def.Name == "" || seen[def.Name] {
			continue
		}
		seen[def.Name] = true
		servers = append(servers, def)
	}
	return servers
}
