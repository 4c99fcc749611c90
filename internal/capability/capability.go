// Package capability resolves permission presets into concrete, immutable
// capability sets and tool-server lists for agent sessions.
package capability

import "time"

// Preset names a canonical capability set.
type Preset string

const (
	// PresetFull grants every capability with generous limits.
	PresetFull Preset = "full"
	// PresetSafe denies every capability; read-only inspection sessions.
	PresetSafe Preset = "safe"
	// PresetCustom overlays caller overrides onto the full defaults.
	PresetCustom Preset = "custom"
)

// AgentCapabilities controls which tool categories a session's subprocess
// may use. Values are resolved once at session creation and never mutated.
type AgentCapabilities struct {
	AllowSubAgents   bool          `json:"allow_sub_agents"`
	AllowFileEdits   bool          `json:"allow_file_edits"`
	AllowGitOps      bool          `json:"allow_git_ops"`
	AllowBash        bool          `json:"allow_bash"`
	AllowWebSearch   bool          `json:"allow_web_search"`
	AllowMCP         bool          `json:"allow_mcp"`
	MaxSubAgentDepth int           `json:"max_sub_agent_depth"`
	Timeout          time.Duration `json:"timeout"`
}

// Overrides is a partial capability set. Nil fields inherit the full
// defaults during resolution.
type Overrides struct {
	AllowSubAgents   *bool
	AllowFileEdits   *bool
	AllowGitOps      *bool
	AllowBash        *bool
	AllowWebSearch   *bool
	AllowMCP         *bool
	MaxSubAgentDepth *int
	Timeout          *time.Duration
}

// Full returns the full-permission capability set.
func Full() AgentCapabilities {
	return AgentCapabilities{
		AllowSubAgents:   true,
		AllowFileEdits:   true,
		AllowGitOps:      true,
		AllowBash:        true,
		AllowWebSearch:   true,
		AllowMCP:         true,
		MaxSubAgentDepth: 3,
		Timeout:          30 * time.Minute,
	}
}

// Safe returns the locked-down capability set: no tools, no sub-agents,
// and a shorter timeout.
func Safe() AgentCapabilities {
	return AgentCapabilities{
		AllowSubAgents:   false,
		AllowFileEdits:   false,
		AllowGitOps:      false,
		AllowBash:        false,
		AllowWebSearch:   false,
		AllowMCP:         false,
		MaxSubAgentDepth: 0,
		Timeout:          10 * time.Minute,
	}
}

// Resolve turns a preset plus optional overrides into a concrete capability
// set. It is pure and cannot fail: unknown presets and nil override fields
// degrade to the full defaults.
func Resolve(preset Preset, ov *Overrides) AgentCapabilities {
	var caps AgentCapabilities
	switch preset {
	case PresetSafe:
		caps = Safe()
	case PresetFull, PresetCustom:
		caps = Full()
	default:
		caps = Full()
	}

	if ov == nil {
		return caps
	}
	if ov.AllowSubAgents != nil {
		caps.AllowSubAgents = *ov.AllowSubAgents
	}
	if ov.AllowFileEdits != nil {
		caps.AllowFileEdits = *ov.AllowFileEdits
	}
	if ov.AllowGitOps != nil {
		caps.AllowGitOps = *ov.AllowGitOps
	}
	if ov.AllowBash != nil {
		caps.AllowBash = *ov.AllowBash
	}
	if ov.AllowWebSearch != nil {
		caps.AllowWebSearch = *ov.AllowWebSearch
	}
	if ov.AllowMCP != nil {
		caps.AllowMCP = *ov.AllowMCP
	}
	if ov.MaxSubAgentDepth != nil {
		caps.MaxSubAgentDepth = *ov.MaxSubAgentDepth
	}
	if ov.Timeout != nil {
		caps.Timeout = *ov.Timeout
	}
	return caps
}
