package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool                  { return &b }
func intPtr(i int) *int                     { return &i }
func durPtr(d time.Duration) *time.Duration { return &d }

func TestResolvePresets(t *testing.T) {
	full := Resolve(PresetFull, nil)
	assert.True(t, full.AllowFileEdits)
	assert.True(t, full.AllowBash)
	assert.True(t, full.AllowSubAgents)
	assert.True(t, full.AllowMCP)
	assert.Equal(t, 3, full.MaxSubAgentDepth)

	safe := Resolve(PresetSafe, nil)
	assert.False(t, safe.AllowFileEdits)
	assert.False(t, safe.AllowBash)
	assert.False(t, safe.AllowSubAgents)
	assert.False(t, safe.AllowGitOps)
	assert.False(t, safe.AllowWebSearch)
	assert.False(t, safe.AllowMCP)
	assert.Equal(t, 0, safe.MaxSubAgentDepth)
	assert.Less(t, safe.Timeout, full.Timeout)
}

func TestResolveUnknownPresetDegradesToFull(t *testing.T) {
	caps := Resolve(Preset("bogus"), nil)
	assert.Equal(t, Full(), caps)
}

func TestResolveOverrides(t *testing.T) {
	caps := Resolve(PresetCustom, &Overrides{
		AllowBash:        boolPtr(false),
		MaxSubAgentDepth: intPtr(1),
		Timeout:          durPtr(time.Minute),
	})

	assert.False(t, caps.AllowBash)
	assert.Equal(t, 1, caps.MaxSubAgentDepth)
	assert.Equal(t, time.Minute, caps.Timeout)
	// Unspecified fields inherit full defaults.
	assert.True(t, caps.AllowFileEdits)
	assert.True(t, caps.AllowSubAgents)
}

func TestResolveOverridesOnSafe(t *testing.T) {
	caps := Resolve(PresetSafe, &Overrides{AllowWebSearch: boolPtr(true)})
	assert.True(t, caps.AllowWebSearch)
	assert.False(t, caps.AllowBash)
}

func TestResolveToolServers(t *testing.T) {
	reg := Registry{
		"playwright": {Name: "playwright", Command: "npx"},
		"github":     {Name: "github", Command: "npx"},
	}

	custom := []ToolServerDefinition{
		{Name: "internal-docs", Command: "docs-server"},
		{Name: ""}, // nameless entries are dropped
	}

	servers := ResolveToolServers(reg, []string{"playwright", "nope", "playwright"}, custom)

	names := make([]string, len(servers))
	for i, s := range servers {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"playwright", "internal-docs"}, names)
}

func TestResolveToolServersEmpty(t *testing.T) {
	servers := ResolveToolServers(DefaultRegistry(), nil, nil)
	assert.Empty(t, servers)
}
