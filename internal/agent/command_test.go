package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/foreman/internal/capability"
)

func argValue(t *testing.T, args []string, flag string) (string, bool) {
	t.Helper()
	for i, a := range args {
		if a == flag {
			require.Less(t, i+1, len(args), "flag %s has no value", flag)
			return args[i+1], true
		}
	}
	return "", false
}

func TestBuildArgsSafePreset(t *testing.T) {
	cfg := Config{Capabilities: capability.Safe()}
	args := BuildArgs(cfg, "inspect the repo")

	assert.Equal(t, "-p", args[0])
	assert.Equal(t, "inspect the repo", args[1])

	tools, ok := argValue(t, args, "--allowedTools")
	require.True(t, ok)
	for _, denied := range []string{"Write", "Edit", "MultiEdit", "Bash", "Task", "WebSearch", "WebFetch"} {
		assert.NotContains(t, strings.Split(tools, ","), denied)
	}
	for _, granted := range []string{"Read", "Glob", "Grep"} {
		assert.Contains(t, strings.Split(tools, ","), granted)
	}

	assert.NotContains(t, args, "--permission-mode")
	assert.NotContains(t, args, "--mcp-config")
}

func TestBuildArgsFullPreset(t *testing.T) {
	cfg := Config{
		Capabilities: capability.Full(),
		Model:        "claude-sonnet-4",
		ToolServers: []capability.ToolServerDefinition{
			{Name: "playwright", Command: "npx"},
		},
	}
	args := BuildArgs(cfg, "fix the build")

	tools, ok := argValue(t, args, "--allowedTools")
	require.True(t, ok)
	for _, granted := range []string{"Read", "Write", "Edit", "Bash", "Task", "WebSearch"} {
		assert.Contains(t, strings.Split(tools, ","), granted)
	}

	mode, ok := argValue(t, args, "--permission-mode")
	require.True(t, ok)
	assert.Equal(t, "acceptEdits", mode)

	model, ok := argValue(t, args, "--model")
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet-4", model)

	mcp, ok := argValue(t, args, "--mcp-config")
	require.True(t, ok)
	assert.Equal(t, MCPConfigFileName, mcp)
}

func TestBuildArgsMCPRequiresCapability(t *testing.T) {
	caps := capability.Full()
	caps.AllowMCP = false
	cfg := Config{
		Capabilities: caps,
		ToolServers: []capability.ToolServerDefinition{
			{Name: "playwright", Command: "npx"},
		},
	}
	args := BuildArgs(cfg, "go")
	assert.NotContains(t, args, "--mcp-config")
}

func TestBuildEnvPrecedence(t *testing.T) {
	t.Setenv("FOREMAN_TEST_VAR", "from-process")

	cfg := Config{
		Env: map[string]string{"FOREMAN_TEST_VAR": "from-session", "EXTRA": "1"},
		ToolServers: []capability.ToolServerDefinition{
			{Name: "gh", Command: "npx", Env: map[string]string{"EXTRA": "2"}},
		},
	}
	env := BuildEnv(cfg)

	assert.Contains(t, env, "FOREMAN_TEST_VAR=from-session")
	assert.Contains(t, env, "EXTRA=2")
	assert.NotContains(t, env, "FOREMAN_TEST_VAR=from-process")
}
