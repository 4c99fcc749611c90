package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forgebuild/foreman/internal/capability"
)

func TestComposePromptIncludesPreambleAndDisclosure(t *testing.T) {
	cfg := Config{
		Mode:         "review",
		Capabilities: capability.Safe(),
		AllowMacros:  false,
	}
	prompt := ComposePrompt(cfg, "look at internal/agent")

	assert.Contains(t, prompt, "You are reviewing code")
	assert.Contains(t, prompt, "# Session permissions")
	assert.Contains(t, prompt, "You may NOT modify any files")
	assert.Contains(t, prompt, "You may NOT run shell commands")
	assert.Contains(t, prompt, "slash-commands")
	assert.True(t, strings.HasSuffix(prompt, "look at internal/agent"))
}

func TestComposePromptFullCapabilities(t *testing.T) {
	cfg := Config{
		Mode:         "branch",
		Capabilities: capability.Full(),
		AllowMacros:  true,
		ToolServers: []capability.ToolServerDefinition{
			{Name: "playwright", Command: "npx", Description: "Browser automation"},
		},
	}
	prompt := ComposePrompt(cfg, "add a feature")

	assert.Contains(t, prompt, "You may create and edit files")
	assert.Contains(t, prompt, "You may run shell commands")
	assert.Contains(t, prompt, "max depth 3")
	assert.NotContains(t, prompt, "slash-commands")
	assert.Contains(t, prompt, "# Available tool servers")
	assert.Contains(t, prompt, "playwright: Browser automation")
}

func TestComposePromptUnknownModeHasNoPreamble(t *testing.T) {
	cfg := Config{Mode: "nonsense", Capabilities: capability.Safe()}
	prompt := ComposePrompt(cfg, "hello")

	assert.True(t, strings.HasPrefix(prompt, "# Session permissions"))
}

func TestComposePromptSystemPromptOverride(t *testing.T) {
	cfg := Config{
		Mode:         "task",
		SystemPrompt: "Always answer in haiku.",
		Capabilities: capability.Safe(),
	}
	prompt := ComposePrompt(cfg, "do it")

	assert.Contains(t, prompt, "Always answer in haiku.")
	task := strings.Index(prompt, "single focused task")
	sys := strings.Index(prompt, "Always answer in haiku.")
	assert.Less(t, task, sys, "preamble precedes system prompt")
}
