package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/foreman/internal/capability"
)

func TestWriteMCPConfigAndRestoreOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MCPConfigFileName)

	original := []byte(`{"mcpServers":{"custom":{"command":"custom-tool"}}}`)
	require.NoError(t, os.WriteFile(path, original, 0644))

	guard, err := WriteMCPConfig(dir, []capability.ToolServerDefinition{
		{Name: "playwright", Command: "npx", Args: []string{"-y", "@playwright/mcp@latest"}},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg mcpConfigFile
	require.NoError(t, json.Unmarshal(data, &cfg))
	require.Contains(t, cfg.MCPServers, "playwright")
	assert.Equal(t, "npx", cfg.MCPServers["playwright"].Command)

	require.NoError(t, guard.Restore())
	restored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, restored, "restore must be byte-identical")
}

func TestWriteMCPConfigRestoreRemovesWhenNoneExisted(t *testing.T) {
	dir := t.TempDir()

	guard, err := WriteMCPConfig(dir, []capability.ToolServerDefinition{
		{Name: "fs", Command: "npx"},
	})
	require.NoError(t, err)

	path := filepath.Join(dir, MCPConfigFileName)
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, guard.Restore())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreIdempotent(t *testing.T) {
	dir := t.TempDir()

	guard, err := WriteMCPConfig(dir, nil)
	require.NoError(t, err)

	require.NoError(t, guard.Restore())
	// A second restore must not fail even though the file is gone.
	require.NoError(t, guard.Restore())
}
