package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8480", cfg.Server.Addr)
	assert.Equal(t, "claude", cfg.Agent.Binary)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.DefaultTimeout)
	assert.Equal(t, 100, cfg.Sessions.HistoryLimit)
	assert.Equal(t, 5, cfg.Workflow.MaxIterations)
	assert.Equal(t, 90.0, cfg.Workflow.PassThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Workflow.TestTimeout)
	assert.Empty(t, cfg.Workflow.TestCommand)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foreman.yaml")
	data := []byte(`
server:
  addr: ":9999"
agent:
  binary: fake-agent
workflow:
  max_iterations: 3
  pass_threshold: 75
  test_command: npm test
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "fake-agent", cfg.Agent.Binary)
	assert.Equal(t, 3, cfg.Workflow.MaxIterations)
	assert.Equal(t, 75.0, cfg.Workflow.PassThreshold)
	assert.Equal(t, "npm test", cfg.Workflow.TestCommand)
	// Untouched fields keep defaults.
	assert.Equal(t, 100, cfg.Sessions.HistoryLimit)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty binary",
			mutate:  func(c *Config) { c.Agent.Binary = "" },
			wantErr: "agent.binary",
		},
		{
			name:    "zero history limit",
			mutate:  func(c *Config) { c.Sessions.HistoryLimit = 0 },
			wantErr: "history_limit",
		},
		{
			name:    "zero iterations",
			mutate:  func(c *Config) { c.Workflow.MaxIterations = 0 },
			wantErr: "max_iterations",
		},
		{
			name:    "threshold above range",
			mutate:  func(c *Config) { c.Workflow.PassThreshold = 101 },
			wantErr: "pass_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
