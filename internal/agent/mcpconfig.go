package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/forgebuild/foreman/internal/capability"
)

// MCPConfigFileName is the well-known descriptor path, relative to the
// session's working directory, that the agent CLI reads tool-server
// definitions from.
const MCPConfigFileName = ".mcp.json"

// ConfigGuard holds the pre-session state of a working directory's tool
// descriptor file so it can be restored exactly once at termination,
// from whichever code path gets there first.
type ConfigGuard struct {
	path     string
	existed  bool
	original []byte

	once sync.Once
	err  error
}

type mcpServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

type mcpConfigFile struct {
	MCPServers map[string]mcpServerEntry `json:"mcpServers"`
}

// WriteMCPConfig backs up any existing descriptor file in dir and writes a
// fresh one describing the session's tool servers. The returned guard must
// be Restored when the session terminates.
func WriteMCPConfig(dir string, servers []capability.ToolServerDefinition) (*ConfigGuard, error) {
	path := filepath.Join(dir, MCPConfigFileName)
	guard := &ConfigGuard{path: path}

	if data, err := os.ReadFile(path); err == nil {
		guard.existed = true
		guard.original = data
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read existing tool config: %w", err)
	}

	cfg := mcpConfigFile{MCPServers: make(map[string]mcpServerEntry, len(servers))}
	for _, srv := range servers {
		cfg.MCPServers[srv.Name] = mcpServerEntry{
			Command: srv.Command,
			Args:    srv.Args,
			Env:     srv.Env,
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write tool config: %w", err)
	}

	return guard, nil
}

// Restore puts the descriptor file back to its pre-session state: the
// original bytes verbatim if one existed, otherwise removal. It runs at
// most once; later calls return the first call's result.
func (g *ConfigGuard) Restore() error {
	g.once.Do(func() {
		if g.existed {
			g.err = os.WriteFile(g.path, g.original, 0644)
		} else {
			err := os.Remove(g.path)
			if err != nil && !os.IsNotExist(err) {
				g.err = err
			}
		}
	})
	return g.err
}
