// Package repocfg is the durable per-repository configuration store: a
// YAML file written through on every update, so a crash never loses an
// acknowledged change.
package repocfg

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// RepoConfig is the per-repository settings block.
type RepoConfig struct {
	Name          string `yaml:"name" json:"name"`
	DefaultBranch string `yaml:"defaultBranch,omitempty" json:"defaultBranch,omitempty"`
	WorkingDir    string `yaml:"workingDir,omitempty" json:"workingDir,omitempty"`
	Profile       string `yaml:"profile,omitempty" json:"profile,omitempty"`
	// TestCommand overrides the serve-level test command for this repo.
	TestCommand string `yaml:"testCommand,omitempty" json:"testCommand,omitempty"`
	// AutoBuild enqueues a build when a webhook push arrives.
	AutoBuild bool `yaml:"autoBuild,omitempty" json:"autoBuild,omitempty"`
}

type fileFormat struct {
	Repos map[string]RepoConfig `yaml:"repos"`
}

// Store keeps repo configs in memory and writes the backing YAML file
// synchronously on every mutation.
type Store struct {
	path string

	mu    sync.Mutex
	repos map[string]RepoConfig
}

// Open loads the store at path, creating an empty one if the file does
// not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, repos: make(map[string]RepoConfig)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read repo config: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse repo config: %w", err)
	}
	if f.Repos != nil {
		s.repos = f.Repos
	}
	return s, nil
}

// Get returns the config for name and whether it exists.
func (s *Store) Get(name string) (RepoConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.repos[name]
	return cfg, ok
}

// List returns every known repo config.
func (s *Store) List() []RepoConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RepoConfig, 0, len(s.repos))
	for _, cfg := range s.repos {
		out = append(out, cfg)
	}
	return out
}

// Update applies fn to the named config (a zero config for new names) and
// writes the file before returning. The change is durable once Update
// returns nil.
func (s *Store) Update(name string, fn func(*RepoConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.repos[name]
	cfg.Name = name
	fn(&cfg)
	s.repos[name] = cfg

	return s.flushLocked()
}

// Delete removes the named config and writes the file.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[name]; !ok {
		return nil
	}
	delete(s.repos, name)
	return s.flushLocked()
}

// Flush rewrites the backing file from the in-memory state.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create repo config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(fileFormat{Repos: s.repos})
	if err != nil {
		return fmt.Errorf("failed to marshal repo config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write repo config: %w", err)
	}
	return nil
}
