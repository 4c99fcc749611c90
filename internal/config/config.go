// Package config loads foreman configuration from a YAML file and
// FOREMAN_-prefixed environment variables, with sane defaults for every
// field so a bare `foreman serve` works out of the box.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the foreman process.
type Config struct {
	// Server holds the HTTP/WebSocket listener settings.
	Server ServerConfig `mapstructure:"server"`
	// Agent holds coding-agent subprocess settings.
	Agent AgentConfig `mapstructure:"agent"`
	// Sessions holds session-manager settings.
	Sessions SessionConfig `mapstructure:"sessions"`
	// Workflow holds test-fix loop defaults.
	Workflow WorkflowConfig `mapstructure:"workflow"`
	// Knowledge holds the knowledge store settings.
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	// Notify holds the webhook notifier settings.
	Notify NotifyConfig `mapstructure:"notify"`
	// RepoConfigPath is the YAML file holding per-repository configuration.
	RepoConfigPath string `mapstructure:"repo_config_path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// KeepaliveInterval is how often the stream endpoint pings idle
	// connections so intermediaries do not reap them.
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
}

// AgentConfig holds coding-agent subprocess settings.
type AgentConfig struct {
	// Binary is the agent CLI executable (default "claude").
	Binary string `mapstructure:"binary"`
	// Model overrides the agent's default model when non-empty.
	Model string `mapstructure:"model"`
	// GracePeriod is how long a cancelled agent gets to exit after the
	// interrupt signal before it is force-killed.
	GracePeriod time.Duration `mapstructure:"grace_period"`
	// AnthropicAPIKey enables AI-refined session summaries when set.
	// Falls back to the ANTHROPIC_API_KEY environment variable.
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	// SummaryModel is the model used for summary refinement.
	SummaryModel string `mapstructure:"summary_model"`
}

// SessionConfig holds session-manager settings.
type SessionConfig struct {
	// DefaultTimeout applies when a session's capabilities carry none.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	// HistoryLimit bounds the most-recent-first history ring.
	HistoryLimit int `mapstructure:"history_limit"`
	// CleanupMaxAge is the minimum idle age before a terminal session is
	// eligible for garbage collection.
	CleanupMaxAge time.Duration `mapstructure:"cleanup_max_age"`
}

// WorkflowConfig holds test-fix loop defaults.
type WorkflowConfig struct {
	MaxIterations int     `mapstructure:"max_iterations"`
	PassThreshold float64 `mapstructure:"pass_threshold"`
	// TestCommand is the default shell command the build queue runs to
	// score a repository when the repo config carries no profile of its
	// own. Empty disables queued builds.
	TestCommand string `mapstructure:"test_command"`
	// TestTimeout bounds a single test command run.
	TestTimeout time.Duration `mapstructure:"test_timeout"`
}

// KnowledgeConfig holds knowledge store settings.
type KnowledgeConfig struct {
	// Path is the SQLite database file. Empty disables the store.
	Path string `mapstructure:"path"`
}

// NotifyConfig holds webhook notifier settings.
type NotifyConfig struct {
	// WebhookURL is the JSON webhook endpoint. Empty disables notifications.
	WebhookURL string `mapstructure:"webhook_url"`
	// RatePerMinute caps outgoing notifications.
	RatePerMinute int `mapstructure:"rate_per_minute"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8480",
			KeepaliveInterval: 30 * time.Second,
		},
		Agent: AgentConfig{
			Binary:       "claude",
			GracePeriod:  5 * time.Second,
			SummaryModel: "claude-3-5-haiku-latest",
		},
		Sessions: SessionConfig{
			DefaultTimeout: 30 * time.Minute,
			HistoryLimit:   100,
			CleanupMaxAge:  24 * time.Hour,
		},
		Workflow: WorkflowConfig{
			MaxIterations: 5,
			PassThreshold: 90,
			TestTimeout:   15 * time.Minute,
		},
		Knowledge: KnowledgeConfig{
			Path: filepath.Join(".foreman", "knowledge.db"),
		},
		Notify: NotifyConfig{
			RatePerMinute: 30,
		},
		RepoConfigPath: filepath.Join(".foreman", "repos.yaml"),
		LogLevel:       "info",
	}
}

// Load reads configuration from the given file (optional) and from
// FOREMAN_-prefixed environment variables layered over the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FOREMAN")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.keepalive_interval", def.Server.KeepaliveInterval)
	v.SetDefault("agent.binary", def.Agent.Binary)
	v.SetDefault("agent.model", def.Agent.Model)
	v.SetDefault("agent.grace_period", def.Agent.GracePeriod)
	v.SetDefault("agent.summary_model", def.Agent.SummaryModel)
	v.SetDefault("sessions.default_timeout", def.Sessions.DefaultTimeout)
	v.SetDefault("sessions.history_limit", def.Sessions.HistoryLimit)
	v.SetDefault("sessions.cleanup_max_age", def.Sessions.CleanupMaxAge)
	v.SetDefault("workflow.max_iterations", def.Workflow.MaxIterations)
	v.SetDefault("workflow.pass_threshold", def.Workflow.PassThreshold)
	v.SetDefault("workflow.test_command", def.Workflow.TestCommand)
	v.SetDefault("workflow.test_timeout", def.Workflow.TestTimeout)
	v.SetDefault("knowledge.path", def.Knowledge.Path)
	v.SetDefault("notify.webhook_url", def.Notify.WebhookURL)
	v.SetDefault("notify.rate_per_minute", def.Notify.RatePerMinute)
	v.SetDefault("repo_config_path", def.RepoConfigPath)
	v.SetDefault("log_level", def.LogLevel)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration has usable values.
func (c Config) Validate() error {
	if c.Agent.Binary == "" {
		return fmt.Errorf("agent.binary must not be empty")
	}
	if c.Sessions.HistoryLimit < 1 {
		return fmt.Errorf("sessions.history_limit must be >= 1 (got %d)", c.Sessions.HistoryLimit)
	}
	if c.Sessions.DefaultTimeout <= 0 {
		return fmt.Errorf("sessions.default_timeout must be positive (got %v)", c.Sessions.DefaultTimeout)
	}
	if c.Workflow.MaxIterations < 1 {
		return fmt.Errorf("workflow.max_iterations must be >= 1 (got %d)", c.Workflow.MaxIterations)
	}
	if c.Workflow.PassThreshold < 0 || c.Workflow.PassThreshold > 100 {
		return fmt.Errorf("workflow.pass_threshold must be within 0-100 (got %v)", c.Workflow.PassThreshold)
	}
	return nil
}
