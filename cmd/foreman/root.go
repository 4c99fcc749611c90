package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgebuild/foreman/internal/config"
	"github.com/forgebuild/foreman/internal/logger"
)

var (
	cfgFile  string
	addrFlag string

	cfg config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Agent session orchestrator",
	Long: `foreman supervises coding-agent sessions: it spawns agent subprocesses
under capability sandboxing, parses their output into a typed event
stream, and drives bounded test-fix build loops.

Run 'foreman serve' to start the orchestrator, then use the other
commands to start sessions, watch their event streams, and manage the
build queue.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			if _, err := os.Stat(defaultConfigPath); err == nil {
				path = defaultConfigPath
			}
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if addrFlag != "" {
			cfg.Server.Addr = addrFlag
		}
		log = logger.New(cfg.LogLevel, "foreman")
		return nil
	},
}

const defaultConfigPath = ".foreman/config.yaml"

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default "+defaultConfigPath+" if present)")
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "Server address override (host:port)")
}
