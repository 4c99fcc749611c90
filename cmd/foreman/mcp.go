package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forgebuild/foreman/internal/ai"
	"github.com/forgebuild/foreman/internal/builder"
	"github.com/forgebuild/foreman/internal/capability"
	"github.com/forgebuild/foreman/internal/logger"
	"github.com/forgebuild/foreman/internal/mcpserver"
	"github.com/forgebuild/foreman/internal/notify"
	"github.com/forgebuild/foreman/internal/queue"
	"github.com/forgebuild/foreman/internal/repocfg"
	"github.com/forgebuild/foreman/internal/session"
	"github.com/forgebuild/foreman/internal/stream"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve orchestrator tools over MCP stdio",
	Long: `Expose session and queue operations as MCP tools on stdin/stdout,
for use as a tool server by MCP-capable clients.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runMCP(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(ctx context.Context) error {
	apiKey := cfg.Agent.AnthropicAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	hub := stream.NewHub()
	mgr := session.NewManager(hub, session.Options{
		Binary:         cfg.Agent.Binary,
		Model:          cfg.Agent.Model,
		GracePeriod:    cfg.Agent.GracePeriod,
		HistoryLimit:   cfg.Sessions.HistoryLimit,
		DefaultTimeout: cfg.Sessions.DefaultTimeout,
		Registry:       capability.DefaultRegistry(),
		Logger:         logger.New(cfg.LogLevel, "session"),
		Summarizer:     ai.NewSummarizer(apiKey, cfg.Agent.SummaryModel, logger.New(cfg.LogLevel, "ai")),
	})

	// Queued builds need a test command; without one only the session
	// tools are exposed.
	var q *queue.Queue
	if cfg.Workflow.TestCommand != "" {
		repos, err := repocfg.Open(cfg.RepoConfigPath)
		if err != nil {
			return err
		}
		bldr, err := builder.New(mgr, builder.Options{
			MaxIterations: cfg.Workflow.MaxIterations,
			PassThreshold: int(cfg.Workflow.PassThreshold),
			Profiles:      testRunner(repos),
			Repos:         repos,
			Notifier:      notify.Nop{},
			Logger:        logger.New(cfg.LogLevel, "builder"),
		})
		if err != nil {
			return err
		}
		q = queue.New(bldr, logger.New(cfg.LogLevel, "queue"))
		q.Start(ctx)
	}

	return mcpserver.NewServer(mgr, q).ServeStdio(ctx)
}
