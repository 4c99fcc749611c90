package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgebuild/foreman/internal/ai"
	"github.com/forgebuild/foreman/internal/builder"
	"github.com/forgebuild/foreman/internal/capability"
	"github.com/forgebuild/foreman/internal/knowledge"
	"github.com/forgebuild/foreman/internal/logger"
	"github.com/forgebuild/foreman/internal/notify"
	"github.com/forgebuild/foreman/internal/profile"
	"github.com/forgebuild/foreman/internal/queue"
	"github.com/forgebuild/foreman/internal/repocfg"
	"github.com/forgebuild/foreman/internal/server"
	"github.com/forgebuild/foreman/internal/session"
	"github.com/forgebuild/foreman/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestration server",
	Long: `Start the HTTP/WebSocket server, session manager, and build queue.

The server exposes session and queue operations under /api and streams
session events over WebSocket at /api/sessions/{id}/stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	repos, err := repocfg.Open(cfg.RepoConfigPath)
	if err != nil {
		return fmt.Errorf("opening repo config: %w", err)
	}

	apiKey := cfg.Agent.AnthropicAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	summarizer := ai.NewSummarizer(apiKey, cfg.Agent.SummaryModel, logger.New(cfg.LogLevel, "ai"))

	hub := stream.NewHub()
	mgr := session.NewManager(hub, session.Options{
		Binary:         cfg.Agent.Binary,
		Model:          cfg.Agent.Model,
		GracePeriod:    cfg.Agent.GracePeriod,
		HistoryLimit:   cfg.Sessions.HistoryLimit,
		DefaultTimeout: cfg.Sessions.DefaultTimeout,
		Registry:       capability.DefaultRegistry(),
		Logger:         logger.New(cfg.LogLevel, "session"),
		Summarizer:     summarizer,
	})

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.RatePerMinute, logger.New(cfg.LogLevel, "notify"))
	}

	var store knowledge.Store
	if cfg.Knowledge.Path != "" {
		s, err := knowledge.OpenSQLite(cfg.Knowledge.Path)
		if err != nil {
			return fmt.Errorf("opening knowledge store: %w", err)
		}
		defer s.Close()
		store = s
	}

	bldr, err := builder.New(mgr, builder.Options{
		MaxIterations: cfg.Workflow.MaxIterations,
		PassThreshold: int(cfg.Workflow.PassThreshold),
		Profiles:      testRunner(repos),
		Knowledge:     store,
		Repos:         repos,
		Notifier:      notifier,
		Logger:        logger.New(cfg.LogLevel, "builder"),
	})
	if err != nil {
		return fmt.Errorf("building queue executor: %w", err)
	}

	q := queue.New(bldr, logger.New(cfg.LogLevel, "queue"))
	q.Start(ctx)

	srv, err := server.New(server.Options{
		Sessions:          mgr,
		Queue:             q,
		Repos:             repos,
		Logger:            logger.New(cfg.LogLevel, "server"),
		KeepaliveInterval: cfg.Server.KeepaliveInterval,
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Periodically sweep terminal sessions past the retention age.
	if cfg.Sessions.CleanupMaxAge > 0 {
		go runCleanupSweep(ctx, mgr)
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	q.Wait()
	return repos.Flush()
}

func runCleanupSweep(ctx context.Context, mgr *session.Manager) {
	ticker := time.NewTicker(cfg.Sessions.CleanupMaxAge / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mgr.Cleanup(cfg.Sessions.CleanupMaxAge); n > 0 {
				log.Info("cleaned up sessions", "count", n)
			}
		}
	}
}

// testRunner resolves the test command per repository, falling back to
// the workflow default.
func testRunner(repos *repocfg.Store) profile.Runner {
	return profile.RunnerFunc(func(ctx context.Context, pctx profile.Context) (*profile.Result, error) {
		command := cfg.Workflow.TestCommand
		if rc, ok := repos.Get(pctx.Repo); ok && rc.TestCommand != "" {
			command = rc.TestCommand
		}
		if command == "" {
			return nil, fmt.Errorf("no test command configured for repo %s", pctx.Repo)
		}
		runner := &profile.CommandRunner{Command: command, Timeout: cfg.Workflow.TestTimeout}
		return runner.RunProfile(ctx, pctx)
	})
}
