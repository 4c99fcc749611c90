package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forgebuild/foreman/internal/ai"
	"github.com/forgebuild/foreman/internal/capability"
	"github.com/forgebuild/foreman/internal/events"
	"github.com/forgebuild/foreman/internal/logger"
	"github.com/forgebuild/foreman/internal/session"
	"github.com/forgebuild/foreman/internal/stream"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a single agent session and stream its events",
	Long: `Start one agent session in the foreground, print its event stream,
and exit with the session's verdict. No server is required.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		workingDir, _ := cmd.Flags().GetString("dir")
		preset, _ := cmd.Flags().GetString("preset")
		model, _ := cmd.Flags().GetString("model")
		systemPrompt, _ := cmd.Flags().GetString("system-prompt")
		toolServers, _ := cmd.Flags().GetStringSlice("tool-server")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runSession(ctx, session.Request{
			Mode:         session.Mode(mode),
			Prompt:       args[0],
			WorkingDir:   workingDir,
			SystemPrompt: systemPrompt,
			Preset:       capability.Preset(preset),
			ToolServers:  toolServers,
			Model:        model,
		})
	},
}

func init() {
	runCmd.Flags().StringP("mode", "m", "task", "Session mode (branch, project, task, review, refactor)")
	runCmd.Flags().StringP("dir", "d", ".", "Working directory for the agent")
	runCmd.Flags().String("preset", "full", "Capability preset (full, safe)")
	runCmd.Flags().String("model", "", "Model override")
	runCmd.Flags().String("system-prompt", "", "Extra system prompt for the agent")
	runCmd.Flags().StringSlice("tool-server", nil, "Named tool servers to attach (repeatable)")
	rootCmd.AddCommand(runCmd)
}

func runSession(ctx context.Context, req session.Request) error {
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

	id, err := mgr.StartSession(req)
	if err != nil {
		return err
	}

	// The subscription delivers the backlog before returning, so nothing
	// falls between catch-up and the live feed.
	ch := make(chan indexedEvent, 256)
	unsubscribe, err := mgr.Subscribe(id, -1, func(index int, ev events.StreamEvent) {
		select {
		case ch <- indexedEvent{index, ev}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	lastSeen := -1

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		if err := mgr.Wait(ctx, id); err != nil {
			mgr.Cancel(id, "interrupted")
			_ = mgr.Wait(context.Background(), id)
		}
	}()

	for running := true; running; {
		select {
		case ie := <-ch:
			if ie.index <= lastSeen {
				continue
			}
			lastSeen = ie.index
			displayEvent(ie.ev)
		case <-finished:
			running = false
		}
	}
	unsubscribe()

	// The buffered channel may still hold events, and the bounded buffer
	// can drop under bursts; a final replay closes both gaps.
	if tail, err := mgr.GetEvents(id, lastSeen); err == nil {
		for _, ev := range tail {
			displayEvent(ev)
		}
	}

	st, err := mgr.GetStatus(id)
	if err != nil {
		return err
	}
	if st.State != session.StateCompleted {
		msg := st.Error
		if msg == "" {
			msg = string(st.State)
		}
		return fmt.Errorf("session %s: %s", shortID(id), msg)
	}
	return nil
}

type indexedEvent struct {
	index int
	ev    events.StreamEvent
}
