package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgebuild/foreman/internal/ai"
	"github.com/forgebuild/foreman/internal/builder"
	"github.com/forgebuild/foreman/internal/capability"
	"github.com/forgebuild/foreman/internal/knowledge"
	"github.com/forgebuild/foreman/internal/logger"
	"github.com/forgebuild/foreman/internal/profile"
	"github.com/forgebuild/foreman/internal/queue"
	"github.com/forgebuild/foreman/internal/session"
	"github.com/forgebuild/foreman/internal/stream"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run the test-fix loop against the current checkout",
	Long: `Run the bounded test-fix loop in the foreground: execute the test
command, and while it fails, start an agent session to fix the
failures, up to the iteration cap. No server is required.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		testCommand, _ := cmd.Flags().GetString("test-command")
		maxIterations, _ := cmd.Flags().GetInt("max-iterations")
		threshold, _ := cmd.Flags().GetInt("threshold")
		branch, _ := cmd.Flags().GetString("branch")

		if testCommand == "" {
			testCommand = cfg.Workflow.TestCommand
		}
		if testCommand == "" {
			return fmt.Errorf("no test command: pass --test-command or set workflow.test_command")
		}
		if maxIterations == 0 {
			maxIterations = cfg.Workflow.MaxIterations
		}
		if threshold == 0 {
			threshold = int(cfg.Workflow.PassThreshold)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWorkflow(ctx, testCommand, branch, maxIterations, threshold)
	},
}

func init() {
	workflowCmd.Flags().String("test-command", "", "Shell command that must pass")
	workflowCmd.Flags().Int("max-iterations", 0, "Maximum test-fix iterations")
	workflowCmd.Flags().Int("threshold", 0, "Pass threshold (0-100)")
	workflowCmd.Flags().String("branch", "main", "Branch name recorded with the outcome")
	rootCmd.AddCommand(workflowCmd)
}

func runWorkflow(ctx context.Context, testCommand, branch string, maxIterations, threshold int) error {
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
		MaxIterations: maxIterations,
		PassThreshold: threshold,
		Profiles: &profile.CommandRunner{
			Command: testCommand,
			Timeout: cfg.Workflow.TestTimeout,
		},
		Knowledge: store,
		Logger:    logger.New(cfg.LogLevel, "builder"),
	})
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	repo := filepath.Base(cwd)

	start := time.Now()
	execErr := bldr.Execute(ctx, queue.BuildJob{
		Repo:       repo,
		Branch:     branch,
		EnqueuedAt: start,
		Trigger:    queue.TriggerManual,
	})

	elapsed := time.Since(start).Round(time.Second)
	if execErr != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("%s %v (%s)\n", red("✗"), execErr, elapsed)
		return fmt.Errorf("workflow did not pass")
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s tests passing (%s)\n", green("✓"), elapsed)
	return nil
}
