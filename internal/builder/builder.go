// Package builder bridges the build queue to the test-fix loop: each
// dequeued job runs a profile as the test phase and an agent session as
// the fix phase, with prior learnings seeded into the fix prompt and the
// outcome written back to the knowledge store.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forgebuild/foreman/internal/capability"
	"github.com/forgebuild/foreman/internal/knowledge"
	"github.com/forgebuild/foreman/internal/notify"
	"github.com/forgebuild/foreman/internal/profile"
	"github.com/forgebuild/foreman/internal/queue"
	"github.com/forgebuild/foreman/internal/repocfg"
	"github.com/forgebuild/foreman/internal/session"
	"github.com/forgebuild/foreman/internal/workflow"
)

// Options configures a Builder.
type Options struct {
	MaxIterations int
	PassThreshold int
	// Profiles runs the test phase. Required.
	Profiles profile.Runner
	// Knowledge seeds fix prompts and records outcomes. Optional.
	Knowledge knowledge.Store
	// Repos resolves per-repo settings. Optional.
	Repos *repocfg.Store
	// Notifier receives per-iteration progress. Optional.
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Builder is the queue executor. It satisfies queue.Executor.
type Builder struct {
	sessions *session.Manager
	opts     Options
	log      *slog.Logger
}

// New builds a Builder driving fix sessions through mgr.
func New(mgr *session.Manager, opts Options) (*Builder, error) {
	if mgr == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if opts.Profiles == nil {
		return nil, fmt.Errorf("profile runner is required")
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 5
	}
	if opts.PassThreshold <= 0 {
		opts.PassThreshold = 90
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Builder{sessions: mgr, opts: opts, log: log}, nil
}

// Execute runs the full test-fix workflow for one build job.
func (b *Builder) Execute(ctx context.Context, job queue.BuildJob) error {
	wctx := workflow.Context{Repo: job.Repo, Branch: job.Branch, WorkingDir: "."}
	if b.opts.Repos != nil {
		if cfg, ok := b.opts.Repos.Get(job.Repo); ok && cfg.WorkingDir != "" {
			wctx.WorkingDir = cfg.WorkingDir
		}
	}

	result, err := workflow.Run(ctx, wctx, b.testPhase, b.fixPhase, workflow.Options{
		MaxIterations: b.opts.MaxIterations,
		PassThreshold: b.opts.PassThreshold,
		Notifier:      b.opts.Notifier,
		Logger:        b.log,
	})
	if err != nil {
		return fmt.Errorf("workflow for %s#%s: %w", job.Repo, job.Branch, err)
	}

	b.recordOutcome(ctx, job, result)

	if !result.Success {
		return fmt.Errorf("build for %s#%s did not pass: %s", job.Repo, job.Branch, result.Summary)
	}
	return nil
}

// testPhase runs the repo's profile and maps its binary verdict onto the
// workflow's 0-100 scale.
func (b *Builder) testPhase(ctx context.Context, wctx workflow.Context, iteration int) (*workflow.TestResult, error) {
	res, err := b.opts.Profiles.RunProfile(ctx, profile.Context{
		Repo:       wctx.Repo,
		Branch:     wctx.Branch,
		WorkingDir: wctx.WorkingDir,
	})
	if err != nil {
		return nil, err
	}

	tr := &workflow.TestResult{ScreenshotPath: res.ScreenshotPath}
	if res.Status == profile.StatusSuccess {
		tr.Score = 100
	} else {
		tr.Failures = []string{res.ErrorMessage}
		tr.Output = res.ErrorMessage
	}
	return tr, nil
}

// fixPhase runs one full-capability agent session prompted with the test
// failures and any prior learnings for the repo.
func (b *Builder) fixPhase(ctx context.Context, wctx workflow.Context, failures *workflow.TestResult) (*workflow.FixResult, error) {
	prompt := b.fixPrompt(ctx, wctx, failures)

	id, err := b.sessions.StartSession(session.Request{
		Mode:       session.ModeTask,
		Prompt:     prompt,
		WorkingDir: wctx.WorkingDir,
		Repo:       wctx.Repo,
		Branch:     wctx.Branch,
		Preset:     capability.PresetFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start fix session: %w", err)
	}

	if err := b.sessions.Wait(ctx, id); err != nil {
		b.sessions.Cancel(id, "build cancelled")
		return nil, err
	}

	st, err := b.sessions.GetStatus(id)
	if err != nil {
		return nil, err
	}
	if st.State != session.StateCompleted {
		return nil, fmt.Errorf("fix session ended %s: %s", st.State, st.Error)
	}

	summary := ""
	if evs, err := b.sessions.GetEvents(id, -1); err == nil && len(evs) > 0 {
		if end := evs[len(evs)-1]; end.SessionEnd != nil {
			summary = end.SessionEnd.Summary
		}
	}

	return &workflow.FixResult{
		FilesChanged: st.FilesModified,
		Summary:      summary,
	}, nil
}

func (b *Builder) fixPrompt(ctx context.Context, wctx workflow.Context, failures *workflow.TestResult) string {
	var sb strings.Builder
	sb.WriteString("The test suite for this repository is failing. Diagnose and fix the failures, then make sure the suite passes.\n\n")
	sb.WriteString("# Test failures\n")
	for _, f := range failures.Failures {
		sb.WriteString(f)
		sb.WriteString("\n")
	}

	if b.opts.Knowledge != nil && len(failures.Failures) > 0 {
		items, err := b.opts.Knowledge.Query(ctx, "", knowledge.Filters{
			Repo: wctx.Repo, Kind: "fix", Limit: 5,
		})
		if err != nil {
			b.log.Warn("knowledge query failed", "repo", wctx.Repo, "error", err)
		} else if len(items) > 0 {
			sb.WriteString("\n# Prior learnings for this repository\n")
			for _, item := range items {
				sb.WriteString("- ")
				sb.WriteString(item.Content)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

func (b *Builder) recordOutcome(ctx context.Context, job queue.BuildJob, result *workflow.Result) {
	if b.opts.Knowledge == nil {
		return
	}
	item := knowledge.Item{
		Repo: job.Repo,
		Kind: "outcome",
		Content: fmt.Sprintf("build of %s#%s: %s (score %d, %d iteration(s))",
			job.Repo, job.Branch, result.Summary, result.FinalScore, len(result.Iterations)),
	}
	if err := b.opts.Knowledge.Store(ctx, item); err != nil {
		b.log.Warn("failed to record build outcome", "repo", job.Repo, "error", err)
	}

	for _, it := range result.Iterations {
		if it.Fix == nil || it.Fix.Summary == "" {
			continue
		}
		fix := knowledge.Item{
			Repo:    job.Repo,
			Kind:    "fix",
			Content: it.Fix.Summary,
			Tags:    []string{"workflow"},
		}
		if err := b.opts.Knowledge.Store(ctx, fix); err != nil {
			b.log.Warn("failed to record fix learning", "repo", job.Repo, "error", err)
		}
	}
}
