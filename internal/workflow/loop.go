package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgebuild/foreman/internal/notify"
)

// Options bounds a workflow run.
type Options struct {
	// MaxIterations is the hard budget of test phases, at least 1.
	MaxIterations int
	// PassThreshold is the score (0-100) at which the loop declares success.
	PassThreshold int
	// Notifier receives per-iteration and completion events. Optional.
	Notifier notify.Notifier
	// Logger receives loop progress. Optional.
	Logger *slog.Logger
}

func (o Options) validate() error {
	if o.MaxIterations < 1 {
		return fmt.Errorf("maxIterations must be at least 1, got %d", o.MaxIterations)
	}
	if o.PassThreshold < 0 || o.PassThreshold > 100 {
		return fmt.Errorf("passThreshold must be 0-100, got %d", o.PassThreshold)
	}
	return nil
}

// Run drives the test-fix loop until the score reaches the threshold or
// the iteration budget is spent. A partial Result is returned alongside
// test-phase and cancellation errors so callers can inspect completed
// iterations.
func Run(ctx context.Context, wctx Context, testFn TestFunc, fixFn FixFunc, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if testFn == nil {
		return nil, fmt.Errorf("test function is required")
	}
	if fixFn == nil {
		return nil, fmt.Errorf("fix function is required")
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	start := time.Now()
	result := &Result{}

	for i := 1; i <= opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			result.Summary = "workflow cancelled"
			result.TotalDuration = time.Since(start)
			return result, err
		}

		iterStart := time.Now()
		iter := IterationResult{Number: i, Phase: PhaseTest, Timestamp: iterStart}

		testResult, err := testFn(ctx, wctx, i)
		if err != nil {
			result.TotalDuration = time.Since(start)
			result.Summary = fmt.Sprintf("test phase failed on iteration %d", i)
			return result, fmt.Errorf("test phase failed on iteration %d: %w", i, err)
		}
		iter.Test = testResult
		iter.Score = testResult.Score
		result.FinalScore = testResult.Score
		if testResult.ScreenshotPath != "" {
			result.ScreenshotPaths = append(result.ScreenshotPaths, testResult.ScreenshotPath)
		}

		log.Info("test phase complete",
			"iteration", i, "score", testResult.Score, "threshold", opts.PassThreshold)

		if testResult.Score >= opts.PassThreshold {
			iter.Duration = time.Since(iterStart)
			result.Iterations = append(result.Iterations, iter)
			result.Success = true
			break
		}

		if i == opts.MaxIterations {
			iter.Duration = time.Since(iterStart)
			result.Iterations = append(result.Iterations, iter)
			break
		}

		// A failed or no-op fix still consumes the iteration; an
		// un-fixable failure must not loop forever.
		fixResult, err := fixFn(ctx, wctx, testResult)
		if err != nil {
			log.Warn("fix phase failed, continuing", "iteration", i, "error", err)
		} else {
			iter.Fix = fixResult
			iter.Phase = PhaseFix
		}

		iter.Duration = time.Since(iterStart)
		result.Iterations = append(result.Iterations, iter)

		notifier.Notify(ctx, notify.Event{
			Kind:    "iteration",
			Repo:    wctx.Repo,
			Branch:  wctx.Branch,
			Message: fmt.Sprintf("iteration %d scored %d (threshold %d)", i, testResult.Score, opts.PassThreshold),
		})
	}

	result.TotalDuration = time.Since(start)
	if result.Success {
		result.Summary = fmt.Sprintf("passed with score %d after %d iteration(s)",
			result.FinalScore, len(result.Iterations))
	} else {
		result.Summary = fmt.Sprintf("did not reach threshold %d after %d iteration(s), final score %d",
			opts.PassThreshold, len(result.Iterations), result.FinalScore)
	}

	success := result.Success
	notifier.Notify(ctx, notify.Event{
		Kind:    "workflow_complete",
		Repo:    wctx.Repo,
		Branch:  wctx.Branch,
		Message: result.Summary,
		Success: &success,
	})

	log.Info("workflow complete",
		"success", result.Success, "final_score", result.FinalScore,
		"iterations", len(result.Iterations), "duration", result.TotalDuration)

	return result, nil
}
