// Package workflow implements the bounded test-fix loop: run the test
// phase, stop on threshold or exhausted budget, otherwise run the fix
// phase and go again.
package workflow

import (
	"context"
	"time"
)

// Phase labels one half of an iteration.
type Phase string

const (
	PhaseTest Phase = "test"
	PhaseFix  Phase = "fix"
)

// Context carries the repository state the loop operates on.
type Context struct {
	Repo       string
	Branch     string
	WorkingDir string
}

// TestResult reports one test-phase run.
type TestResult struct {
	// Score is the quality verdict on a 0-100 scale.
	Score int
	// Failures holds structured failure details handed to the fix phase.
	Failures []string
	// Output is the raw test transcript.
	Output string
	// ScreenshotPath points at a capture taken during the run, if any.
	ScreenshotPath string
}

// FixResult reports one fix-phase run. An empty FilesChanged is valid: a
// no-op fix still consumes an iteration.
type FixResult struct {
	FilesChanged []string
	Summary      string
}

// TestFunc runs the test phase for one iteration.
type TestFunc func(ctx context.Context, wctx Context, iteration int) (*TestResult, error)

// FixFunc runs the fix phase, given the failures from the most recent test.
type FixFunc func(ctx context.Context, wctx Context, failures *TestResult) (*FixResult, error)

// IterationResult records one loop iteration: its test phase and, when
// one ran, the fix phase that followed. Phase names the last phase
// executed in the iteration.
type IterationResult struct {
	Number    int           `json:"number"`
	Phase     Phase         `json:"phase"`
	Test      *TestResult   `json:"test,omitempty"`
	Fix       *FixResult    `json:"fix,omitempty"`
	Score     int           `json:"score"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Result is the loop's final verdict.
type Result struct {
	Success         bool              `json:"success"`
	Summary         string            `json:"summary"`
	Iterations      []IterationResult `json:"iterations"`
	FinalScore      int               `json:"finalScore"`
	TotalDuration   time.Duration     `json:"totalDuration"`
	ScreenshotPaths []string          `json:"screenshotPaths,omitempty"`
}

// TestPhases counts how many test phases were executed.
func (r *Result) TestPhases() int {
	n := 0
	for _, it := range r.Iterations {
		if it.Test != nil {
			n++
		}
	}
	return n
}

// FixPhases counts how many fix phases were executed.
func (r *Result) FixPhases() int {
	n := 0
	for _, it := range r.Iterations {
		if it.Fix != nil {
			n++
		}
	}
	return n
}
