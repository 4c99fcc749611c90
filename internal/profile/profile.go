// Package profile defines the contract between the orchestration core and
// the per-framework build runners (web, mobile, desktop). The core never
// knows how a profile builds or tests; it only consumes this interface.
package profile

import (
	"context"
	"time"
)

// Status is a profile run's verdict.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Context describes the repository state a profile runs against.
type Context struct {
	Repo       string
	Branch     string
	WorkingDir string
	Commit     string
}

// Result is what a profile run reports back.
type Result struct {
	Status         Status
	ScreenshotPath string
	ErrorMessage   string
	// Durations records named phases (install, build, test) for reporting.
	Durations map[string]time.Duration
}

// Runner executes a build/test profile against a repository checkout.
type Runner interface {
	RunProfile(ctx context.Context, pctx Context) (*Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, pctx Context) (*Result, error)

func (f RunnerFunc) RunProfile(ctx context.Context, pctx Context) (*Result, error) {
	return f(ctx, pctx)
}
