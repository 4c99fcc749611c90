// Package agent spawns and supervises one coding-agent OS subprocess per
// session: argument construction from capabilities, tool-config handoff,
// incremental output capture, and graceful termination.
package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forgebuild/foreman/internal/capability"
)

// maxOutputLines caps captured output to prevent memory exhaustion from
// long-running agents. Events are still parsed past the cap; only the
// retained transcript is truncated.
const maxOutputLines = 10000

// Config holds everything needed to spawn one agent subprocess.
type Config struct {
	// Binary is the agent CLI executable, e.g. "claude".
	Binary string
	// WorkingDir is the session's working directory.
	WorkingDir string
	// Mode is the session mode (branch, project, task, review, refactor).
	Mode string
	// SystemPrompt optionally overrides the system prompt.
	SystemPrompt string
	// Capabilities is the resolved, immutable capability set.
	Capabilities capability.AgentCapabilities
	// ToolServers is the resolved tool-server list.
	ToolServers []capability.ToolServerDefinition
	// Model overrides the agent's default model when non-empty.
	Model string
	// AllowMacros permits CLI macro-commands in the prompt disclosure.
	AllowMacros bool
	// Env is merged over the process environment.
	Env map[string]string

	// OnLine receives every captured output line in arrival order.
	// stderr marks lines from the error stream. Optional.
	OnLine func(line string, stderr bool)
}

// Result is the outcome of a finished agent subprocess.
type Result struct {
	ExitCode int
	Duration time.Duration
}

// Agent is one running coding-agent subprocess.
type Agent struct {
	cmd       *exec.Cmd
	cfg       Config
	stdout    io.ReadCloser
	stderr    io.ReadCloser
	startTime time.Time

	mu     sync.Mutex
	output []string // capped transcript, stdout and stderr interleaved

	captureDone chan struct{}
}

// Spawn starts the agent subprocess with a fully composed prompt. The
// caller owns termination: either Wait for natural exit or Stop.
func Spawn(ctx context.Context, cfg Config, prompt string) (*Agent, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("agent binary is required")
	}
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "."
	}

	cmd := exec.CommandContext(ctx, cfg.Binary, BuildArgs(cfg, prompt)...)
	cmd.Dir = cfg.WorkingDir
	cmd.Env = BuildEnv(cfg)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start agent: %w", err)
	}

	a := &Agent{
		cmd:         cmd,
		cfg:         cfg,
		stdout:      stdout,
		stderr:      stderr,
		startTime:   time.Now(),
		captureDone: make(chan struct{}),
	}

	go a.captureOutput()

	return a, nil
}

// Wait blocks until the subprocess exits and all output has been captured,
// then returns the result. A non-zero exit is reported in the result, not
// as an error; err is reserved for wait-level failures.
func (a *Agent) Wait(ctx context.Context) (*Result, error) {
	errCh := make(chan error, 1)
	go func() {
		<-a.captureDone
		errCh <- a.cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		_ = a.Kill()
		return nil, ctx.Err()
	case err := <-errCh:
		res := &Result{Duration: time.Since(a.startTime)}
		if err != nil {
			exitErr, ok := err.(*exec.ExitError)
			if !ok {
				return nil, fmt.Errorf("agent wait failed: %w", err)
			}
			res.ExitCode = exitErr.ExitCode()
		}
		return res, nil
	}
}

// Stop requests cooperative termination: interrupt first, then force-kill
// if the process is still alive after the grace period. The request and
// the actual exit are distinct points in time; callers observe the exit
// through Wait.
func (a *Agent) Stop(grace time.Duration) {
	if a.cmd.Process == nil {
		return
	}
	// Interrupt may be unsupported (e.g. on Windows); fall through to the
	// timed kill either way.
	_ = a.cmd.Process.Signal(os.Interrupt)

	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-a.captureDone:
		case <-timer.C:
			_ = a.Kill()
		}
	}()
}

// Kill forcefully terminates the subprocess.
func (a *Agent) Kill() error {
	if a.cmd.Process != nil {
		return a.cmd.Process.Kill()
	}
	return nil
}

// Output returns a copy of the captured transcript.
func (a *Agent) Output() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.output))
	copy(out, a.output)
	return out
}

// captureOutput drains stdout and stderr, retaining a capped transcript
// and forwarding every line to the OnLine callback in arrival order.
func (a *Agent) captureOutput() {
	defer close(a.captureDone)

	var g errgroup.Group
	g.Go(func() error { a.captureStream(a.stdout, false); return nil })
	g.Go(func() error { a.captureStream(a.stderr, true); return nil })
	_ = g.Wait()
}

func (a *Agent) captureStream(r io.Reader, isStderr bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		a.mu.Lock()
		if len(a.output) < maxOutputLines {
			a.output = append(a.output, line)
		} else if len(a.output) == maxOutputLines {
			a.output = append(a.output, "[... output truncated: limit reached ...]")
		}
		cb := a.cfg.OnLine
		a.mu.Unlock()

		if cb != nil {
			cb(line, isStderr)
		}
	}
}
