package profile

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// CommandRunner runs a single shell command as the test phase for a
// repository. It is the minimal Runner; framework-specific runners live
// outside this module.
type CommandRunner struct {
	// Command is executed via the shell in the checkout's working dir.
	Command string
	// Timeout bounds one run; zero means 15 minutes.
	Timeout time.Duration
}

func (r *CommandRunner) RunProfile(ctx context.Context, pctx Context) (*Result, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, "sh", "-c", r.Command)
	cmd.Dir = pctx.WorkingDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res := &Result{
		Status:    StatusSuccess,
		Durations: map[string]time.Duration{"test": time.Since(start)},
	}
	if err != nil {
		res.Status = StatusFailure
		res.ErrorMessage = err.Error() + "\n" + out.String()
	}
	return res, nil
}
