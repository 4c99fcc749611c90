package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/foreman/internal/capability"
)

func TestSpawnValidation(t *testing.T) {
	_, err := Spawn(context.Background(), Config{}, "prompt")
	assert.Error(t, err)

	_, err = Spawn(context.Background(), Config{Binary: "echo"}, "")
	assert.Error(t, err)
}

func TestSpawnCapturesOutput(t *testing.T) {
	var mu sync.Mutex
	var lines []string

	cfg := Config{
		// echo prints its argument vector and exits 0, which is enough to
		// exercise spawn, capture, and wait.
		Binary:       "echo",
		WorkingDir:   t.TempDir(),
		Capabilities: capability.Safe(),
		OnLine: func(line string, stderr bool) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
	}

	a, err := Spawn(context.Background(), cfg, "hello")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := a.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Greater(t, res.Duration, time.Duration(0))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "hello")
	assert.Equal(t, strings.Join(lines, "\n"), strings.Join(a.Output(), "\n"))
}

func TestWaitReportsNonZeroExit(t *testing.T) {
	cfg := Config{Binary: "false", Capabilities: capability.Safe()}

	a, err := Spawn(context.Background(), cfg, "ignored")
	require.NoError(t, err)

	res, err := a.Wait(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, 0, res.ExitCode)
}

func TestStopTerminatesLongRunningProcess(t *testing.T) {
	// A stand-in agent that ignores its arguments and runs long.
	script := filepath.Join(t.TempDir(), "fake-agent")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 60\n"), 0755))

	cfg := Config{Binary: script, Capabilities: capability.Safe()}

	a, err := Spawn(context.Background(), cfg, "ignored")
	require.NoError(t, err)

	a.Stop(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := a.Wait(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, 0, res.ExitCode)
}
