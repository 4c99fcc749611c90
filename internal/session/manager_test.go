package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/foreman/internal/agent"
	"github.com/forgebuild/foreman/internal/capability"
	"github.com/forgebuild/foreman/internal/events"
	"github.com/forgebuild/foreman/internal/stream"
)

// fakeProc stands in for a spawned agent subprocess.
type fakeProc struct {
	exitCode int
	release  chan struct{}
	once     sync.Once

	mu      sync.Mutex
	stopped bool
	lines   []string
}

func newFakeProc(exitCode int) *fakeProc {
	return &fakeProc{exitCode: exitCode, release: make(chan struct{})}
}

func (f *fakeProc) exit() { f.once.Do(func() { close(f.release) }) }

func (f *fakeProc) Wait(ctx context.Context) (*agent.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.release:
		return &agent.Result{ExitCode: f.exitCode, Duration: time.Millisecond}, nil
	}
}

func (f *fakeProc) Stop(grace time.Duration) {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.exit()
}

func (f *fakeProc) Kill() error {
	f.exit()
	return nil
}

func (f *fakeProc) Output() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lines
}

// fakeSpawn returns a SpawnFunc that feeds the given lines through the
// session's line handler and then lets the process exit with exitCode.
func fakeSpawn(proc *fakeProc, lines []string, autoExit bool) SpawnFunc {
	return func(ctx context.Context, cfg agent.Config, prompt string) (Process, error) {
		proc.mu.Lock()
		proc.lines = lines
		proc.mu.Unlock()
		go func() {
			for _, line := range lines {
				cfg.OnLine(line, false)
			}
			if autoExit {
				proc.exit()
			}
		}()
		return proc, nil
	}
}

func newTestManager(t *testing.T, spawn SpawnFunc) (*Manager, *stream.Hub) {
	t.Helper()
	hub := stream.NewHub()
	m := NewManager(hub, Options{Binary: "fake-agent", Spawn: spawn})
	return m, hub
}

func waitTerminal(t *testing.T, m *Manager, id string) Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx, id))
	st, err := m.GetStatus(id)
	require.NoError(t, err)
	return st
}

func TestStartSessionValidation(t *testing.T) {
	m, _ := newTestManager(t, fakeSpawn(newFakeProc(0), nil, true))

	_, err := m.StartSession(Request{Prompt: "   "})
	assert.Error(t, err)

	_, err = m.StartSession(Request{Prompt: "go", Mode: "demolish"})
	assert.Error(t, err)
}

func TestSessionCompletes(t *testing.T) {
	proc := newFakeProc(0)
	lines := []string{
		`{"type":"text","text":"working on it"}`,
		`{"type":"tool_use","name":"Write","id":"t1","input":{"file_path":"main.go","content":"x"}}`,
		"Summary: added main entrypoint",
	}
	m, _ := newTestManager(t, fakeSpawn(proc, lines, true))

	id, err := m.StartSession(Request{Mode: ModeTask, Prompt: "add main"})
	require.NoError(t, err)

	st := waitTerminal(t, m, id)
	assert.Equal(t, StateCompleted, st.State)
	assert.Contains(t, st.FilesModified, "main.go")
	assert.Empty(t, st.Error)

	evs, err := m.GetEvents(id, -1)
	require.NoError(t, err)
	require.NotEmpty(t, evs)
	assert.Equal(t, events.EventSessionStart, evs[0].Type)

	ends := 0
	for _, ev := range evs {
		if ev.Type == events.EventSessionEnd {
			ends++
		}
	}
	assert.Equal(t, 1, ends)
	last := evs[len(evs)-1]
	require.Equal(t, events.EventSessionEnd, last.Type)
	require.NotNil(t, last.SessionEnd)
	assert.True(t, last.SessionEnd.Success)
	assert.Contains(t, last.SessionEnd.FilesModified, "main.go")
}

func TestSessionFailsOnNonZeroExit(t *testing.T) {
	proc := newFakeProc(3)
	m, _ := newTestManager(t, fakeSpawn(proc, nil, true))

	id, err := m.StartSession(Request{Prompt: "break things"})
	require.NoError(t, err)

	st := waitTerminal(t, m, id)
	assert.Equal(t, StateFailed, st.State)
	assert.Contains(t, st.Error, "exited with code 3")

	evs, err := m.GetEvents(id, -1)
	require.NoError(t, err)
	last := evs[len(evs)-1]
	require.Equal(t, events.EventSessionEnd, last.Type)
	assert.False(t, last.SessionEnd.Success)
}

func TestSessionFailsOnSpawnError(t *testing.T) {
	spawn := func(ctx context.Context, cfg agent.Config, prompt string) (Process, error) {
		return nil, fmt.Errorf("binary not found")
	}
	m, _ := newTestManager(t, spawn)

	id, err := m.StartSession(Request{Prompt: "go"})
	require.NoError(t, err)

	st := waitTerminal(t, m, id)
	assert.Equal(t, StateFailed, st.State)
	assert.Contains(t, st.Error, "binary not found")
}

func TestCancelRunningSession(t *testing.T) {
	proc := newFakeProc(0)
	m, _ := newTestManager(t, fakeSpawn(proc, nil, false))

	id, err := m.StartSession(Request{Prompt: "long task"})
	require.NoError(t, err)

	// Let the session reach running before cancelling.
	require.Eventually(t, func() bool {
		st, err := m.GetStatus(id)
		return err == nil && st.State == StateRunning
	}, 5*time.Second, 5*time.Millisecond)

	assert.True(t, m.Cancel(id, "operator stop"))
	st := waitTerminal(t, m, id)
	assert.Equal(t, StateCancelled, st.State)

	proc.mu.Lock()
	assert.True(t, proc.stopped)
	proc.mu.Unlock()

	evs, err := m.GetEvents(id, -1)
	require.NoError(t, err)
	last := evs[len(evs)-1]
	require.Equal(t, events.EventSessionEnd, last.Type)
	assert.False(t, last.SessionEnd.Success)
	assert.Equal(t, "operator stop", last.SessionEnd.Summary)

	// Second cancel is a no-op and reports failure.
	assert.False(t, m.Cancel(id, "again"))
}

func TestCancelUnknownSession(t *testing.T) {
	m, _ := newTestManager(t, fakeSpawn(newFakeProc(0), nil, true))
	assert.False(t, m.Cancel("no-such-id", ""))
}

func TestCancelAfterNaturalExit(t *testing.T) {
	proc := newFakeProc(0)
	m, _ := newTestManager(t, fakeSpawn(proc, nil, true))

	id, err := m.StartSession(Request{Prompt: "quick"})
	require.NoError(t, err)
	waitTerminal(t, m, id)

	assert.False(t, m.Cancel(id, ""))
}

func TestCancelDuringToolConfigWriteRestoresOriginal(t *testing.T) {
	dir := t.TempDir()
	orig := []byte(`{"mcpServers":{"keep":{"command":"keep-me"}}}`)
	path := filepath.Join(dir, agent.MCPConfigFileName)
	require.NoError(t, os.WriteFile(path, orig, 0644))

	proc := newFakeProc(0)
	m, hub := newTestManager(t, fakeSpawn(proc, nil, false))

	id, err := m.StartSession(Request{
		Mode:        ModeTask,
		Prompt:      "use tools",
		WorkingDir:  dir,
		ToolServers: []string{"github"},
	})
	require.NoError(t, err)

	// Cancel as soon as the config write is announced, so termination
	// can land while the write is still in flight.
	trigger := make(chan struct{}, 1)
	unsub, err := hub.Subscribe(id, -1, func(_ int, ev events.StreamEvent) {
		if ev.Type == events.EventProgress && ev.Progress != nil &&
			ev.Progress.Message == "writing tool server config" {
			select {
			case trigger <- struct{}{}:
			default:
			}
		}
	})
	require.NoError(t, err)
	defer unsub()

	go func() {
		<-trigger
		m.Cancel(id, "stop early")
	}()

	st := waitTerminal(t, m, id)
	assert.Equal(t, StateCancelled, st.State)

	// Whichever side of the race wins, the pre-existing config comes back.
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && bytes.Equal(data, orig)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTimeoutCancelsSession(t *testing.T) {
	proc := newFakeProc(0)
	m, _ := newTestManager(t, fakeSpawn(proc, nil, false))

	timeout := 50 * time.Millisecond
	id, err := m.StartSession(Request{
		Prompt:    "never finishes",
		Overrides: &capability.Overrides{Timeout: &timeout},
	})
	require.NoError(t, err)

	st := waitTerminal(t, m, id)
	assert.Equal(t, StateCancelled, st.State)

	evs, err := m.GetEvents(id, -1)
	require.NoError(t, err)
	last := evs[len(evs)-1]
	require.Equal(t, events.EventSessionEnd, last.Type)
	assert.Contains(t, last.SessionEnd.Summary, "timed out")
}

func TestListActiveAndCleanup(t *testing.T) {
	blocked := newFakeProc(0)
	m, _ := newTestManager(t, fakeSpawn(blocked, nil, false))

	runningID, err := m.StartSession(Request{Prompt: "stay running"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, err := m.GetStatus(runningID)
		return err == nil && st.State == StateRunning
	}, 5*time.Second, 5*time.Millisecond)

	active := m.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, runningID, active[0].ID)

	// A running session is never garbage-collected, whatever the age.
	assert.Equal(t, 0, m.Cleanup(0))

	require.True(t, m.Cancel(runningID, "done with it"))
	waitTerminal(t, m, runningID)
	assert.Empty(t, m.ListActive())

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, m.Cleanup(time.Nanosecond))

	_, err = m.GetStatus(runningID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetEvents(runningID, -1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryRecordsTerminalSessions(t *testing.T) {
	proc := newFakeProc(0)
	m, _ := newTestManager(t, fakeSpawn(proc, nil, true))

	id, err := m.StartSession(Request{Mode: ModeReview, Prompt: "check the diff"})
	require.NoError(t, err)
	waitTerminal(t, m, id)

	hist := m.GetHistory(0)
	require.Len(t, hist, 1)
	assert.Equal(t, id, hist[0].ID)
	assert.Equal(t, ModeReview, hist[0].Mode)
	assert.Equal(t, StateCompleted, hist[0].State)
	assert.NotEmpty(t, hist[0].Summary)
}

func TestHistoryRingBoundsAndTruncates(t *testing.T) {
	ring := newHistoryRing(2)
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	ring.add(HistoryEntry{ID: "1", Prompt: string(long)})
	ring.add(HistoryEntry{ID: "2"})
	ring.add(HistoryEntry{ID: "3"})

	entries := ring.list(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "3", entries[0].ID)
	assert.Equal(t, "2", entries[1].ID)

	ring.add(HistoryEntry{ID: "4", Prompt: string(long)})
	entries = ring.list(1)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Prompt, promptPreviewLen+3)
}
