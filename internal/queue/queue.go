// Package queue schedules builds: a FIFO of (repository, branch) jobs
// deduplicated by key and drained by a single sequential worker, so at
// most one build is in flight system-wide.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Trigger records what caused a job to be enqueued.
type Trigger string

const (
	TriggerWebhook Trigger = "webhook"
	TriggerManual  Trigger = "manual"
)

// Commit is optional metadata about the head commit of a build.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message,omitempty"`
	Author  string `json:"author,omitempty"`
}

// BuildJob is one pending build request.
type BuildJob struct {
	Repo       string    `json:"repo"`
	Branch     string    `json:"branch"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Trigger    Trigger   `json:"trigger"`
	Commit     *Commit   `json:"commit,omitempty"`
}

// Key is the dedupe identity of a job.
func (j BuildJob) Key() string {
	return j.Repo + "#" + j.Branch
}

// Executor runs one dequeued job. Errors are logged, never escalated.
type Executor interface {
	Execute(ctx context.Context, job BuildJob) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job BuildJob) error

func (f ExecutorFunc) Execute(ctx context.Context, job BuildJob) error {
	return f(ctx, job)
}

// Status is a snapshot of the queue: the in-flight job (if any) and the
// still-queued jobs in FIFO order.
type Status struct {
	Current *BuildJob  `json:"current,omitempty"`
	Queued  []BuildJob `json:"queued"`
}

// Queue is the single-worker build scheduler.
type Queue struct {
	exec Executor
	log  *slog.Logger

	mu      sync.Mutex
	jobs    []BuildJob
	current *BuildJob

	wake chan struct{}
	done chan struct{}
}

// New builds a stopped queue; call Start to begin draining.
func New(exec Executor, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		exec: exec,
		log:  log,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start launches the worker. It drains until ctx is cancelled; Wait
// reports when the worker has fully stopped.
func (q *Queue) Start(ctx context.Context) {
	go q.worker(ctx)
}

// Wait blocks until the worker goroutine has exited.
func (q *Queue) Wait() {
	<-q.done
}

// Enqueue adds a job. A job with the same (repo, branch) key that is
// still queued is replaced in place with the newest metadata; the
// in-flight job never counts as queued.
func (q *Queue) Enqueue(job BuildJob) {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	replaced := false
	for i, existing := range q.jobs {
		if existing.Key() == job.Key() {
			q.jobs[i] = job
			replaced = true
			break
		}
	}
	if !replaced {
		q.jobs = append(q.jobs, job)
	}
	q.mu.Unlock()

	q.log.Info("build enqueued",
		"repo", job.Repo, "branch", job.Branch, "trigger", job.Trigger, "replaced", replaced)

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Status returns a consistent snapshot of the in-flight and queued jobs.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Status{Queued: make([]BuildJob, len(q.jobs))}
	copy(st.Queued, q.jobs)
	if q.current != nil {
		cur := *q.current
		st.Current = &cur
	}
	return st
}

// Clear drops every queued job and returns how many were dropped. The
// in-flight job is unaffected.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.jobs)
	q.jobs = nil
	return n
}

// Remove drops the queued job with the given key. The in-flight job
// cannot be removed.
func (q *Queue) Remove(repo, branch string) bool {
	key := BuildJob{Repo: repo, Branch: branch}.Key()

	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.jobs {
		if job.Key() == key {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) worker(ctx context.Context) {
	defer close(q.done)
	for {
		job, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		q.run(ctx, job)

		if ctx.Err() != nil {
			return
		}
	}
}

// run executes one job with error and panic isolation: one bad job never
// halts the queue.
func (q *Queue) run(ctx context.Context, job BuildJob) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("build executor panicked",
				"repo", job.Repo, "branch", job.Branch, "panic", fmt.Sprint(r))
		}
		q.mu.Lock()
		q.current = nil
		q.mu.Unlock()
	}()

	start := time.Now()
	q.log.Info("build started", "repo", job.Repo, "branch", job.Branch)

	if err := q.exec.Execute(ctx, job); err != nil {
		q.log.Error("build failed",
			"repo", job.Repo, "branch", job.Branch, "error", err, "duration", time.Since(start))
		return
	}
	q.log.Info("build finished",
		"repo", job.Repo, "branch", job.Branch, "duration", time.Since(start))
}

func (q *Queue) pop() (BuildJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return BuildJob{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.current = &job
	return job, true
}
