// Package queue implements the bounded priority worker pool that runs
// interpretation workflows.
//
// Submissions are ordered by priority (higher first) and FIFO within a
// priority. Exactly Workers tasks are processed concurrently; everything
// else waits in the queue, and Submit fails fast once the queue is at
// capacity. The pool owns the dedup index: a task is discoverable via
// FindActive from the moment Submit succeeds until it reaches a terminal
// state.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/deepread-ai/deepread/pkg/task"
)

// Sentinel errors for queue operations.
var (
	// ErrQueueFull indicates the submission queue is at capacity. Callers
	// surface it synchronously as a queue_full error.
	ErrQueueFull = errors.New("queue is full")

	// ErrPoolStopped indicates the pool no longer accepts submissions.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Runner executes one kind of task. The runner owns the happy path
// end-to-end, including the terminal SendResult on success; it returns an
// error for any failure and never marks the task failed itself. The
// worker translates the error into the terminal state and backstops
// runners that return nil without completing the task.
type Runner interface {
	Run(ctx context.Context, t task.Task) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, t task.Task) error

func (f RunnerFunc) Run(ctx context.Context, t task.Task) error {
	return f(ctx, t)
}

// Stats is a point-in-time summary of pool load.
type Stats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Capacity   int `json:"capacity"`
	Workers    int `json:"workers"`
}

// TaskInfo is the pool's scheduling view of one active task.
type TaskInfo struct {
	TaskID   string        `json:"task_id"`
	Kind     task.Kind     `json:"kind"`
	SourceID string        `json:"source_id"`
	Priority task.Priority `json:"priority"`
	Status   task.Status   `json:"status"`
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	TotalWorkers  int            `json:"total_workers"`
	ActiveWorkers int            `json:"active_workers"`
	QueueDepth    int            `json:"queue_depth"`
	Processing    int            `json:"processing"`
	Capacity      int            `json:"capacity"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID             string       `json:"id"`
	Status         WorkerStatus `json:"status"`
	CurrentTaskID  string       `json:"current_task_id,omitempty"`
	TasksProcessed int          `json:"tasks_processed"`
	LastActivity   time.Time    `json:"last_activity"`
}
