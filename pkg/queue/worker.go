package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/deepread-ai/deepread/pkg/task"
)

// Worker is a single pool worker: it dequeues tasks and runs their
// workflow under the per-task timeout. Whatever the workflow does, the
// worker guarantees the task ends in a terminal state.
type Worker struct {
	id   string
	pool *WorkerPool
	log  *slog.Logger

	// Health tracking
	mu             sync.RWMutex
	status         WorkerStatus
	currentTaskID  string
	tasksProcessed int
	lastActivity   time.Time
}

func newWorker(id string, pool *WorkerPool) *Worker {
	return &Worker{
		id:           id,
		pool:         pool,
		log:          pool.log.With("worker_id", id),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         w.status,
		CurrentTaskID:  w.currentTaskID,
		TasksProcessed: w.tasksProcessed,
		LastActivity:   w.lastActivity,
	}
}

func (w *Worker) setStatus(status WorkerStatus, taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentTaskID = taskID
	w.lastActivity = time.Now()
}

// run is the main worker loop. It exits when the pool stops and the
// queue has drained of claimable work.
func (w *Worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.log.Info("Worker started")
	for {
		t, ok := w.pool.dequeue()
		if !ok {
			w.log.Info("Worker shutting down")
			return
		}
		w.process(ctx, t)

		w.mu.Lock()
		w.tasksProcessed++
		w.mu.Unlock()
	}
}

// process runs one task to a terminal state.
func (w *Worker) process(ctx context.Context, t task.Task) {
	log := w.log.With("task_id", t.ID, "kind", t.Kind)

	w.setStatus(WorkerStatusWorking, t.ID)
	defer w.setStatus(WorkerStatusIdle, "")
	defer w.pool.taskDone(t)

	runner := w.pool.runner(t.Kind)
	if runner == nil {
		w.pool.manager.SetError(t.ID, task.NewError(task.ErrKindUnknown,
			"no workflow registered for task kind %q", t.Kind))
		log.Error("No workflow registered for task kind")
		return
	}

	if err := w.pool.manager.Begin(t.ID); err != nil {
		log.Error("Task could not start", "error", err)
		w.pool.manager.SetError(t.ID, task.NewError(task.ErrKindUnknown,
			"task could not start: %v", err))
		return
	}
	log.Info("Task claimed")

	runCtx, cancel := context.WithTimeout(ctx, w.pool.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := runner.Run(runCtx, t)
	elapsed := time.Since(start)

	if err != nil {
		terr := task.Classify(err)
		// The classified kind is overridden when the task deadline fired:
		// whatever error the workflow bubbled up, the root cause is the
		// timeout and clients should see it as one.
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			terr = task.NewError(task.ErrKindTimeout,
				"task timed out after %v", w.pool.cfg.TaskTimeout)
		}
		w.pool.manager.SetError(t.ID, terr)
		log.Error("Task failed", "error", err, "error_kind", terr.Kind, "elapsed", elapsed)
		return
	}

	// Backstop: a runner that returns nil must have completed the task.
	if snap, serr := w.pool.manager.Snapshot(t.ID); serr == nil && !snap.Status.Terminal() {
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			w.pool.manager.SetError(t.ID, task.NewError(task.ErrKindTimeout,
				"task timed out after %v", w.pool.cfg.TaskTimeout))
		case runCtx.Err() != nil:
			w.pool.manager.SetError(t.ID, task.WrapError(task.ErrKindUnknown, runCtx.Err()))
		default:
			w.pool.manager.SetError(t.ID, task.NewError(task.ErrKindUnknown,
				"workflow finished without reporting a result"))
		}
		log.Error("Workflow returned without a terminal state", "elapsed", elapsed)
		return
	}

	log.Info("Task complete", "elapsed", elapsed)
}
