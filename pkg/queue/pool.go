package queue

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/deepread-ai/deepread/pkg/config"
	"github.com/deepread-ai/deepread/pkg/observe"
	"github.com/deepread-ai/deepread/pkg/task"
)

// WorkerPool schedules tasks onto a fixed set of workers. One mutex
// guards the queue, the processing set, and the tallies, so the dedup
// check (FindActive) and the capacity check (Submit) are each a single
// authoritative operation.
type WorkerPool struct {
	cfg     *config.QueueConfig
	manager *task.Manager
	metrics *observe.Metrics
	log     *slog.Logger

	mu         sync.Mutex
	notEmpty   *sync.Cond
	queue      taskHeap
	seq        uint64
	processing map[string]task.Task
	runners    map[task.Kind]Runner
	completed  int
	failed     int
	started    bool
	stopped    bool

	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorkerPool creates a pool. Runners are registered per task kind
// before Start; metrics may be nil.
func NewWorkerPool(cfg *config.QueueConfig, manager *task.Manager, metrics *observe.Metrics, log *slog.Logger) *WorkerPool {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	p := &WorkerPool{
		cfg:        cfg,
		manager:    manager,
		metrics:    metrics,
		log:        log.With("component", "worker_pool"),
		processing: make(map[string]task.Task),
		runners:    make(map[task.Kind]Runner),
		workers:    make([]*Worker, 0, cfg.Workers),
		stopCh:     make(chan struct{}),
	}
	p.notEmpty = sync.NewCond(&p.mu)
	return p
}

// RegisterRunner binds a task kind to the workflow that executes it.
// Must be called before Start.
func (p *WorkerPool) RegisterRunner(kind task.Kind, r Runner) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runners[kind] = r
}

// Start spawns the worker goroutines. It is safe to call multiple
// times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		p.log.Warn("Worker pool already started, ignoring duplicate Start call")
		return nil
	}
	p.started = true
	p.mu.Unlock()

	p.log.Info("Starting worker pool",
		"workers", p.cfg.Workers, "capacity", p.cfg.Capacity, "task_timeout", p.cfg.TaskTimeout)

	for i := 0; i < p.cfg.Workers; i++ {
		w := newWorker(fmt.Sprintf("worker-%d", i), p)
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go w.run(ctx)
	}

	// Wake blocked dequeuers if the root context dies before Stop runs.
	go func() {
		select {
		case <-ctx.Done():
			p.interrupt()
		case <-p.stopCh:
		}
	}()

	return nil
}

// Stop shuts the pool down: no new submissions, idle workers exit, busy
// workers get GracefulShutdownTimeout to finish their current task.
func (p *WorkerPool) Stop() {
	p.log.Info("Stopping worker pool")
	p.interrupt()
	p.stopOnce.Do(func() { close(p.stopCh) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.log.Info("Worker pool stopped gracefully")
	case <-time.After(p.cfg.GracefulShutdownTimeout):
		p.log.Warn("Graceful shutdown timed out, abandoning active tasks",
			"timeout", p.cfg.GracefulShutdownTimeout, "active", len(p.activeTaskIDs()))
	}
}

// interrupt marks the pool stopped and wakes every blocked dequeuer.
func (p *WorkerPool) interrupt() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.notEmpty.Broadcast()
}

// Submit enqueues a task. It fails fast with ErrQueueFull at capacity;
// on success the task is immediately discoverable via FindActive.
func (p *WorkerPool) Submit(t task.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if len(p.queue) >= p.cfg.Capacity {
		return ErrQueueFull
	}

	p.seq++
	heap.Push(&p.queue, &item{task: t, seq: p.seq})
	p.notEmpty.Signal()

	p.metrics.QueueDepth.Add(context.Background(), 1)
	p.log.Info("Task queued",
		"task_id", t.ID, "kind", t.Kind, "priority", t.Priority, "depth", len(p.queue))
	return nil
}

// FindActive returns the ID of a queued or processing task with the
// same source identifier. An empty mode matches any mode; a non-empty
// mode narrows the search. Queue and processing set are examined under
// one lock, so the answer is a single authoritative snapshot.
func (p *WorkerPool) FindActive(sourceID string, mode task.Mode) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range p.processing {
		if t.SourceID == sourceID && (mode == "" || t.Mode == mode) {
			return t.ID, true
		}
	}
	for _, it := range p.queue {
		if it.task.SourceID == sourceID && (mode == "" || it.task.Mode == mode) {
			return it.task.ID, true
		}
	}
	return "", false
}

// dequeue blocks until a task is available or the pool stops. The
// returned task is already in the processing set.
func (p *WorkerPool) dequeue() (task.Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.stopped {
		p.notEmpty.Wait()
	}
	if len(p.queue) == 0 {
		return task.Task{}, false
	}

	it := heap.Pop(&p.queue).(*item)
	p.processing[it.task.ID] = it.task

	p.metrics.QueueDepth.Add(context.Background(), -1)
	p.metrics.TasksProcessing.Add(context.Background(), 1)
	return it.task, true
}

// taskDone removes a finished task from the processing set and tallies
// its terminal status.
func (p *WorkerPool) taskDone(t task.Task) {
	status := task.StatusFailed
	errorKind := ""
	if snap, err := p.manager.Snapshot(t.ID); err == nil {
		status = snap.Status
		if snap.Error != nil {
			errorKind = string(snap.Error.Kind)
		}
	}

	p.mu.Lock()
	delete(p.processing, t.ID)
	if status == task.StatusCompleted {
		p.completed++
	} else {
		p.failed++
	}
	p.mu.Unlock()

	p.metrics.TasksProcessing.Add(context.Background(), -1)
	p.metrics.RecordTaskFinished(context.Background(), string(t.Kind), string(status), errorKind)
}

func (p *WorkerPool) runner(kind task.Kind) Runner {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runners[kind]
}

// Stats returns a consistent snapshot of pool load.
func (p *WorkerPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Queued:     len(p.queue),
		Processing: len(p.processing),
		Completed:  p.completed,
		Failed:     p.failed,
		Capacity:   p.cfg.Capacity,
		Workers:    p.cfg.Workers,
	}
}

// List returns the pool's scheduling view: processing tasks first, then
// queued tasks in dispatch order.
func (p *WorkerPool) List() []TaskInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]TaskInfo, 0, len(p.processing)+len(p.queue))
	for _, t := range p.processing {
		out = append(out, TaskInfo{
			TaskID: t.ID, Kind: t.Kind, SourceID: t.SourceID,
			Priority: t.Priority, Status: task.StatusProcessing,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })

	queued := make([]*item, len(p.queue))
	copy(queued, p.queue)
	sort.Slice(queued, func(i, j int) bool {
		if queued[i].task.Priority != queued[j].task.Priority {
			return queued[i].task.Priority > queued[j].task.Priority
		}
		return queued[i].seq < queued[j].seq
	})
	for _, it := range queued {
		out = append(out, TaskInfo{
			TaskID: it.task.ID, Kind: it.task.Kind, SourceID: it.task.SourceID,
			Priority: it.task.Priority, Status: task.StatusQueued,
		})
	}
	return out
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	stats := p.Stats()

	p.mu.Lock()
	started, stopped := p.started, p.stopped
	p.mu.Unlock()

	h := &PoolHealth{
		IsHealthy:    started && !stopped,
		TotalWorkers: len(p.workers),
		QueueDepth:   stats.Queued,
		Processing:   stats.Processing,
		Capacity:     stats.Capacity,
		WorkerStats:  make([]WorkerHealth, 0, len(p.workers)),
	}
	for _, w := range p.workers {
		wh := w.Health()
		if wh.Status == WorkerStatusWorking {
			h.ActiveWorkers++
		}
		h.WorkerStats = append(h.WorkerStats, wh)
	}
	return h
}

func (p *WorkerPool) activeTaskIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.processing))
	for id := range p.processing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
