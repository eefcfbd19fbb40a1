package task

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically removes terminal task states past their retention
// window so the in-memory table does not grow without bound. Removal only
// affects status queries; finished reports stay on disk.
type Janitor struct {
	manager   *Manager
	retention time.Duration
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor creates a janitor for the given manager.
func NewJanitor(manager *Manager, retention, interval time.Duration) *Janitor {
	return &Janitor{
		manager:   manager,
		retention: retention,
		interval:  interval,
	}
}

// Start launches the background cleanup loop.
func (j *Janitor) Start(ctx context.Context) {
	if j.cancel != nil {
		return
	}
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})

	go j.run(ctx)

	slog.Info("Task janitor started",
		"retention", j.retention, "interval", j.interval)
}

// Stop signals the loop to exit and waits for it to finish.
func (j *Janitor) Stop() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	<-j.done
	slog.Info("Task janitor stopped")
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := j.manager.PruneTerminal(j.retention); removed > 0 {
				slog.Info("Pruned terminal task states", "removed", removed)
			}
		}
	}
}
