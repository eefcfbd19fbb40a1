package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RegistryWatcher rescans the hash registry when document files change
// on disk outside this process (manual edits, syncs). Events are
// debounced so a burst of writes triggers one rescan.
type RegistryWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	registry *HashRegistry
	dir      string
	debounce time.Duration
	dirtyAt  time.Time
	dirty    bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	log      *slog.Logger
}

func NewRegistryWatcher(registry *HashRegistry, dir string, log *slog.Logger) (*RegistryWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &RegistryWatcher{
		watcher:  watcher,
		registry: registry,
		dir:      dir,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      log.With("component", "registry_watcher"),
	}, nil
}

// Start begins watching the documents directory. Non-blocking.
func (w *RegistryWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.log.Info("Watching documents directory", "dir", w.dir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *RegistryWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.log.Error("Error closing watcher", "error", err)
	}
}

func (w *RegistryWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("Watcher error", "error", err)
		case <-ticker.C:
			w.rescanIfSettled()
		}
	}
}

func (w *RegistryWatcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".md") {
		return
	}
	// renameio writes land as a Create (rename into place); manual edits
	// as Write; deletions and renames both invalidate the index.
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	w.dirty = true
	w.dirtyAt = time.Now()
	w.mu.Unlock()
}

func (w *RegistryWatcher) rescanIfSettled() {
	w.mu.Lock()
	ready := w.dirty && time.Since(w.dirtyAt) >= w.debounce
	if ready {
		w.dirty = false
	}
	w.mu.Unlock()

	if !ready {
		return
	}
	if err := w.registry.Scan(); err != nil {
		w.log.Error("Registry rescan failed", "error", err)
	}
}
