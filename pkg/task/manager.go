package task

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscriberBuffer is the channel capacity given to each subscriber on
// top of the replayed history. A subscriber that falls this far behind
// the live stream is evicted rather than ever blocking a workflow.
const subscriberBuffer = 256

// Subscription is a live handle on one task's event stream. The channel
// delivers marshaled event payloads: first the full history, then live
// events in publish order. It is closed on eviction, on Drop, and on
// Unsubscribe.
type Subscription struct {
	ID     string
	TaskID string
	C      <-chan []byte
}

// tracked is the manager-internal record for one task.
type tracked struct {
	task    Task
	state   State
	profile *Profile

	// confirmCh is non-nil while the task waits at the confirmation gate.
	confirmCh chan *Profile

	history [][]byte
	subs    map[string]chan []byte
}

// Manager is the authoritative in-memory table of task states. All
// lifecycle transitions, progress updates, and event fan-out go through
// it under a single lock, which is what enforces the status graph and
// progress monotonicity.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*tracked

	historyLimit int
	log          *slog.Logger
}

// NewManager creates a Manager that retains at most historyLimit events
// per task for late-subscriber replay.
func NewManager(historyLimit int) *Manager {
	if historyLimit < 1 {
		historyLimit = 1
	}
	return &Manager{
		tasks:        make(map[string]*tracked),
		historyLimit: historyLimit,
		log:          slog.With("component", "task.manager"),
	}
}

// Create inserts a new task with status queued and progress 0. It must
// be called before the task is handed to the worker pool.
func (m *Manager) Create(t Task) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[t.ID]; exists {
		return State{}, NewError(ErrKindUnknown, "task %s already exists", t.ID)
	}

	now := time.Now().UTC()
	tr := &tracked{
		task: t,
		state: State{
			TaskID:    t.ID,
			Kind:      t.Kind,
			Mode:      t.Mode,
			Status:    StatusQueued,
			Progress:  0,
			SourceID:  t.SourceID,
			DocHash:   t.DocHash,
			CreatedAt: now,
			UpdatedAt: now,
		},
		subs: make(map[string]chan []byte),
	}
	m.tasks[t.ID] = tr

	m.publishLocked(tr, &ProgressEvent{
		Type:      EventTypeProgress,
		TaskID:    t.ID,
		Status:    StatusQueued,
		Progress:  0,
		Stage:     "queued",
		Message:   "task accepted",
		Timestamp: eventTimestamp(),
	})
	return tr.state, nil
}

// Drop removes a queued task entirely. It is the rollback path for
// submissions that fail after Create (typically a full queue); tasks
// that have started processing cannot be dropped.
func (m *Manager) Drop(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if tr.state.Status != StatusQueued {
		return NewError(ErrKindUnknown, "task %s is %s, only queued tasks can be dropped", taskID, tr.state.Status)
	}
	for id, ch := range tr.subs {
		close(ch)
		delete(tr.subs, id)
	}
	delete(m.tasks, taskID)
	return nil
}

// Begin transitions a task from queued to processing. Called by the
// worker that dequeued it.
func (m *Manager) Begin(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if !m.transitionLocked(tr, StatusProcessing) {
		return NewError(ErrKindUnknown, "task %s cannot start from %s", taskID, tr.state.Status)
	}
	m.publishLocked(tr, &ProgressEvent{
		Type:      EventTypeProgress,
		TaskID:    taskID,
		Status:    StatusProcessing,
		Progress:  tr.state.Progress,
		Stage:     "starting",
		Message:   "processing started",
		Timestamp: eventTimestamp(),
	})
	return nil
}

// UpdateProgress advances a task's progress. Progress is max-monotone:
// a value below the current one keeps the current value (the stage and
// message still update and publish). No-op after a terminal status.
func (m *Manager) UpdateProgress(taskID string, progress int, stage, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		m.log.Warn("Progress update for unknown task", "task_id", taskID)
		return
	}
	if tr.state.Status.Terminal() {
		m.log.Warn("Progress update after terminal status ignored",
			"task_id", taskID, "status", tr.state.Status)
		return
	}

	// 100 is reserved for SendResult.
	if progress > 99 {
		progress = 99
	}
	if progress > tr.state.Progress {
		tr.state.Progress = progress
	}
	tr.state.Stage = stage
	tr.state.Message = message
	tr.state.UpdatedAt = time.Now().UTC()

	m.publishLocked(tr, &ProgressEvent{
		Type:      EventTypeProgress,
		TaskID:    taskID,
		Status:    tr.state.Status,
		Progress:  tr.state.Progress,
		Stage:     stage,
		Message:   message,
		Timestamp: eventTimestamp(),
	})
}

// SendLog appends a log line to the task's history and publishes it.
func (m *Manager) SendLog(taskID, level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		return
	}
	m.publishLocked(tr, &LogEvent{
		Type:      EventTypeLog,
		TaskID:    taskID,
		Level:     level,
		Message:   message,
		Timestamp: eventTimestamp(),
	})
}

// SendResult marks the task completed, records the produced report, sets
// progress to 100, and publishes the terminal result event.
func (m *Manager) SendResult(taskID string, result Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		m.log.Warn("Result for unknown task", "task_id", taskID)
		return
	}
	if !m.transitionLocked(tr, StatusCompleted) {
		return
	}
	tr.state.Progress = 100
	tr.state.Stage = "done"
	tr.state.Message = "interpretation complete"
	tr.state.Result = &result

	m.publishLocked(tr, &ResultEvent{
		Type:      EventTypeResult,
		TaskID:    taskID,
		Status:    StatusCompleted,
		Progress:  100,
		Result:    result,
		Timestamp: eventTimestamp(),
	})
	m.closeSubscribersLocked(tr)
}

// SetError marks the task failed with a classified error and publishes
// the terminal error event.
func (m *Manager) SetError(taskID string, terr *Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		m.log.Warn("Error for unknown task", "task_id", taskID, "error", terr)
		return
	}
	if !m.transitionLocked(tr, StatusFailed) {
		return
	}
	tr.state.Message = terr.Message
	tr.state.Error = terr

	// A pending confirmation can never arrive now; unblock any waiter.
	if tr.confirmCh != nil {
		close(tr.confirmCh)
		tr.confirmCh = nil
	}

	m.publishLocked(tr, &ErrorEvent{
		Type:      EventTypeError,
		TaskID:    taskID,
		Status:    StatusFailed,
		Error:     terr,
		Timestamp: eventTimestamp(),
	})
	m.closeSubscribersLocked(tr)
}

// PreAnalysisReady pauses the task at the confirmation gate: stores the
// profile, transitions to awaiting_confirmation, and publishes the
// pre-analysis event. The workflow then blocks on ConfirmChan.
func (m *Manager) PreAnalysisReady(taskID string, profile *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if !m.transitionLocked(tr, StatusAwaitingConfirmation) {
		return NewError(ErrKindUnknown, "task %s cannot pause from %s", taskID, tr.state.Status)
	}
	tr.profile = profile
	tr.state.PreAnalysis = profile
	tr.confirmCh = make(chan *Profile, 1)

	m.publishLocked(tr, &PreAnalysisEvent{
		Type:                 EventTypePreAnalysis,
		TaskID:               taskID,
		Profile:              profile,
		ConfirmationRequired: true,
		Timestamp:            eventTimestamp(),
	})
	return nil
}

// ConfirmChan returns the channel the paused workflow waits on. It
// yields the confirmed profile, or closes without a value if the task
// fails first.
func (m *Manager) ConfirmChan(taskID string) (<-chan *Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if tr.confirmCh == nil {
		return nil, ErrNotAwaitingConfirmation
	}
	return tr.confirmCh, nil
}

// Confirm resumes a task paused at the confirmation gate. Overrides are
// shallow-merged over the stored profile; the merged profile is handed
// to the waiting workflow and the task returns to processing.
func (m *Manager) Confirm(taskID string, overrides map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if tr.state.Status != StatusAwaitingConfirmation || tr.confirmCh == nil {
		return ErrNotAwaitingConfirmation
	}

	if tr.profile == nil {
		tr.profile = &Profile{}
	}
	tr.profile.Merge(overrides)
	tr.state.PreAnalysis = tr.profile

	if !m.transitionLocked(tr, StatusProcessing) {
		return NewError(ErrKindUnknown, "task %s cannot resume from %s", taskID, tr.state.Status)
	}

	confirmed := *tr.profile
	tr.confirmCh <- &confirmed
	close(tr.confirmCh)
	tr.confirmCh = nil

	m.publishLocked(tr, &ProgressEvent{
		Type:      EventTypeProgress,
		TaskID:    taskID,
		Status:    StatusProcessing,
		Progress:  tr.state.Progress,
		Stage:     "confirmed",
		Message:   "analysis profile confirmed",
		Timestamp: eventTimestamp(),
	})
	return nil
}

// Subscribe attaches a new subscriber to a task's event stream. The full
// retained history is loaded into the channel before registration, so
// the subscriber sees a prefix-consistent stream: history first, then
// live events, with nothing lost in between.
func (m *Manager) Subscribe(taskID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	capacity := len(tr.history) + subscriberBuffer
	ch := make(chan []byte, capacity)
	for _, ev := range tr.history {
		ch <- ev
	}

	sub := &Subscription{ID: uuid.NewString(), TaskID: taskID, C: ch}

	// Terminal tasks get no further events; hand over the history and
	// close immediately instead of parking a dead subscriber.
	if tr.state.Status.Terminal() {
		close(ch)
		return sub, nil
	}

	tr.subs[sub.ID] = ch
	return sub, nil
}

// Unsubscribe detaches a subscriber and closes its channel.
func (m *Manager) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tasks[sub.TaskID]
	if !ok {
		return
	}
	if ch, ok := tr.subs[sub.ID]; ok {
		delete(tr.subs, sub.ID)
		close(ch)
	}
}

// Snapshot returns a lock-consistent copy of one task's state.
func (m *Manager) Snapshot(taskID string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		return State{}, ErrTaskNotFound
	}
	return tr.state, nil
}

// List returns snapshots of all tracked tasks, newest first.
func (m *Manager) List() []State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]State, 0, len(m.tasks))
	for _, tr := range m.tasks {
		out = append(out, tr.state)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Task returns the immutable submission record for a task.
func (m *Manager) Task(taskID string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tr, ok := m.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return tr.task, nil
}

// PruneTerminal removes terminal tasks whose last update is older than
// the retention window. Returns the number removed.
func (m *Manager) PruneTerminal(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, tr := range m.tasks {
		if tr.state.Status.Terminal() && tr.state.UpdatedAt.Before(cutoff) {
			for sid, ch := range tr.subs {
				close(ch)
				delete(tr.subs, sid)
			}
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

// transitionLocked applies a status transition if the graph allows it.
// Disallowed transitions are logged and ignored so that late writes
// (e.g. a timeout racing a result) never corrupt terminal state.
func (m *Manager) transitionLocked(tr *tracked, to Status) bool {
	if !canTransition(tr.state.Status, to) {
		m.log.Warn("Ignoring invalid status transition",
			"task_id", tr.state.TaskID, "from", tr.state.Status, "to", to)
		return false
	}
	tr.state.Status = to
	tr.state.UpdatedAt = time.Now().UTC()
	return true
}

// publishLocked marshals an event, appends it to the bounded history,
// and fans it out. A subscriber with a full buffer is evicted on the
// spot; publishing never blocks. Callers hold m.mu.
func (m *Manager) publishLocked(tr *tracked, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		m.log.Error("Failed to marshal task event",
			"task_id", tr.state.TaskID, "event_type", ev.EventType(), "error", err)
		return
	}

	tr.history = append(tr.history, data)
	if len(tr.history) > m.historyLimit {
		tr.history = tr.history[len(tr.history)-m.historyLimit:]
	}

	for id, ch := range tr.subs {
		select {
		case ch <- data:
		default:
			m.log.Warn("Evicting slow task subscriber",
				"task_id", tr.state.TaskID, "subscriber_id", id)
			delete(tr.subs, id)
			close(ch)
		}
	}
}

// closeSubscribersLocked closes all subscriber channels after a terminal
// event has been fanned out. Callers hold m.mu.
func (m *Manager) closeSubscribersLocked(tr *tracked) {
	for id, ch := range tr.subs {
		delete(tr.subs, id)
		close(ch)
	}
}
