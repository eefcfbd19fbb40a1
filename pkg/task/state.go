package task

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusQueued               Status = "queued"
	StatusProcessing           Status = "processing"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransitions encodes the status graph. A task may bounce between
// processing and awaiting_confirmation several times before finishing.
var validTransitions = map[Status][]Status{
	StatusQueued:               {StatusProcessing, StatusFailed},
	StatusProcessing:           {StatusAwaitingConfirmation, StatusCompleted, StatusFailed},
	StatusAwaitingConfirmation: {StatusProcessing, StatusFailed},
	StatusCompleted:            {},
	StatusFailed:               {},
}

func canTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Result identifies the report a completed task produced.
type Result struct {
	DocHash string `json:"doc_hash"`
	File    string `json:"file"`
	Title   string `json:"title"`
	Version int    `json:"version"`
}

// State is a point-in-time snapshot of a task's externally visible state.
// Snapshots are values; mutating one never affects the Manager.
type State struct {
	TaskID   string `json:"task_id"`
	Kind     Kind   `json:"kind"`
	Mode     Mode   `json:"mode"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"` // 0..100, reaches 100 only on completion
	Stage    string `json:"stage,omitempty"`
	Message  string `json:"message,omitempty"`

	SourceID string `json:"source_id,omitempty"`
	DocHash  string `json:"doc_hash,omitempty"`

	// PreAnalysis holds the analysis profile while the task is paused at
	// the confirmation gate (and afterwards, for inspection).
	PreAnalysis *Profile `json:"pre_analysis,omitempty"`

	// Result is set once the task completes.
	Result *Result `json:"result,omitempty"`

	// Error is set once the task fails.
	Error *Error `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
