package task

import "time"

// Event type discriminators carried in every payload's "type" field.
const (
	EventTypeLog         = "log"
	EventTypeProgress    = "progress"
	EventTypePreAnalysis = "pre_analysis"
	EventTypeResult      = "result"
	EventTypeError       = "error"
	EventTypeHeartbeat   = "heartbeat"
)

// Event is a progress-stream payload. Implementations are plain structs
// marshaled once at publish time and fanned out as raw JSON.
type Event interface {
	EventType() string
}

// LogEvent is a human-readable pipeline log line.
type LogEvent struct {
	Type      string `json:"type"`    // always EventTypeLog
	TaskID    string `json:"task_id"` // owning task
	Level     string `json:"level"`   // info, warn, error
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

func (e *LogEvent) EventType() string { return EventTypeLog }

// ProgressEvent reports forward movement through the pipeline. Progress
// never decreases for a task and reaches 100 only on completion.
type ProgressEvent struct {
	Type      string `json:"type"`    // always EventTypeProgress
	TaskID    string `json:"task_id"` // owning task
	Status    Status `json:"status"`  // queued, processing, awaiting_confirmation
	Progress  int    `json:"progress"`
	Stage     string `json:"stage"` // outline, chapters, conclusion, assembly, postprocessing, ...
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

func (e *ProgressEvent) EventType() string { return EventTypeProgress }

// PreAnalysisEvent carries the analysis profile produced for a video
// before chapter generation. When ConfirmationRequired is set the task
// pauses until a confirmation arrives.
type PreAnalysisEvent struct {
	Type                 string   `json:"type"`    // always EventTypePreAnalysis
	TaskID               string   `json:"task_id"` // owning task
	Profile              *Profile `json:"profile"`
	ConfirmationRequired bool     `json:"confirmation_required"`
	Timestamp            string   `json:"timestamp"` // RFC3339Nano
}

func (e *PreAnalysisEvent) EventType() string { return EventTypePreAnalysis }

// ResultEvent is the terminal event of a successful task.
type ResultEvent struct {
	Type      string `json:"type"`    // always EventTypeResult
	TaskID    string `json:"task_id"` // owning task
	Status    Status `json:"status"`  // always completed
	Progress  int    `json:"progress"` // always 100
	Result    Result `json:"result"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

func (e *ResultEvent) EventType() string { return EventTypeResult }

// ErrorEvent is the terminal event of a failed task.
type ErrorEvent struct {
	Type      string `json:"type"`    // always EventTypeError
	TaskID    string `json:"task_id"` // owning task
	Status    Status `json:"status"`  // always failed
	Error     *Error `json:"error"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

func (e *ErrorEvent) EventType() string { return EventTypeError }

// HeartbeatEvent keeps idle streams alive through proxies. Emitted by
// the transport layer, never stored in task history.
type HeartbeatEvent struct {
	Type      string `json:"type"`      // always EventTypeHeartbeat
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

func (e *HeartbeatEvent) EventType() string { return EventTypeHeartbeat }

// NewHeartbeatEvent creates a heartbeat stamped with the current time.
func NewHeartbeatEvent() *HeartbeatEvent {
	return &HeartbeatEvent{Type: EventTypeHeartbeat, Timestamp: eventTimestamp()}
}

// eventTimestamp formats event times the way all payloads expect.
func eventTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
