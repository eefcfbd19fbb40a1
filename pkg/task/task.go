// Package task tracks interpretation tasks: their identity, lifecycle
// state, progress event streams, and the confirmation handshake used by
// paused video tasks.
//
// The Manager is the single in-memory source of truth for task state.
// Everything else (queue, workflows, HTTP API) reads and mutates task
// state through it, which keeps status transitions and progress
// monotonicity enforced in one place.
package task

import (
	"time"
)

// Kind identifies the workflow a task runs.
type Kind string

const (
	// KindVideo interprets an online video via its subtitles.
	KindVideo Kind = "video"
	// KindDocument interprets an uploaded document.
	KindDocument Kind = "document"
	// KindUltraReprocess regenerates an existing report in ultra mode.
	KindUltraReprocess Kind = "reprocess"
	// KindVisual produces a visual interpretation of a finished report.
	KindVisual Kind = "visual_interpretation"
)

// Mode selects the interpretation depth.
type Mode string

const (
	// ModeDeep produces a standard deep interpretation.
	ModeDeep Mode = "deep"
	// ModeUltra produces a longer, more granular interpretation.
	ModeUltra Mode = "ultra"
)

// ParseMode maps an API-supplied mode name to its Mode. Unknown or
// empty names fall back to deep.
func ParseMode(name string) Mode {
	if name == string(ModeUltra) {
		return ModeUltra
	}
	return ModeDeep
}

// Priority orders tasks in the queue. Higher runs first; equal priorities
// run in submission order.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
	PriorityUrgent Priority = 15
)

// ParsePriority maps an API-supplied priority name to its level.
// Unknown or empty names fall back to normal.
func ParsePriority(name string) Priority {
	switch name {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "urgent":
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// Task describes one unit of interpretation work. It is immutable once
// submitted; all mutable state lives in the Manager.
type Task struct {
	ID       string
	Kind     Kind
	Mode     Mode
	Priority Priority

	// SourceID is the canonical identity of the content: the normalized
	// video URL, or the content identifier of an uploaded document. The
	// document hash is derived from it.
	SourceID string

	// DocHash is the first 8 hex digits of SHA-256(SourceID).
	DocHash string

	// VideoURL is set for video tasks (already normalized).
	VideoURL string

	// DocumentPath is the stored upload for document tasks.
	DocumentPath string

	// BaseDocument names the existing report file that an ultra reprocess
	// or visual interpretation task starts from.
	BaseDocument string

	SubmittedAt time.Time
}
