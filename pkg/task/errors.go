package task

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies task failures for clients. Kinds are stable API:
// the frontend keys remediation hints off them.
type ErrorKind string

const (
	ErrKindInvalidInput         ErrorKind = "invalid_input"
	ErrKindSourceUnavailable    ErrorKind = "source_unavailable"
	ErrKindQueueFull            ErrorKind = "queue_full"
	ErrKindConfig               ErrorKind = "config_error"
	ErrKindLLMTransient         ErrorKind = "llm_transient"
	ErrKindAnalysis             ErrorKind = "analysis_error"
	ErrKindOutlineParse         ErrorKind = "outline_parse_error"
	ErrKindChapterCountExceeded ErrorKind = "chapter_count_exceeded"
	ErrKindTimeout              ErrorKind = "timeout"
	ErrKindUnknown              ErrorKind = "unknown"
)

// ErrTaskNotFound is returned by Manager lookups for unknown task IDs.
var ErrTaskNotFound = errors.New("task not found")

// ErrNotAwaitingConfirmation is returned by Confirm when the task is not
// paused at the confirmation gate.
var ErrNotAwaitingConfirmation = errors.New("task is not awaiting confirmation")

// Error is a classified task failure. Every error surfaced to a client
// carries a short human message and actionable suggestions.
type Error struct {
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	Suggestions []string  `json:"suggestions,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a classified error with the default suggestions for
// its kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:        kind,
		Message:     fmt.Sprintf(format, args...),
		Suggestions: defaultSuggestions(kind),
	}
}

// WrapError classifies an underlying error, preserving it for errors.Is /
// errors.As chains.
func WrapError(kind ErrorKind, err error) *Error {
	return &Error{
		Kind:        kind,
		Message:     err.Error(),
		Suggestions: defaultSuggestions(kind),
		cause:       err,
	}
}

// WithSuggestions replaces the default suggestions.
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = suggestions
	return e
}

// AsError extracts a classified error from an error chain.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Classify converts an arbitrary workflow error into a classified one.
// Already-classified errors pass through; transient LLM failures that
// escaped their retry budget surface as analysis errors; deadline
// expiry becomes a timeout.
func Classify(err error) *Error {
	if te, ok := AsError(err); ok {
		if te.Kind == ErrKindLLMTransient {
			out := WrapError(ErrKindAnalysis, err)
			out.Message = te.Message
			return out
		}
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(ErrKindTimeout, err)
	}
	return WrapError(ErrKindUnknown, err)
}

// defaultSuggestions maps each kind to remediation hints shown verbatim
// to users. Keep these short and imperative.
func defaultSuggestions(kind ErrorKind) []string {
	switch kind {
	case ErrKindInvalidInput:
		return []string{
			"Check that the URL is a valid video link",
			"Supported document types are .txt, .md, .pdf and .docx",
		}
	case ErrKindSourceUnavailable:
		return []string{
			"Verify the video exists and has subtitles or an auto-generated transcript",
			"Try again later; the source may be temporarily unreachable",
		}
	case ErrKindQueueFull:
		return []string{
			"Wait for running tasks to finish and resubmit",
			"Raise queue.capacity if this happens often",
		}
	case ErrKindConfig:
		return []string{
			"Set the LLM API key (GEMINI_API_KEY by default)",
			"Check the llm section of deepread.yaml",
		}
	case ErrKindLLMTransient:
		return []string{
			"Resubmit the task",
			"Check the provider status page if this persists",
		}
	case ErrKindAnalysis:
		return []string{
			"Resubmit the task",
			"Shorter content or a different model may help",
		}
	case ErrKindOutlineParse:
		return []string{
			"Resubmit the task; outline generation is non-deterministic",
		}
	case ErrKindChapterCountExceeded:
		return []string{
			"Resubmit the task",
			"Use deep mode for this source; ultra mode produced too many chapters",
		}
	case ErrKindTimeout:
		return []string{
			"Resubmit the task",
			"Raise queue.task_timeout for very long sources",
		}
	default:
		return []string{"Check the server logs for details"}
	}
}
