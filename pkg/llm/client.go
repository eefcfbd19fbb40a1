// Package llm provides the text-generation abstraction used by all
// workflows, a Gemini provider speaking the REST API directly, a shared
// per-provider rate limiter, and a retry decorator for transient
// failures.
package llm

import "context"

// ThinkingLevel selects how much reasoning budget a call requests.
type ThinkingLevel string

const (
	// ThinkingOff requests no explicit reasoning pass.
	ThinkingOff ThinkingLevel = ""
	// ThinkingLow requests a small reasoning budget (chapter bodies).
	ThinkingLow ThinkingLevel = "low"
	// ThinkingMedium requests a moderate reasoning budget (outlines).
	ThinkingMedium ThinkingLevel = "medium"
	// ThinkingHigh requests a large reasoning budget. Calls with this
	// level get an extended timeout.
	ThinkingHigh ThinkingLevel = "high"
)

// AttachmentKind selects how attachment content reaches the provider.
type AttachmentKind string

const (
	// AttachmentFile is a local file uploaded to the provider before the
	// generation call.
	AttachmentFile AttachmentKind = "file"
	// AttachmentURI references content the provider can already reach.
	AttachmentURI AttachmentKind = "uri"
)

// Attachment is non-text content sent alongside a prompt, e.g. a PDF the
// model should read directly.
type Attachment struct {
	Kind AttachmentKind
	// Path is the local file for AttachmentFile.
	Path string
	// URI is the provider-reachable location for AttachmentURI.
	URI string
	// MIME is the content type, e.g. "application/pdf".
	MIME string
}

// Request is a single generation call.
type Request struct {
	// System is the system instruction; empty means provider default.
	System string
	// Prompt is the user content.
	Prompt string
	// JSONMode asks the provider to return a JSON document.
	JSONMode bool
	// Thinking selects the reasoning budget.
	Thinking ThinkingLevel
	// Attachment optionally accompanies the prompt.
	Attachment *Attachment
}

// Client generates text. Implementations must be safe for concurrent use;
// one client instance is shared by all workers.
type Client interface {
	Generate(ctx context.Context, req *Request) (string, error)
}
