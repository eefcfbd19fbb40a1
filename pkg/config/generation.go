package config

import "time"

// Chapter generation strategies.
const (
	GenerationModeConcurrent = "concurrent"
	GenerationModeSequential = "sequential"
)

// GenerationConfig controls how report chapters are produced.
type GenerationConfig struct {
	// Mode selects the chapter stage strategy: "concurrent" writes all
	// chapters in parallel from the shared outline, "sequential" writes
	// them in order and feeds each chapter the previous one as context.
	Mode string `yaml:"mode"`

	// ConcurrentDelay staggers the launch of parallel chapter calls so
	// they arrive at the provider rate limiter spread out instead of as
	// a burst.
	ConcurrentDelay time.Duration `yaml:"concurrent_delay"`

	// RequireConfirmation pauses video tasks after pre-analysis until the
	// submitter confirms or adjusts the analysis profile.
	RequireConfirmation bool `yaml:"require_confirmation"`

	// LogHistory bounds the per-task event history kept for subscribers
	// that attach after a task has started.
	LogHistory int `yaml:"log_history"`
}

// DefaultGenerationConfig returns the built-in generation defaults.
func DefaultGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		Mode:                GenerationModeConcurrent,
		ConcurrentDelay:     3 * time.Second,
		RequireConfirmation: false,
		LogHistory:          512,
	}
}
