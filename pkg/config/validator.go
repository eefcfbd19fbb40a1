package config

import (
	"fmt"
)

// ConfigValidator validates a merged configuration before the application
// starts. It fails fast: the first problem found is returned immediately.
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll runs all validation checks in dependency order.
//
// A missing LLM API key is deliberately not a startup error: tasks that
// need it fail individually with a configuration error, which keeps the
// server usable for reads and for stubbed providers in tests.
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue config validation failed: %w", err)
	}
	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("llm config validation failed: %w", err)
	}
	if err := v.validateGeneration(); err != nil {
		return fmt.Errorf("generation config validation failed: %w", err)
	}
	if err := v.validateSource(); err != nil {
		return fmt.Errorf("source config validation failed: %w", err)
	}
	if err := v.validateStorage(); err != nil {
		return fmt.Errorf("storage config validation failed: %w", err)
	}
	if err := v.validateLimits(); err != nil {
		return fmt.Errorf("limits config validation failed: %w", err)
	}
	if err := v.validatePostproc(); err != nil {
		return fmt.Errorf("postproc config validation failed: %w", err)
	}
	return nil
}

func (v *ConfigValidator) validateServer() error {
	if v.cfg.Server.Addr == "" {
		return NewValidationError("server", "addr", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateQueue() error {
	q := v.cfg.Queue
	if q.Workers < 1 {
		return NewValidationError("queue", "workers", fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidValue, q.Workers))
	}
	if q.Capacity < 1 {
		return NewValidationError("queue", "capacity", fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidValue, q.Capacity))
	}
	if q.TaskTimeout <= 0 {
		return NewValidationError("queue", "task_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if q.GracefulShutdownTimeout <= 0 {
		return NewValidationError("queue", "graceful_shutdown_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateLLM() error {
	l := v.cfg.LLM
	if l.Provider == "" {
		return NewValidationError("llm", "provider", ErrMissingRequiredField)
	}
	if l.Model == "" {
		return NewValidationError("llm", "model", ErrMissingRequiredField)
	}
	if l.Timeout <= 0 {
		return NewValidationError("llm", "timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if l.MaxRetries < 0 {
		return NewValidationError("llm", "max_retries", fmt.Errorf("%w: must not be negative, got %d", ErrInvalidValue, l.MaxRetries))
	}
	if l.RateLimitInterval < 0 {
		return NewValidationError("llm", "rate_limit_interval", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if l.RetryBackoffBase <= 0 {
		return NewValidationError("llm", "retry_backoff_base", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateGeneration() error {
	g := v.cfg.Generation
	switch g.Mode {
	case GenerationModeConcurrent, GenerationModeSequential:
	default:
		return NewValidationError("generation", "mode",
			fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidValue, g.Mode, GenerationModeConcurrent, GenerationModeSequential))
	}
	if g.ConcurrentDelay < 0 {
		return NewValidationError("generation", "concurrent_delay", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if g.LogHistory < 1 {
		return NewValidationError("generation", "log_history", fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidValue, g.LogHistory))
	}
	return nil
}

func (v *ConfigValidator) validateSource() error {
	s := v.cfg.Source
	if s.YtDlpBin == "" {
		return NewValidationError("source", "yt_dlp_bin", ErrMissingRequiredField)
	}
	if s.FetchTimeout <= 0 {
		return NewValidationError("source", "fetch_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateStorage() error {
	s := v.cfg.Storage
	if s.DocumentsDir == "" {
		return NewValidationError("storage", "documents_dir", ErrMissingRequiredField)
	}
	if s.TasksDir == "" {
		return NewValidationError("storage", "tasks_dir", ErrMissingRequiredField)
	}
	if s.UploadsDir == "" {
		return NewValidationError("storage", "uploads_dir", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateLimits() error {
	l := v.cfg.Limits
	if l.MaxTextFileSize <= 0 {
		return NewValidationError("limits", "max_text_file_size", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if l.MaxBinaryFileSize <= 0 {
		return NewValidationError("limits", "max_binary_file_size", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validatePostproc() error {
	p := v.cfg.Postproc
	if p.TTS && p.TTSVoice == "" {
		return NewValidationError("postproc", "tts_voice", ErrMissingRequiredField)
	}
	return nil
}
