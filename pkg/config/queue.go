package config

import "time"

// QueueConfig contains worker pool and task queue configuration.
// These values control how submissions are queued, claimed, and bounded.
type QueueConfig struct {
	// Workers is the number of concurrent workflow workers. Exactly this
	// many tasks are processed at once; everything else waits in the queue.
	Workers int `yaml:"workers"`

	// Capacity is the submission queue capacity. Submit fails fast with a
	// queue_full error once this many tasks are waiting.
	Capacity int `yaml:"capacity"`

	// TaskTimeout is the hard per-task deadline. A workflow exceeding it
	// is torn down and the task fails with a timeout error.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// GracefulShutdownTimeout is the max time to wait for active workflows
	// to finish during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// TaskRetention is how long terminal task states stay queryable
	// before the janitor removes them from memory.
	TaskRetention time.Duration `yaml:"task_retention"`

	// CleanupInterval is the janitor's run interval.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		Workers:                 3,
		Capacity:                20,
		TaskTimeout:             1 * time.Hour,
		GracefulShutdownTimeout: 2 * time.Minute,
		TaskRetention:           24 * time.Hour,
		CleanupInterval:         10 * time.Minute,
	}
}
