package config

// StorageConfig holds the filesystem layout. All state lives on disk;
// there is no database.
type StorageConfig struct {
	// DocumentsDir holds finalized reports, one Markdown file per
	// (document hash, version) pair.
	DocumentsDir string `yaml:"documents_dir"`

	// TasksDir holds per-task scratch directories with intermediate
	// pipeline artifacts (outline, chapters, logs).
	TasksDir string `yaml:"tasks_dir"`

	// UploadsDir holds raw uploaded documents before interpretation.
	UploadsDir string `yaml:"uploads_dir"`

	// Watch enables a filesystem watcher on DocumentsDir so that reports
	// edited or removed out-of-band are picked up by the hash registry.
	Watch bool `yaml:"watch"`
}

// DefaultStorageConfig returns the built-in storage defaults.
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		DocumentsDir: "./data/documents",
		TasksDir:     "./data/tasks",
		UploadsDir:   "./data/uploads",
		Watch:        true,
	}
}
