package config

// LimitsConfig caps uploaded document sizes. Oversized uploads are
// rejected at submission, before any task is created.
type LimitsConfig struct {
	// MaxTextFileSize caps plain-text uploads (.txt, .md) in bytes.
	MaxTextFileSize int64 `yaml:"max_text_file_size"`

	// MaxBinaryFileSize caps binary uploads (.pdf, .docx) in bytes.
	MaxBinaryFileSize int64 `yaml:"max_binary_file_size"`
}

// DefaultLimitsConfig returns the built-in upload limits.
func DefaultLimitsConfig() *LimitsConfig {
	return &LimitsConfig{
		MaxTextFileSize:   2 * 1024 * 1024,
		MaxBinaryFileSize: 50 * 1024 * 1024,
	}
}
