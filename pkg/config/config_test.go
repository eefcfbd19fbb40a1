package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deepread.yaml"), []byte(content), 0o644))
}

func TestInitializeDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Queue.Workers)
	assert.Equal(t, 20, cfg.Queue.Capacity)
	assert.Equal(t, time.Hour, cfg.Queue.TaskTimeout)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 6*time.Second, cfg.LLM.RateLimitInterval)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, GenerationModeConcurrent, cfg.Generation.Mode)
	assert.Equal(t, 3*time.Second, cfg.Generation.ConcurrentDelay)
	assert.Equal(t, int64(2*1024*1024), cfg.Limits.MaxTextFileSize)
	assert.Equal(t, int64(50*1024*1024), cfg.Limits.MaxBinaryFileSize)
	assert.Equal(t, dir, cfg.ConfigDir())
}

func TestInitializeMergesUserValuesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
queue:
  workers: 5
  capacity: 50
llm:
  model: gemini-2.5-flash
  timeout: 30s
generation:
  mode: sequential
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	// Overridden fields take the user values.
	assert.Equal(t, 5, cfg.Queue.Workers)
	assert.Equal(t, 50, cfg.Queue.Capacity)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, GenerationModeSequential, cfg.Generation.Mode)

	// Untouched fields keep the defaults.
	assert.Equal(t, time.Hour, cfg.Queue.TaskTimeout)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 3*time.Second, cfg.Generation.ConcurrentDelay)
}

func TestInitializeExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_DEEPREAD_KEY", "sk-from-env")

	dir := t.TempDir()
	writeConfigFile(t, dir, `
llm:
  api_key: "{{.TEST_DEEPREAD_KEY}}"
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
}

func TestInitializeResolvesAPIKeyFromNamedEnvVar(t *testing.T) {
	t.Setenv("MY_GEMINI_KEY", "sk-named")

	dir := t.TempDir()
	writeConfigFile(t, dir, `
llm:
  api_key_env: MY_GEMINI_KEY
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-named", cfg.LLM.APIKey)
}

func TestInitializeDirectKeyWinsOverEnvVar(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "sk-env")

	dir := t.TempDir()
	writeConfigFile(t, dir, `
llm:
  api_key: sk-direct
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-direct", cfg.LLM.APIKey)
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "queue: [not: a: mapping")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitializeRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "negative workers",
			yaml:   "queue:\n  workers: -1",
			errMsg: "queue.workers",
		},
		{
			name:   "unknown generation mode",
			yaml:   "generation:\n  mode: turbo",
			errMsg: "generation.mode",
		},
		{
			name:   "negative retries",
			yaml:   "llm:\n  max_retries: -2",
			errMsg: "llm.max_retries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfigFile(t, dir, tt.yaml)

			_, err := Initialize(context.Background(), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
