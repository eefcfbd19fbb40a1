package config

import (
	"os"
	"time"
)

// LLMConfig contains LLM provider settings shared by all workflows.
type LLMConfig struct {
	// Provider names the backing service. Currently "gemini" is built in;
	// the name also keys the global rate limiter.
	Provider string `yaml:"provider"`

	// Model is the model identifier sent to the provider.
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint (tests point this at a
	// local stub). Empty uses the provider's public endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// APIKey is the resolved key. Set from APIKeyEnv at load time; may be
	// given directly in YAML via {{.VAR}} expansion instead.
	APIKey string `yaml:"api_key"`

	// Timeout is the base per-call deadline. Calls with thinking=high get
	// max(1.5x this, 300s).
	Timeout time.Duration `yaml:"timeout"`

	// RateLimitInterval is the minimum spacing between calls to the same
	// provider, shared across all concurrent workflows.
	RateLimitInterval time.Duration `yaml:"rate_limit_interval"`

	// MaxRetries bounds retries of transient failures per call.
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoffBase is the first retry delay; subsequent retries double it.
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`
}

// DefaultLLMConfig returns the built-in LLM defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Provider:          "gemini",
		Model:             "gemini-2.5-pro",
		APIKeyEnv:         "GEMINI_API_KEY",
		Timeout:           120 * time.Second,
		RateLimitInterval: 6 * time.Second,
		MaxRetries:        2,
		RetryBackoffBase:  2 * time.Second,
	}
}

// resolveAPIKey fills APIKey from the configured environment variable when
// the key was not provided directly.
func (c *LLMConfig) resolveAPIKey() {
	if c.APIKey == "" && c.APIKeyEnv != "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
}
