// Package config loads, merges, and validates deepread configuration.
//
// Configuration comes from a single deepread.yaml in the config directory,
// with environment variables expanded via {{.VAR}} template syntax and a
// .env file loaded by the caller (cmd/deepread) before Initialize runs.
// User values are merged over built-in defaults; unset fields keep the
// defaults.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the complete deepread.yaml file structure.
type YAMLConfig struct {
	Server     *ServerConfig     `yaml:"server"`
	Queue      *QueueConfig      `yaml:"queue"`
	LLM        *LLMConfig        `yaml:"llm"`
	Generation *GenerationConfig `yaml:"generation"`
	Source     *SourceConfig     `yaml:"source"`
	Storage    *StorageConfig    `yaml:"storage"`
	Limits     *LimitsConfig     `yaml:"limits"`
	Postproc   *PostprocConfig   `yaml:"postproc"`
	Telemetry  *TelemetryConfig  `yaml:"telemetry"`
}

// Config is the fully resolved, validated application configuration.
type Config struct {
	configDir string

	Server     *ServerConfig
	Queue      *QueueConfig
	LLM        *LLMConfig
	Generation *GenerationConfig
	Source     *SourceConfig
	Storage    *StorageConfig
	Limits     *LimitsConfig
	Postproc   *PostprocConfig
	Telemetry  *TelemetryConfig
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load deepread.yaml from configDir (missing file uses pure defaults)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge user values over built-in defaults
//  5. Validate the merged configuration
//  6. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"workers", cfg.Queue.Workers,
		"queue_capacity", cfg.Queue.Capacity,
		"llm_provider", cfg.LLM.Provider,
		"generation_mode", cfg.Generation.Mode)

	return cfg, nil
}

// load is the internal loader (not exported).
func load(_ context.Context, configDir string) (*Config, error) {
	user := &YAMLConfig{}
	if err := loadYAML(filepath.Join(configDir, "deepread.yaml"), user); err != nil {
		// A missing config file is not an error: everything has defaults
		// and secrets arrive through the environment.
		if !os.IsNotExist(err) {
			return nil, NewLoadError("deepread.yaml", err)
		}
	}

	cfg := &Config{
		configDir:  configDir,
		Server:     DefaultServerConfig(),
		Queue:      DefaultQueueConfig(),
		LLM:        DefaultLLMConfig(),
		Generation: DefaultGenerationConfig(),
		Source:     DefaultSourceConfig(),
		Storage:    DefaultStorageConfig(),
		Limits:     DefaultLimitsConfig(),
		Postproc:   DefaultPostprocConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}

	// Merge user-provided sections into defaults (non-zero values override).
	if user.Server != nil {
		if err := mergo.Merge(cfg.Server, user.Server, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge server config: %w", err)
		}
	}
	if user.Queue != nil {
		if err := mergo.Merge(cfg.Queue, user.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}
	if user.LLM != nil {
		if err := mergo.Merge(cfg.LLM, user.LLM, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge llm config: %w", err)
		}
	}
	if user.Generation != nil {
		if err := mergo.Merge(cfg.Generation, user.Generation, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge generation config: %w", err)
		}
	}
	if user.Source != nil {
		if err := mergo.Merge(cfg.Source, user.Source, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge source config: %w", err)
		}
	}
	if user.Storage != nil {
		if err := mergo.Merge(cfg.Storage, user.Storage, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge storage config: %w", err)
		}
	}
	if user.Limits != nil {
		if err := mergo.Merge(cfg.Limits, user.Limits, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge limits config: %w", err)
		}
	}
	if user.Postproc != nil {
		if err := mergo.Merge(cfg.Postproc, user.Postproc, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge postproc config: %w", err)
		}
	}
	if user.Telemetry != nil {
		if err := mergo.Merge(cfg.Telemetry, user.Telemetry, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge telemetry config: %w", err)
		}
	}

	cfg.LLM.resolveAPIKey()
	cfg.Postproc.resolveTTSKey()

	return cfg, nil
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}

// loadYAML reads a YAML file, expands environment variables, and parses
// it into target. The raw os.IsNotExist error is passed through for
// missing files so callers can treat the file as optional.
func loadYAML(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// Note: ExpandEnv passes through original data on parse/execution
	// errors, letting the YAML parser produce the clearer message.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}
