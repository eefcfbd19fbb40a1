package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration loading and validation.
var (
	// ErrInvalidYAML indicates a YAML file could not be parsed.
	ErrInvalidYAML = errors.New("invalid YAML")

	// ErrValidationFailed indicates configuration validation failed.
	ErrValidationFailed = errors.New("validation failed")

	// ErrMissingRequiredField indicates a required field is absent.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidValue indicates a field holds an out-of-range or unknown value.
	ErrInvalidValue = errors.New("invalid value")
)

// LoadError wraps errors that occur while reading or parsing a config file.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a LoadError for the given file.
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}

// ValidationError carries the section and field that failed validation so
// startup failures point straight at the offending YAML key.
type ValidationError struct {
	Section string
	Field   string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s.%s: %v", e.Section, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Section, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError for a section/field pair.
func NewValidationError(section, field string, err error) *ValidationError {
	return &ValidationError{Section: section, Field: field, Err: err}
}
