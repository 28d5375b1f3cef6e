// Package errors provides standardized error types and helpers for the
// annotation pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates an annotation or resource was not found
	ErrNotFound = errors.New("not found")
	// ErrConfig indicates missing or invalid configuration
	ErrConfig = errors.New("invalid configuration")
	// ErrProtocol indicates the external engine broke the wire protocol
	ErrProtocol = errors.New("protocol fault")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError represents a missing annotation, document or model file.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "annotation", "lexicon key")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ConfigError represents a missing or unusable configuration value.
// Raised before any I/O with documents or external processes begins.
type ConfigError struct {
	Option  string // Configuration option that is missing or invalid
	Message string // Human-readable error message
}

func (e *ConfigError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("configuration error for %s: %s", e.Option, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// ProtocolError represents a violation of the external engine's wire
// protocol: a response line-count mismatch, a malformed column count or
// an unexpected terminator. Fatal for the session that produced it.
type ProtocolError struct {
	Unit    int    // Index of the unit (sentence) being exchanged, -1 if unknown
	Message string // What went wrong
	Err     error  // Underlying error, if any
}

func (e *ProtocolError) Error() string {
	if e.Unit >= 0 {
		return fmt.Sprintf("protocol fault in unit %d: %s", e.Unit, e.Message)
	}
	return fmt.Sprintf("protocol fault: %s", e.Message)
}

func (e *ProtocolError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrProtocol
}

// ProcessError represents a failure of the external engine process
// itself: a failed spawn, a non-zero exit or diagnostic output on its
// error stream.
type ProcessError struct {
	Binary string // Binary that was executed
	Stderr string // Captured diagnostic output, if any
	Err    error  // Underlying error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("external process %s failed: %v: %s", e.Binary, e.Err, e.Stderr)
	}
	return fmt.Sprintf("external process %s failed: %v", e.Binary, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// FormatError represents a malformed annotation value, such as a scored
// value without its score separator.
type FormatError struct {
	Value   string // Value that failed to parse
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *FormatError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("malformed value %q: %s", e.Value, e.Message)
	}
	return fmt.Sprintf("malformed value: %s", e.Message)
}

func (e *FormatError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewConfig creates a ConfigError
func NewConfig(option, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Message: message,
	}
}

// NewProtocol creates a ProtocolError for the given unit index.
func NewProtocol(unit int, message string) *ProtocolError {
	return &ProtocolError{
		Unit:    unit,
		Message: message,
	}
}

// NewProcess creates a ProcessError
func NewProcess(binary, stderr string, err error) *ProcessError {
	return &ProcessError{
		Binary: binary,
		Stderr: stderr,
		Err:    err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
