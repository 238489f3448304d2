package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates no extractor handles a document's MIME type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrConfiguration indicates an invalid configuration value.
	// Returned errors are usually *ConfigError values naming the field.
	ErrConfiguration = errors.New("configuration error")

	// ErrProviderUnavailable indicates a model or embedding backend cannot be used:
	// missing credentials, a missing local model file or an unreachable server.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrUnsupportedModelFormat indicates a local model file extension has no
	// registered backend family. It is a ProviderUnavailable condition.
	ErrUnsupportedModelFormat = fmt.Errorf("%w: unsupported model format", ErrProviderUnavailable)

	// Session Errors.

	// ErrSessionNotFound indicates the session does not exist.
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)

	// ErrSessionExpired indicates the session timed out and was removed.
	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrNotFound)

	// ErrGenerationFailed indicates the underlying model call failed.
	ErrGenerationFailed = errors.New("generation failed")

	// Index Errors.

	// ErrIndexCorrupt indicates a durable index could not be decoded.
	// Callers treat it as a cache miss and rebuild.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrDataLoss indicates an index is unreadable and the original text
	// needed to rebuild it is gone.
	ErrDataLoss = errors.New("data loss")
)

// ConfigError names the configuration field that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrConfiguration.
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// NewConfigError creates a ConfigError for field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Stage names a step of the question-answering pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageReceived        Stage = "received"
	StageHistoryAppended Stage = "history_appended"
	StageDocsRetrieved   Stage = "docs_retrieved"
	StageGenerated       Stage = "generated"
	StagePostprocessed   Stage = "postprocessed"
	StageHistoryUpdated  Stage = "history_updated"
)

// StageError records the pipeline stage whose transition failed.
// Stage is the last stage reached before the failure.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("after %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}
