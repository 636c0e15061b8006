package models

import (
	"errors"
	"fmt"
)

// ErrIndexNotReady is returned by a vector search before the index was built.
var ErrIndexNotReady = errors.New("vector index not built")

// ConfigurationError reports invalid or missing configuration.
type ConfigurationError struct {
	Msg string
	Err error
}

// NewConfigurationError returns a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return "configuration: " + e.Msg + ": " + e.Err.Error()
	}
	return "configuration: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// EmbeddingUnavailableError reports that the embedding model could not be loaded or run.
type EmbeddingUnavailableError struct {
	Err error
}

func (e *EmbeddingUnavailableError) Error() string {
	return fmt.Sprintf("embedding unavailable: %v", e.Err)
}

func (e *EmbeddingUnavailableError) Unwrap() error { return e.Err }

// DimensionMismatchError reports a vector whose length differs from the index dimension.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: got %d, expected %d", e.Got, e.Expected)
}

// GenerationError reports a failed call to the language model endpoint.
// StatusCode is zero when no HTTP response was received.
type GenerationError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *GenerationError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("generation failed: status %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("generation failed: status %d: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("generation failed: %v", e.Err)
	default:
		return "generation failed"
	}
}

func (e *GenerationError) Unwrap() error { return e.Err }
