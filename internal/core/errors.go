package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// Core Error Types
// =============================================================================

// ServiceError represents a generation-service failure (network/auth/quota).
// The core never retries these; they surface immediately to the invoking
// stage.
type ServiceError struct {
	Stage    string // pipeline stage or component that issued the call
	Provider string // adapter name, when known
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("generation service failed in %s (%s): %v", e.Stage, e.Provider, e.Err)
	}
	return fmt.Sprintf("generation service failed in %s: %v", e.Stage, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// ParseError represents model output that did not match the expected
// structure. Consumers recover locally: they keep the last good state and
// halt only the current optimization loop or summarization call, never the
// whole batch.
type ParseError struct {
	Stage   string
	Snippet string // truncated head of the offending output, for logs
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing model output in %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StageError wraps a fail-fast failure of a whole-pipeline stage (story-state
// extraction, architect pass, skeleton validation). Any StageError aborts the
// remaining pipeline because later stages hard-depend on its output.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Predefined Error Values
// =============================================================================

var (
	ErrEmptyResponse       = errors.New("empty response from generation service")
	ErrNoStoryState        = errors.New("story state not found")
	ErrUnitNotFound        = errors.New("content unit not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNoPremise           = errors.New("premise text is empty")
	ErrNoUnits             = errors.New("no content units in store")
)

// =============================================================================
// Error Classification Functions
// =============================================================================

// IsServiceError reports whether err carries a ServiceError anywhere in its
// chain.
func IsServiceError(err error) bool {
	if err == nil {
		return false
	}
	var se *ServiceError
	return errors.As(err, &se)
}

// IsParseError reports whether err carries a ParseError anywhere in its
// chain.
func IsParseError(err error) bool {
	if err == nil {
		return false
	}
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsStageError reports whether err is a fail-fast pipeline stage failure.
func IsStageError(err error) bool {
	if err == nil {
		return false
	}
	var se *StageError
	return errors.As(err, &se)
}

// =============================================================================
// Error Creation Helpers
// =============================================================================

// NewServiceError wraps a service failure with its originating stage.
func NewServiceError(stage string, err error) *ServiceError {
	return &ServiceError{Stage: stage, Err: err}
}

// NewParseError wraps a structure mismatch, keeping a truncated snippet of
// the raw output for diagnostics.
func NewParseError(stage, raw string, err error) *ParseError {
	return &ParseError{Stage: stage, Snippet: Truncate(raw, 160), Err: err}
}

// NewStageError wraps a fail-fast stage failure.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// Truncate shortens s to at most n bytes for log output, appending an
// ellipsis marker when it cuts.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
