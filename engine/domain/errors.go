package domain

import (
	"errors"
	"fmt"
)

// Input sentinels. These fail a single document, never a whole batch.
var (
	ErrEmptyDocument     = errors.New("document is empty")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrUnreadable        = errors.New("document could not be parsed")
	ErrNoText            = errors.New("no extractable text") // e.g. image-only PDF
)

// ErrEmptyInput marks an operation invoked on empty normalized text.
var ErrEmptyInput = errors.New("input text is empty")

// InputError wraps an input sentinel with the offending document.
type InputError struct {
	DocID   string
	Source  string
	Wrapped error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input: %s: %s", e.Source, e.Wrapped)
}

func (e *InputError) Unwrap() error { return e.Wrapped }

// NewInputError creates an InputError for a document.
func NewInputError(docID, source string, wrapped error) *InputError {
	return &InputError{DocID: docID, Source: source, Wrapped: wrapped}
}

// CapabilityCause classifies why an external capability call failed.
type CapabilityCause string

const (
	CauseQuota     CapabilityCause = "quota"
	CauseAuth      CapabilityCause = "auth"
	CauseTimeout   CapabilityCause = "timeout"
	CauseMalformed CapabilityCause = "malformed"
	CauseUnknown   CapabilityCause = "unknown"
)

// CapabilityError reports an embedder / vector-index / generator call that
// failed after its retries were exhausted. Stage names the pipeline stage or
// operation that was running; Hint is a remediation suggestion surfaced to
// the presentation layer instead of a stack trace.
type CapabilityError struct {
	Capability string // "embedder", "index", "generator"
	Stage      string
	Cause      CapabilityCause
	Hint       string
	Wrapped    error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s failed at %s (%s): %v", e.Capability, e.Stage, e.Cause, e.Wrapped)
}

func (e *CapabilityError) Unwrap() error { return e.Wrapped }

// Retryable reports whether another attempt could plausibly succeed.
// Bad credentials and rejected payloads fail the same way every time.
func (e *CapabilityError) Retryable() bool {
	return e.Cause != CauseAuth && e.Cause != CauseMalformed
}

// NewCapabilityError creates a CapabilityError with a cause-appropriate hint.
func NewCapabilityError(capability, stage string, cause CapabilityCause, wrapped error) *CapabilityError {
	hint := "check that the service is reachable"
	switch cause {
	case CauseQuota:
		hint = "check API quota and billing"
	case CauseAuth:
		hint = "check API credentials"
	case CauseTimeout:
		hint = "the service timed out; retry later"
	case CauseMalformed:
		hint = "the request was rejected; check input size and encoding"
	}
	return &CapabilityError{
		Capability: capability,
		Stage:      stage,
		Cause:      cause,
		Hint:       hint,
		Wrapped:    wrapped,
	}
}

// ConfigError reports an invalid configuration value detected at startup.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s=%s: %s", e.Field, e.Value, e.Reason)
}

// NewConfigError creates a ConfigError.
func NewConfigError(field, value, reason string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}
