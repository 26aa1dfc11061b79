package protocol

import (
	"errors"
	"fmt"
)

// The engine distinguishes four runtime failure classes. Configuration errors
// fail a run immediately with no retry; evaluation errors resolve to a
// documented default and are logged; transient delivery errors are retried
// with bounded backoff; permanent delivery errors fail the run immediately.

// ConfigurationError reports a step whose config is missing required fields.
// Validation catches these before activation; executors detect them again
// defensively at execution time.
type ConfigurationError struct {
	StepKey string
	Field   string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("step %s misconfigured: field %q %s", e.StepKey, e.Field, e.Reason)
	}

	return fmt.Sprintf("step %s misconfigured: %s", e.StepKey, e.Reason)
}

// NewConfigurationError builds a ConfigurationError for a missing or invalid
// config field.
func NewConfigurationError(stepKey, field, reason string) *ConfigurationError {
	return &ConfigurationError{StepKey: stepKey, Field: field, Reason: reason}
}

// EvaluationError reports a decision or criteria field absent on the record.
// The engine resolves it by a documented default (decision: false branch).
type EvaluationError struct {
	StepKey string
	Field   string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("step %s: field %q absent on record at evaluation time", e.StepKey, e.Field)
}

// TransientDeliveryError wraps a network or rate-limit failure on a
// side-effecting call. The engine retries these with bounded backoff.
type TransientDeliveryError struct {
	Err error
}

func (e *TransientDeliveryError) Error() string {
	return fmt.Sprintf("transient delivery failure: %v", e.Err)
}

func (e *TransientDeliveryError) Unwrap() error {
	return e.Err
}

// PermanentDeliveryError wraps an outright rejection by a collaborator, such
// as an invalid recipient. Never retried.
type PermanentDeliveryError struct {
	Err error
}

func (e *PermanentDeliveryError) Error() string {
	return fmt.Sprintf("permanent delivery failure: %v", e.Err)
}

func (e *PermanentDeliveryError) Unwrap() error {
	return e.Err
}

// IsConfiguration reports whether err is a step configuration error.
func IsConfiguration(err error) bool {
	var target *ConfigurationError

	return errors.As(err, &target)
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	var target *TransientDeliveryError

	return errors.As(err, &target)
}

// IsPermanent reports whether err is a non-retryable delivery rejection.
func IsPermanent(err error) bool {
	var target *PermanentDeliveryError

	return errors.As(err, &target)
}
