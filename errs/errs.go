// Package errs defines the structured error kinds propagated across package
// boundaries (spec §7). Every fallible operation in this module returns one
// of these kinds rather than an ad hoc string, so callers can classify
// failures with errors.As instead of substring matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a structured error into one of the categories from spec §7.
type Kind string

const (
	// Input errors: surfaced to the caller, never retried.
	KindInvalidRequest   Kind = "invalid_request"
	KindPermissionDenied Kind = "permission_denied"
	KindSchemaViolation  Kind = "schema_violation"

	// Transient errors: retried with exponential backoff up to a cap.
	KindRateLimited  Kind = "rate_limited"
	KindTimeout      Kind = "timeout"
	KindNetworkError Kind = "network_error"

	// KindProviderError is a provider-side fault: the call completed but the
	// response violates the generation contract (json_mode text that doesn't
	// parse, a response missing its message payload). Distinct from
	// KindInvalidRequest, which is the caller's fault; not auto-retried by the
	// gateway, since retrying the same malformed-output cause rarely helps.
	// Classification and recovery are left to the caller (spec §4.11).
	KindProviderError Kind = "provider_error"

	// Execution errors: handled by the recovery framework.
	KindToolExecutionError Kind = "tool_execution_error"
	KindPlanningError      Kind = "planning_error"
	KindInvalidParameters  Kind = "invalid_parameters"

	// Safety violations: logged with full context, never retried.
	KindSecurityViolation Kind = "security_violation"

	// Fatal: triggers graceful shutdown.
	KindStoreCorruption Kind = "store_corruption"

	// KindUnknown is used when a failure cannot be classified.
	KindUnknown Kind = "unknown"
)

// Retryable reports whether the framework should retry an operation failing
// with this kind, absent any cap already being reached.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindNetworkError:
		return true
	default:
		return false
	}
}

// Error is the structured error value propagated across package boundaries.
// It carries a kind, a short human description, an optional correlation id
// for trace lookup, and the underlying cause.
type Error struct {
	Kind          Kind
	Message       string
	CorrelationID string
	Cause         error
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithCorrelationID returns a copy of e annotated with a correlation id.
func (e *Error) WithCorrelationID(id string) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.CorrelationID = id
	return &cp
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.CorrelationID != "" {
		return fmt.Sprintf("%s: %s (correlation_id=%s)", e.Kind, msg, e.CorrelationID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap preserves the error chain so errors.Is/As can traverse into Cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// As returns the first *Error in err's chain together with its kind, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, otherwise
// KindUnknown.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}
