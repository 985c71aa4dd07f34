// Package orcherr defines the error taxonomy shared by every orchestrator
// component. Internal packages may return plain wrapped errors; the
// operations layer (internal/ops) is responsible for translating those into
// a *Error with the right Kind before they reach a caller.
package orcherr

import (
	"errors"
	"fmt"
)

// Kind is one entry in the error taxonomy. It is not a Go error type itself;
// callers compare it via Error.Kind or orcherr.KindOf.
type Kind string

const (
	// InvalidInput is a validator rejection: bad path, bad id, bad command shape.
	// Never retried; returned straight to the caller.
	InvalidInput Kind = "invalid_input"

	// StateCorruption means schema validation failed on load. Surfaced loudly;
	// only recovered by an explicit reset.
	StateCorruption Kind = "state_corruption"

	// UnknownFeature names a referenced Feature that does not exist.
	UnknownFeature Kind = "unknown_feature"

	// UnknownWorker names a referenced WorkerStatus that does not exist.
	UnknownWorker Kind = "unknown_worker"

	// UnmetDependency names the first Feature dependency that is not completed.
	UnmetDependency Kind = "unmet_dependency"

	// RetryBudgetExhausted means attempts >= maxRetries for a Feature.
	RetryBudgetExhausted Kind = "retry_budget_exhausted"

	// CommandNotAllowed means a verification command missed every entry of
	// ALLOWED_COMMAND_PATTERNS.
	CommandNotAllowed Kind = "command_not_allowed"

	// Timeout is a verification wall-clock expiry.
	Timeout Kind = "timeout"

	// SubprocessFailed is a non-zero exit from an allowed command.
	SubprocessFailed Kind = "subprocess_failed"

	// FilesystemError is an underlying I/O failure; Details["path"] carries the
	// sanitised failing path.
	FilesystemError Kind = "filesystem_error"

	// Concurrency means a parallel-launch or in-flight cap was exceeded.
	Concurrency Kind = "concurrency"

	// InvalidTransition is an attempted state change illegal given the current
	// Feature or Session status.
	InvalidTransition Kind = "invalid_transition"
)

// Error is the orchestrator's structured error type. A nil *Error is never
// returned by a boundary operation; operations either return nil error or a
// non-nil *Error.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error that wraps an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetails sets the details map (the map itself, not a copy), replacing
// any details already present, and returns the receiver for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Is reports whether err is an *Error of the given kind, unwrapping as
// needed so errors.Is(err, orcherr.New(orcherr.UnknownFeature, "")) style
// comparisons are not required — callers should prefer orcherr.KindIs.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindIs reports whether err is an *Error carrying the given Kind.
func KindIs(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
