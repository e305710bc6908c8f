package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP layer and the queue consumer.
type Kind string

const (
	// KindIncorrectInput covers malformed or missing fields and
	// out-of-range argument values. Surfaced to the caller.
	KindIncorrectInput Kind = "IncorrectInputData"
	// KindAuthenticationRequired means the endpoint needs a user but
	// the request is anonymous.
	KindAuthenticationRequired Kind = "AuthenticationRequired"
	// KindAccessDenied means authenticated but forbidden.
	KindAccessDenied Kind = "AccessDenied"
	// KindNotFound means the addressed entity does not exist.
	KindNotFound Kind = "NotFound"
	// KindApplicationLogic is an aggregate invariant violation.
	KindApplicationLogic Kind = "ApplicationLogic"
	// KindBackendUnavailable is a transient store failure; callers may retry.
	KindBackendUnavailable Kind = "BackendUnavailable"
	// KindBackendRejected is a permanent store failure; non-retryable.
	KindBackendRejected Kind = "BackendRejected"
	// KindPartialBulkFailure reports a bulk write that partially succeeded.
	KindPartialBulkFailure Kind = "PartialBulkFailure"
)

// Error carries a kind, a human message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the kind of an error. Unclassified errors report
// KindBackendUnavailable so the boundary treats them as retryable.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindBackendUnavailable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// Retryable reports whether the error is worth retrying at the boundary.
func Retryable(err error) bool {
	return KindOf(err) == KindBackendUnavailable
}

// Incorrect is shorthand for an IncorrectInputData error.
func Incorrect(format string, args ...any) *Error {
	return Newf(KindIncorrectInput, format, args...)
}

// NotFound is shorthand for a NotFound error.
func NotFound(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}

// Logic is shorthand for an ApplicationLogic error.
func Logic(format string, args ...any) *Error {
	return Newf(KindApplicationLogic, format, args...)
}

// Unavailable wraps a transient store failure.
func Unavailable(message string, cause error) *Error {
	return Wrap(KindBackendUnavailable, message, cause)
}

// Rejected wraps a permanent store failure.
func Rejected(message string, cause error) *Error {
	return Wrap(KindBackendRejected, message, cause)
}
