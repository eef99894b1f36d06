// Package errs defines the error-kind taxonomy shared by every layer
// of this client (transport, registry, configcenter, and the root
// package's public API), grounded on
// pkg/plugin/tools/common/errors.go's ToolError/BaseError shape (type
// string + message + wrapped cause + retryable flag) but adapted to
// Go's errors.Is/errors.As idiom instead of a hand-rolled
// Type()/WithContext() interface. It lives in its own package so
// internal packages (registry, configcenter, internal/transport) can
// return it without importing the root client package and creating an
// import cycle; the root package's errors.go re-exports these names for
// callers.
package errs

import "fmt"

// Kind classifies a failure the way a caller needs to branch on it.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindInvalidState
	KindAuthFailure
	KindTimeout
	KindTransportUnavailable
	KindServerError
	KindLocalFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInvalidState:
		return "invalid_state"
	case KindAuthFailure:
		return "auth_failure"
	case KindTimeout:
		return "timeout"
	case KindTransportUnavailable:
		return "transport_unavailable"
	case KindServerError:
		return "server_error"
	case KindLocalFailure:
		return "local_failure"
	default:
		return "unknown"
	}
}

// Error is the concrete error type every public operation returns.
type Error struct {
	kind    Kind
	message string
	cause   error
}

// New constructs an *Error of the given kind. cause may be nil.
func New(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// IsRetryable reports whether the failure is one a caller might
// reasonably retry after backing off.
func (e *Error) IsRetryable() bool {
	switch e.kind {
	case KindTimeout, KindTransportUnavailable:
		return true
	default:
		return false
	}
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(format string, args ...any) *Error {
	return New(KindInvalidArgument, fmt.Sprintf(format, args...), nil)
}

// InvalidState builds a KindInvalidState error.
func InvalidState(message string) *Error {
	return New(KindInvalidState, message, nil)
}

// AuthFailure builds a KindAuthFailure error wrapping cause.
func AuthFailure(message string, cause error) *Error {
	return New(KindAuthFailure, message, cause)
}

// Timeout builds a KindTimeout error wrapping cause.
func Timeout(message string, cause error) *Error {
	return New(KindTimeout, message, cause)
}

// Transport builds a KindTransportUnavailable error wrapping cause.
func Transport(message string, cause error) *Error {
	return New(KindTransportUnavailable, message, cause)
}

// Server builds a KindServerError error from a server-reported message.
func Server(message string) *Error {
	return New(KindServerError, message, nil)
}

// Local builds a KindLocalFailure error wrapping cause.
func Local(message string, cause error) *Error {
	return New(KindLocalFailure, message, cause)
}
