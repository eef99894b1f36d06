package client

import "github.com/fluxsce/flux-service-center-client/errs"

// Kind classifies the failure modes a caller needs to branch on. It is
// an alias of errs.Kind so every layer of this client (transport,
// registry, configcenter) shares one taxonomy without the root package
// importing them and creating a cycle.
type Kind = errs.Kind

const (
	KindUnknown              = errs.KindUnknown
	KindInvalidArgument      = errs.KindInvalidArgument
	KindInvalidState         = errs.KindInvalidState
	KindAuthFailure          = errs.KindAuthFailure
	KindTimeout              = errs.KindTimeout
	KindTransportUnavailable = errs.KindTransportUnavailable
	KindServerError          = errs.KindServerError
	KindLocalFailure         = errs.KindLocalFailure
)

// Error is the concrete error type returned by every public operation
// in this module. It carries a Kind so callers can branch with
// errors.As plus Kind(), and optionally wraps the error that caused it.
type Error = errs.Error

// NewError constructs an *Error of the given kind. cause may be nil.
func NewError(kind Kind, message string, cause error) *Error {
	return errs.New(kind, message, cause)
}

func invalidArgument(format string, args ...any) *Error {
	return errs.InvalidArgument(format, args...)
}

func invalidState(message string) *Error {
	return errs.InvalidState(message)
}
