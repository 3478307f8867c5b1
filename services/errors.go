package services

import "errors"

// ErrorKind classifies every failure a service can return. Handlers map
// each kind to exactly one HTTP status; services never touch HTTP.
type ErrorKind string

const (
	// KindValidation is malformed or missing input; correcting the request recovers.
	KindValidation ErrorKind = "validation"
	// KindAuthorization is a role or ownership mismatch.
	KindAuthorization ErrorKind = "authorization"
	// KindNotFound is a missing entity or an attempt-state mismatch.
	KindNotFound ErrorKind = "not_found"
	// KindConflict is a uniqueness violation, e.g. a duplicate attempt.
	KindConflict ErrorKind = "conflict"
	// KindTiming means the request fell outside the eligible time window.
	KindTiming ErrorKind = "timing"
	// KindEncoding is an unreadable import payload.
	KindEncoding ErrorKind = "encoding"
	// KindPersistence is a storage-layer failure after which all writes were rolled back.
	KindPersistence ErrorKind = "persistence"
)

// Error carries a kind plus a human-readable message. All service failures
// are one of these; none are swallowed.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from any error returned by a service. Unclassified
// errors are reported as persistence failures.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindPersistence
}
