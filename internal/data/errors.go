package data

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by every Store implementation.
var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrDuplicateISBN     = errors.New("duplicate isbn")
	ErrNoCopiesAvailable = errors.New("no copies available")
)

// ErrorKind classifies a failure for the transport layer.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindStoreFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "store_failure"
	}
}

// Error is the error type returned by the catalog, directory, lending and
// analytics services.
type Error struct {
	Kind    ErrorKind
	Message string
	// Fields holds per-field messages for KindValidation.
	Fields map[string]string
	// Err is the underlying cause for KindStoreFailure.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ValidationFailed wraps the field errors collected by a validator.Validator.
func ValidationFailed(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// InvalidField reports a single bad field.
func InvalidField(field, message string) *Error {
	return ValidationFailed(map[string]string{field: message})
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// StoreFailure wraps an unexpected persistence error with the name of the
// operation that was running.
func StoreFailure(op string, err error) *Error {
	return &Error{Kind: KindStoreFailure, Message: op, Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are treated as
// store failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreFailure
}
