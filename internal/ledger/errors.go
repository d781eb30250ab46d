package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every CodeNotFound error (errors.Is).
	ErrNotFound = errors.New("not found")

	// ErrStopped is returned by API calls made after the engine stopped
	// accepting commands.
	ErrStopped = errors.New("ledger engine stopped")

	// ErrStreamClosed is returned by Next once the engine has stopped and
	// every queued notification has been delivered.
	ErrStreamClosed = errors.New("notification stream closed")
)

// Error represents a request the engine refused or could not complete.
//
// Error includes structured fields for diagnostics; Err carries the
// underlying cause (a *storage.Error for CodeStorage).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// SubjectID identifies the affected subject, when there is one.
	SubjectID string

	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	CodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"
	CodeSchemaViolation  ErrorCode = "SCHEMA_VIOLATION"
	CodeSubjectInactive  ErrorCode = "SUBJECT_INACTIVE"
	CodeNotAllowed       ErrorCode = "NOT_ALLOWED"
	CodeStorage          ErrorCode = "STORAGE"
	CodeBrokenChain      ErrorCode = "BROKEN_CHAIN"
)

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.SubjectID != "" {
		msg += fmt.Sprintf(" (subject=%s)", e.SubjectID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match not-found errors.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Code == CodeNotFound
}

func newError(code ErrorCode, subject string, format string, args ...any) *Error {
	return &Error{Code: code, SubjectID: subject, Message: fmt.Sprintf(format, args...)}
}

func notFound(what, key string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", what, key)}
}

func storageFailure(op string, err error) *Error {
	return &Error{Code: CodeStorage, Message: op, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsNotFound returns true for not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
