package bridge

import (
	"errors"
	"fmt"

	"github.com/roach88/ledgerbridge/internal/id"
	"github.com/roach88/ledgerbridge/internal/ledger"
	"github.com/roach88/ledgerbridge/internal/runtime"
	"github.com/roach88/ledgerbridge/internal/storage"
)

// Kind classifies errors returned to callers.
type Kind string

const (
	KindMalformedIdentifier Kind = "MalformedIdentifier"
	KindNotFound            Kind = "NotFound"
	KindStorageError        Kind = "StorageError"
	KindNodeUnavailable     Kind = "NodeUnavailable"
	KindNoConnection        Kind = "NoConnection"
	KindLockContention      Kind = "LockContention"
	KindExecutionError      Kind = "ExecutionError"
	KindInvalidSettings     Kind = "InvalidSettings"
	KindStartFailed         Kind = "StartFailed"
	KindSignatureFailed     Kind = "SignatureFailed"
	KindInvalidKeyDerivator Kind = "InvalidKeyDerivator"
	KindDeserialization     Kind = "Deserialization"
)

// Error is the only error type the bridge returns.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrMalformedIdentifier = &Error{Kind: KindMalformedIdentifier}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrStorage             = &Error{Kind: KindStorageError}
	ErrNodeUnavailable     = &Error{Kind: KindNodeUnavailable}
	ErrNoConnection        = &Error{Kind: KindNoConnection}
	ErrLockContention      = &Error{Kind: KindLockContention}
	ErrExecution           = &Error{Kind: KindExecutionError}
	ErrInvalidSettings     = &Error{Kind: KindInvalidSettings}
	ErrStartFailed         = &Error{Kind: KindStartFailed}
	ErrSignatureFailed     = &Error{Kind: KindSignatureFailed}
	ErrInvalidKeyDerivator = &Error{Kind: KindInvalidKeyDerivator}
	ErrDeserialization     = &Error{Kind: KindDeserialization}
)

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a sentinel (an *Error with only Kind set) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Detail != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an *Error whose detail is the message of err.
func NewError(kind Kind, err error) *Error {
	if err == nil {
		return &Error{Kind: kind}
	}
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}

// Errorf builds an *Error with a formatted detail.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// mapError translates runtime and engine failures into caller-facing kinds.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}

	switch {
	case errors.Is(err, runtime.ErrClosed), errors.Is(err, ledger.ErrStopped):
		return NewError(KindNodeUnavailable, err)
	case errors.Is(err, id.ErrMalformed):
		return NewError(KindMalformedIdentifier, err)
	}

	switch ledger.CodeOf(err) {
	case ledger.CodeNotFound:
		return NewError(KindNotFound, err)
	case ledger.CodeStorage:
		return NewError(KindStorageError, err)
	}
	if storage.IsBackendError(err) {
		return NewError(KindStorageError, err)
	}
	return NewError(KindExecutionError, err)
}
