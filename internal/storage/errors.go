package storage

import (
	"errors"
	"fmt"
)

// ErrEntryNotFound is returned by Get for absent keys.
var ErrEntryNotFound = errors.New("entry not found")

// ErrScanConsumed is yielded when a scan is ranged over a second time.
var ErrScanConsumed = errors.New("scan already consumed")

// Error carries a failure reported by the foreign backend.
// Detail is the backend's own message, unmodified.
type Error struct {
	Op         string // "create", "get", "put", "delete", "iterate"
	Collection string
	Key        string
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %s/%s: %s", e.Op, e.Collection, e.Key, e.Detail)
	}
	return fmt.Sprintf("storage %s %s: %s", e.Op, e.Collection, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func backendError(op, collection, key string, err error) *Error {
	return &Error{Op: op, Collection: collection, Key: key, Detail: err.Error(), Err: err}
}

// IsBackendError reports whether err came from the foreign backend.
func IsBackendError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
