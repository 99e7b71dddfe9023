package storage

import (
	"errors"
	"fmt"
)

// StorageError reports a backend failure: an unreachable store, an expired
// operation timeout, an unexpected constraint violation or an open breaker.
type StorageError struct {
	Op  string // e.g. "upsert known error"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err, passes ErrNotFound through untouched and
// wraps everything else in a *StorageError.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
