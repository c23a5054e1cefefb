package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrNoItems means the item bank has nothing to serve for the game.
	ErrNoItems = errors.New("no questions available")
	// ErrClosed is returned when answering an attempt that is no longer open.
	ErrClosed   = errors.New("attempt already closed")
	ErrDisabled = errors.New("game is disabled")
	ErrInvalid  = errors.New("invalid request")
)

// StorageError wraps a failure reported by the record store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError returns nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
