package store

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID is returned by Add when a contact with the same id already exists.
	ErrDuplicateID = errors.New("duplicate contact id")

	// ErrNotFound is returned when an operation names a contact id that does not exist.
	ErrNotFound = errors.New("contact not found")
)

// PersistenceError reports a failed read or write of the key-value backend. The in-memory state
// stays as it was after the operation unless rollback is enabled.
type PersistenceError struct {
	Op  string // "get", "set" or "delete"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
