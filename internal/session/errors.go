package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for session store operations.
var (
	// ErrSessionNotFound indicates the session ID has no record in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStoreUnavailable indicates the store could not be reached.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// StoreError wraps a store failure with the session ID it occurred for.
type StoreError struct {
	SessionID string
	Err       error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("session store: %s: %v", e.SessionID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}
