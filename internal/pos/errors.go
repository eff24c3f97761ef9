package pos

import (
	"errors"
	"fmt"
)

// NetworkError represents a failed push or pull request against the remote
// sync endpoints: transport failures and non-success HTTP statuses alike.
//
// Sync converts these into sync:error events and a backoff retry; they are
// never surfaced to the opportunistic trigger call sites.
type NetworkError struct {
	// Op identifies the failing phase: "push" or "pull".
	Op string

	// Status is the HTTP status code, 0 for transport-level failures.
	Status int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("sync %s failed: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("sync %s failed: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError returns true if the error is a sync network failure.
// Uses errors.As to handle wrapped errors.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
