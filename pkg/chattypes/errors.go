package chattypes

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conditions the engine recovers locally. Callers
// match them with errors.Is and decide how to present each one; none of them
// leaves a provisional message or a half-updated quota counter behind.
var (
	// ErrInvalidIdentifier is returned for malformed or sentinel identifiers
	// passed to load or send. Resolved locally, never reaches the network.
	ErrInvalidIdentifier = errors.New("invalid session identifier")

	// ErrNotFound is returned when a remote session lookup 404s.
	ErrNotFound = errors.New("session not found")

	// ErrUsageLimitReached is returned when the quota gate trips for a
	// non-premium account. Distinct from a transport error so the caller can
	// present an upgrade path instead of a generic failure.
	ErrUsageLimitReached = errors.New("usage limit reached")

	// ErrUploadFailed is returned when an attachment upload fails. The whole
	// send is aborted and the optimistic message rolled back.
	ErrUploadFailed = errors.New("attachment upload failed")

	// ErrEmptyMessage is returned when a send carries neither content nor
	// attachments.
	ErrEmptyMessage = errors.New("message has no content or attachments")

	// ErrLoadSuperseded is returned when a load resolves after the caller has
	// already requested a different session. The stale result is discarded.
	ErrLoadSuperseded = errors.New("session load superseded")
)

// TransportError wraps a network or server failure on create, load or send.
// Optimistic state is rolled back before one of these surfaces; session
// identity is never corrupted by a failed call.
type TransportError struct {
	Op  string // operation that failed, e.g. "create session"
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err as a transport failure for the given operation.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
