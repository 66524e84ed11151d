package goIdem

import (
	"errors"
	"time"

	"github.com/MrEthical07/goIdem/store"
)

var (
	// ErrMissingIdempotencyKey is returned when a protected request carries no idempotency key and keys are required.
	ErrMissingIdempotencyKey = errors.New("missing idempotency key")
	// ErrInvalidIdempotencyKey is returned when the idempotency key exceeds the configured length.
	ErrInvalidIdempotencyKey = errors.New("invalid idempotency key")
	// ErrPayloadMismatch is returned when a completed key is reused with a different request.
	ErrPayloadMismatch = errors.New("idempotency key reused with different payload")
	// ErrInFlightConflict is returned when another request holding the same key is still processing.
	ErrInFlightConflict = errors.New("idempotent request still processing")
	// ErrStoreUnavailable is returned when the shared store cannot be consulted. The request is never run unprotected.
	ErrStoreUnavailable = store.ErrStoreUnavailable
	// ErrRequestTooLarge is returned when a request body exceeds MaxBodyBytes.
	ErrRequestTooLarge = errors.New("request body too large")
	// ErrEngineNotReady is returned by a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// InFlightError is the concrete error behind ErrInFlightConflict. It carries
// the advisory wait before the client should retry.
type InFlightError struct {
	RetryAfter time.Duration
}

func (e *InFlightError) Error() string {
	return ErrInFlightConflict.Error()
}

func (e *InFlightError) Unwrap() error {
	return ErrInFlightConflict
}

// RetryAfterHint extracts the retry hint from an in-flight conflict error.
func RetryAfterHint(err error) (time.Duration, bool) {
	var inflight *InFlightError
	if errors.As(err, &inflight) {
		return inflight.RetryAfter, true
	}
	return 0, false
}
