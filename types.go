package goIdem

import (
	"context"
	"net/http"
)

// Request is the coordinator's view of one HTTP request.
type Request struct {
	// CallerID scopes keys per client. Empty means anonymous.
	CallerID string
	Method   string
	Path     string
	// IdempotencyKey is the raw client key. Empty means the client sent none.
	IdempotencyKey string
	// Body is the full request body. The fingerprint is computed over it and
	// it must be the same bytes the handler sees.
	Body []byte
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Handler runs the business operation. A returned error is converted into a
// captured 500 response and finalized like any other outcome.
type Handler func(ctx context.Context) (*Response, error)

// Result is the outcome of [Engine.Do].
type Result struct {
	Response *Response
	// Replayed is true when Response came from a completed record.
	Replayed bool
	State    State
	// Digest and Key are empty for bypassed requests.
	Digest string
	Key    string
}

// State is the coordinator's position in the per-request state machine.
type State uint8

const (
	// StateNoRecord means no record existed for the scope key.
	StateNoRecord State = iota
	// StateExistingProcessing means another request holds the key.
	StateExistingProcessing
	// StateExistingCompletedMatch means a completed record matched the request.
	StateExistingCompletedMatch
	// StateExistingCompletedMismatch means the key was reused for a different request.
	StateExistingCompletedMismatch
	// StateReserved means this request won the reservation.
	StateReserved
	// StateExecuted means the handler ran and its response was captured.
	StateExecuted
	// StateBypassed means the request ran without coordination.
	StateBypassed
)

func (s State) String() string {
	switch s {
	case StateNoRecord:
		return "NO_RECORD"
	case StateExistingProcessing:
		return "EXISTING_PROCESSING"
	case StateExistingCompletedMatch:
		return "EXISTING_COMPLETED_MATCH"
	case StateExistingCompletedMismatch:
		return "EXISTING_COMPLETED_MISMATCH"
	case StateReserved:
		return "RESERVED"
	case StateExecuted:
		return "EXECUTED"
	case StateBypassed:
		return "BYPASSED"
	default:
		return "UNKNOWN"
	}
}
