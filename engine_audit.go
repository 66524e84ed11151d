package goIdem

import (
	"context"
	"errors"
)

const (
	auditEventExecuted         = "idempotency_executed"
	auditEventReplayed         = "idempotency_replayed"
	auditEventPayloadMismatch  = "idempotency_payload_mismatch"
	auditEventInFlight         = "idempotency_in_flight"
	auditEventStoreUnavailable = "idempotency_store_unavailable"
	auditEventKeyMissing       = "idempotency_key_missing"
	auditEventKeyInvalid       = "idempotency_key_invalid"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrKeyMissing       AuditErrorCode = "idempotency_key_missing"
	auditErrKeyInvalid       AuditErrorCode = "idempotency_key_invalid"
	auditErrKeyReused        AuditErrorCode = "idempotency_key_reused"
	auditErrInProgress       AuditErrorCode = "request_in_progress"
	auditErrStoreUnavailable AuditErrorCode = "idempotency_store_unavailable"
	auditErrTooLarge         AuditErrorCode = "request_too_large"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(ctx context.Context, eventType string, req Request, state State, err error) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:      e.now().UTC(),
		EventType:      eventType,
		CallerID:       req.CallerID,
		Method:         req.Method,
		Path:           req.Path,
		IdempotencyKey: req.IdempotencyKey,
		State:          state.String(),
		Success:        err == nil,
	}
	if event.IdempotencyKey != "" && len(event.IdempotencyKey) > e.config.MaxKeyLength {
		event.IdempotencyKey = event.IdempotencyKey[:e.config.MaxKeyLength]
		event.Metadata = map[string]string{"key_truncated": "true"}
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrMissingIdempotencyKey):
		return auditErrKeyMissing
	case errors.Is(err, ErrInvalidIdempotencyKey):
		return auditErrKeyInvalid
	case errors.Is(err, ErrPayloadMismatch):
		return auditErrKeyReused
	case errors.Is(err, ErrInFlightConflict):
		return auditErrInProgress
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrRequestTooLarge):
		return auditErrTooLarge
	default:
		return auditErrInternal
	}
}
