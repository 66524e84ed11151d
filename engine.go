package goIdem

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goIdem/fingerprint"
	"github.com/MrEthical07/goIdem/internal/scope"
	"github.com/MrEthical07/goIdem/store"
	"go.uber.org/zap"
)

// Store is the shared atomic record store. [store.RedisStore] is the
// production implementation.
type Store interface {
	// TryReserve creates record under key only if key is absent and reports
	// whether this call created it.
	TryReserve(ctx context.Context, key string, record *store.Record, ttl time.Duration) (bool, error)
	// Read returns nil, nil when no record exists.
	Read(ctx context.Context, key string) (*store.Record, error)
	// Finalize overwrites the record and its expiry in one atomic step.
	Finalize(ctx context.Context, key string, record *store.Record, ttl time.Duration) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Engine coordinates idempotent execution of protected requests.
//
// Engine holds no per-key state in process; the store's set-if-absent is
// the only arbiter between concurrent duplicates. It is safe for concurrent
// use after [Builder.Build].
type Engine struct {
	config    Config
	store     Store
	protected map[string]struct{}
	audit     *auditDispatcher
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByEvent breaks AuditDropped down by event type.
func (e *Engine) AuditDroppedByEvent() map[string]uint64 {
	if e == nil || e.audit == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByEvent()
}

// MetricsSnapshot returns a copy of the coordinator counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return cloneConfig(e.config)
}

// Protects reports whether method goes through the coordinator.
func (e *Engine) Protects(method string) bool {
	if e == nil {
		return false
	}
	_, ok := e.protected[strings.ToUpper(method)]
	return ok
}

// Ping checks the store when it supports health checks.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	p, ok := e.store.(pinger)
	if !ok {
		return nil
	}
	err := p.Ping(ctx)
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Do runs handler at most once per scope key within the retention window.
//
// Requests whose method is not protected, or which carry no key while keys
// are optional, run the handler directly and report [StateBypassed].
// Otherwise Do either replays a completed response, rejects the request
// ([ErrPayloadMismatch], [ErrInFlightConflict], [ErrStoreUnavailable]), or
// wins the reservation, runs handler, and finalizes the captured response.
//
// Once handler has run, its response is returned even if finalizing fails.
func (e *Engine) Do(ctx context.Context, req Request, handler Handler) (*Result, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if handler == nil {
		return nil, errors.New("nil handler")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(req.Method)
	req.Method = method

	if !e.Protects(method) {
		return e.bypass(ctx, handler), nil
	}

	if req.IdempotencyKey == "" {
		if !e.config.RequireKey {
			return e.bypass(ctx, handler), nil
		}
		e.metricInc(MetricMissingKey)
		e.emitAudit(ctx, auditEventKeyMissing, req, StateNoRecord, ErrMissingIdempotencyKey)
		return nil, ErrMissingIdempotencyKey
	}
	if len(req.IdempotencyKey) > e.config.MaxKeyLength {
		e.metricInc(MetricInvalidKey)
		e.emitAudit(ctx, auditEventKeyInvalid, req, StateNoRecord, ErrInvalidIdempotencyKey)
		return nil, fmt.Errorf("%w: longer than %d bytes", ErrInvalidIdempotencyKey, e.config.MaxKeyLength)
	}
	if int64(len(req.Body)) > e.config.MaxBodyBytes {
		return nil, ErrRequestTooLarge
	}

	digest := fingerprint.Digest(method, req.Path, req.Body)
	key := scope.Build(e.config.Store.RedisPrefix, req.CallerID, method, req.Path, req.IdempotencyKey)
	log := e.logger.With(
		zap.String("scope_key", key),
		zap.String("method", method),
		zap.String("path", req.Path),
	)

	existing, err := e.store.Read(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrRecordCorrupt) {
			return nil, e.corrupt(ctx, log, req, err)
		}
		return nil, e.unavailable(ctx, log, req, "read", err)
	}

	if existing != nil {
		return e.resolveExisting(ctx, log, req, existing, digest, key)
	}

	createdAt := e.now().UTC()
	reserved, err := e.store.TryReserve(ctx, key, &store.Record{
		Status:        store.StatusProcessing,
		RequestDigest: digest,
		CreatedAt:     createdAt,
	}, e.config.TTL)
	if err != nil {
		return nil, e.unavailable(ctx, log, req, "reserve", err)
	}
	if !reserved {
		e.metricInc(MetricReservationLost)
		return nil, e.inFlight(ctx, log, req)
	}
	log.Debug("idempotency key reserved", zap.Stringer("state", StateReserved))

	resp := e.execute(withExecution(ctx, req.IdempotencyKey, key), log, handler)
	e.metricInc(MetricExecuted)

	// The fresh response carries exactly what a replay will carry.
	stored := FilterHeaders(resp.Header)
	resp.Header = SnapshotHeader(stored)

	e.finalize(ctx, log, key, &store.Record{
		Status:        store.StatusCompleted,
		RequestDigest: digest,
		CreatedAt:     createdAt,
		CompletedAt:   e.now().UTC(),
		Response: &store.Snapshot{
			StatusCode: resp.StatusCode,
			Headers:    stored,
			Body:       resp.Body,
		},
	})

	e.emitAudit(ctx, auditEventExecuted, req, StateExecuted, nil)

	return &Result{
		Response: resp,
		State:    StateExecuted,
		Digest:   digest,
		Key:      key,
	}, nil
}

func (e *Engine) resolveExisting(ctx context.Context, log *zap.Logger, req Request, existing *store.Record, digest, key string) (*Result, error) {
	if !existing.Completed() {
		return nil, e.inFlight(ctx, log, req)
	}
	if existing.Response == nil {
		return nil, e.corrupt(ctx, log, req, store.ErrRecordCorrupt)
	}
	if existing.RequestDigest != digest {
		e.metricInc(MetricPayloadMismatch)
		log.Debug("idempotency key reused with different payload",
			zap.Stringer("state", StateExistingCompletedMismatch))
		e.emitAudit(ctx, auditEventPayloadMismatch, req, StateExistingCompletedMismatch, ErrPayloadMismatch)
		return nil, ErrPayloadMismatch
	}

	e.metricInc(MetricReplayed)
	log.Debug("replaying completed response", zap.Stringer("state", StateExistingCompletedMatch))
	e.emitAudit(ctx, auditEventReplayed, req, StateExistingCompletedMatch, nil)

	snap := existing.Response
	body := make([]byte, len(snap.Body))
	copy(body, snap.Body)
	return &Result{
		Response: &Response{
			StatusCode: snap.StatusCode,
			Header:     SnapshotHeader(snap.Headers),
			Body:       body,
		},
		Replayed: true,
		State:    StateExistingCompletedMatch,
		Digest:   digest,
		Key:      key,
	}, nil
}

func (e *Engine) bypass(ctx context.Context, handler Handler) *Result {
	e.metricInc(MetricBypassed)
	return &Result{
		Response: e.execute(ctx, e.logger, handler),
		State:    StateBypassed,
	}
}

// execute runs handler and always yields a response.
func (e *Engine) execute(ctx context.Context, log *zap.Logger, handler Handler) *Response {
	start := time.Now()
	resp, err := handler(ctx)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricHandlerLatency, time.Since(start))
	}

	if err != nil {
		e.metricInc(MetricHandlerError)
		log.Error("handler returned error", zap.Error(err))
		return internalErrorResponse()
	}
	if resp == nil {
		e.metricInc(MetricHandlerError)
		log.Error("handler returned no response")
		return internalErrorResponse()
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	return resp
}

// finalize runs detached from request cancellation: the side effects already
// happened and the record must reflect them.
func (e *Engine) finalize(ctx context.Context, log *zap.Logger, key string, record *store.Record) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.FinalizeTimeout)
	defer cancel()

	err := e.store.Finalize(fctx, key, record, e.config.TTL)
	if err == nil {
		return
	}
	e.metricInc(MetricFinalizeFailed)
	if errors.Is(err, store.ErrReservationLost) {
		log.Warn("finalize skipped; reservation expired and the key has a new owner",
			zap.Duration("ttl", e.config.TTL),
		)
		return
	}
	log.Error("finalize idempotency record failed; key stays in progress until expiry",
		zap.Error(err),
		zap.Duration("ttl", e.config.TTL),
	)
}

func (e *Engine) inFlight(ctx context.Context, log *zap.Logger, req Request) error {
	e.metricInc(MetricInFlightConflict)
	log.Debug("idempotent request in progress", zap.Stringer("state", StateExistingProcessing))
	e.emitAudit(ctx, auditEventInFlight, req, StateExistingProcessing, ErrInFlightConflict)
	return &InFlightError{RetryAfter: e.config.RetryAfter}
}

// corrupt keeps the key blocked until it expires rather than re-executing.
func (e *Engine) corrupt(ctx context.Context, log *zap.Logger, req Request, cause error) error {
	e.metricInc(MetricRecordCorrupt)
	log.Warn("undecodable idempotency record; treating key as in progress", zap.Error(cause))
	return e.inFlight(ctx, log, req)
}

func (e *Engine) unavailable(ctx context.Context, log *zap.Logger, req Request, op string, cause error) error {
	e.metricInc(MetricStoreUnavailable)
	log.Error("idempotency store unavailable", zap.String("op", op), zap.Error(cause))
	e.emitAudit(ctx, auditEventStoreUnavailable, req, StateNoRecord, ErrStoreUnavailable)
	if errors.Is(cause, ErrStoreUnavailable) {
		return cause
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
}

func internalErrorResponse() *Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &Response{
		StatusCode: http.StatusInternalServerError,
		Header:     h,
		Body:       []byte(`{"error":"internal server error","code":"internal_error"}`),
	}
}
