package goIdem

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher moves audit events off the request path. Store outages go
// through their own lane and are never dropped; everything else honours
// DropIfFull and is counted per event type when discarded.
type auditDispatcher struct {
	cfg       AuditConfig
	sink      AuditSink
	events    chan AuditEvent
	outages   chan AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   map[string]*atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// auditDropOther collects drops for event types the engine does not emit.
const auditDropOther = "other"

var droppableAuditEvents = []string{
	auditEventExecuted,
	auditEventReplayed,
	auditEventPayloadMismatch,
	auditEventInFlight,
	auditEventKeyMissing,
	auditEventKeyInvalid,
	auditDropOther,
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	dropped := make(map[string]*atomic.Uint64, len(droppableAuditEvents))
	for _, name := range droppableAuditEvents {
		dropped[name] = new(atomic.Uint64)
	}

	d := &auditDispatcher{
		cfg:     cfg,
		sink:    sink,
		events:  make(chan AuditEvent, cfg.BufferSize),
		outages: make(chan AuditEvent, cfg.BufferSize),
		done:    make(chan struct{}),
		dropped: dropped,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for {
		// outage reports jump the queue
		select {
		case event := <-d.outages:
			d.sink.Emit(context.Background(), event)
			continue
		default:
		}

		select {
		case event := <-d.outages:
			d.sink.Emit(context.Background(), event)
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.outages:
			d.sink.Emit(context.Background(), event)
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit queues event. idempotency_store_unavailable always waits for space in
// its lane (bounded by ctx and Close). Other events are dropped and counted
// on a full queue when DropIfFull is set, and wait otherwise.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if event.EventType == auditEventStoreUnavailable {
		select {
		case d.outages <- event:
		case <-ctx.Done():
		case <-d.done:
		}
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.events <- event:
		case <-d.done:
		default:
			d.countDrop(event.EventType)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

func (d *auditDispatcher) countDrop(eventType string) {
	counter, ok := d.dropped[eventType]
	if !ok {
		counter = d.dropped[auditDropOther]
	}
	counter.Add(1)
}

// Close stops the worker after draining queued events. Safe to call twice.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the total number of events discarded on a full queue.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	var total uint64
	for _, counter := range d.dropped {
		total += counter.Load()
	}
	return total
}

// DroppedByEvent returns the non-zero drop counts keyed by event type.
func (d *auditDispatcher) DroppedByEvent() map[string]uint64 {
	out := make(map[string]uint64)
	if d == nil {
		return out
	}
	for name, counter := range d.dropped {
		if n := counter.Load(); n > 0 {
			out[name] = n
		}
	}
	return out
}
