package internaldefs

import (
	goIdem "github.com/MrEthical07/goIdem"
)

// CounterDef binds a core counter to its exported name.
type CounterDef struct {
	ID   goIdem.MetricID
	Name string
	Help string
}

// HistogramDef binds a core histogram to its exported name.
type HistogramDef struct {
	ID   goIdem.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goIdem.MetricExecuted, Name: "goidem_executed_total", Help: "Handler executions under a won reservation."},
	{ID: goIdem.MetricReplayed, Name: "goidem_replayed_total", Help: "Responses replayed from completed records."},
	{ID: goIdem.MetricPayloadMismatch, Name: "goidem_payload_mismatch_total", Help: "Keys reused with a different request payload."},
	{ID: goIdem.MetricInFlightConflict, Name: "goidem_in_flight_conflict_total", Help: "Requests rejected while the key was processing."},
	{ID: goIdem.MetricReservationLost, Name: "goidem_reservation_lost_total", Help: "Reservations lost to a concurrent duplicate."},
	{ID: goIdem.MetricMissingKey, Name: "goidem_missing_key_total", Help: "Protected requests rejected for lacking a key."},
	{ID: goIdem.MetricInvalidKey, Name: "goidem_invalid_key_total", Help: "Requests rejected for an invalid key."},
	{ID: goIdem.MetricBypassed, Name: "goidem_bypassed_total", Help: "Requests executed without coordination."},
	{ID: goIdem.MetricStoreUnavailable, Name: "goidem_store_unavailable_total", Help: "Requests failed because the store was unreachable."},
	{ID: goIdem.MetricFinalizeFailed, Name: "goidem_finalize_failed_total", Help: "Executed requests whose record could not be finalized."},
	{ID: goIdem.MetricRecordCorrupt, Name: "goidem_record_corrupt_total", Help: "Undecodable records encountered."},
	{ID: goIdem.MetricHandlerError, Name: "goidem_handler_error_total", Help: "Handlers that failed instead of producing a response."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goIdem.MetricHandlerLatency, Name: "goidem_handler_latency_seconds", Help: "Handler execution latency."},
}

// AuditDroppedName is the counter for audit events dropped on backpressure.
const AuditDroppedName = "goidem_audit_dropped_total"

// AuditDroppedHelp documents AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// core bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBounds are the bucket labels including +Inf.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are metric-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling short input.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
