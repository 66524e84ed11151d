// Package prometheus exposes goIdem metrics as a prometheus.Collector.
//
// [NewCollector] accepts a [goIdem.Engine]; [Handler] serves it through
// promhttp from a private registry. Counter names are goidem_*_total and the
// single histogram is goidem_handler_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers register
//     the Collector or mount the Handler.
//   - Mutate engine state.
package prometheus
