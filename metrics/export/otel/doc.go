// Package otel publishes goIdem counters and histograms through OpenTelemetry.
//
// [NewExporter] registers an Int64ObservableCounter per coordinator counter
// and an Int64ObservableGauge per histogram bucket. A single callback reads
// [goIdem.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
