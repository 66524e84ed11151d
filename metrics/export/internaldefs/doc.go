// Package internaldefs holds the metric names and bucket boundaries shared by
// exporter implementations.
//
// Both the Prometheus and OTel exporters read these definitions so that they
// publish identical names and buckets. Changes here affect all exporters at
// once.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
