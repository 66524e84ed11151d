// Package goIdem coordinates idempotent execution of mutating HTTP requests
// across many processes sharing one Redis.
//
// A client retry carrying the same idempotency key, from the same caller, for
// the same method and path, either replays the response captured the first
// time, is rejected while the first attempt is still running, or is rejected
// when the body differs from the first attempt. The handler's side effects
// run at most once per key within the retention window.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goIdem is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([Request], [Response], [Result], [MetricsSnapshot]). Canonical
// fingerprints live in fingerprint, record encoding and Redis access in store,
// scope key derivation in internal/scope. The HTTP adapter lives in
// middleware and caller identity resolution in identity.
//
// # What this package must NOT do
//
//   - Keep per-key state in process. The store's set-if-absent is the only
//     arbiter between duplicates.
//   - Delete records. Records leave the store by expiry only.
//   - Run a protected request unprotected when the store is unreachable.
//   - Log or audit request or response bodies.
//
// # Performance contract
//
// A replay costs one store round trip. A fresh execution costs three: read,
// reserve and finalize, plus the handler itself.
package goIdem
