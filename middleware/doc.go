// Package middleware adapts goIdem.Engine to net/http.
//
// [Idempotency] buffers the request body, resolves the caller through an
// identity.Resolver, captures the downstream response in memory and hands
// both to Engine.Do. Every response produced on a protected route carries the
// replay marker header.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls and Engine errors
// into HTTP status codes. All coordination decisions are delegated to
// Engine.Do.
//
// # What this package must NOT do
//
//   - Access Redis (Engine handles I/O).
//   - Stream a protected response before it has been captured.
//   - Echo request bodies or credentials in error responses.
package middleware
