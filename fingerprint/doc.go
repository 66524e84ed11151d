// Package fingerprint computes request digests used to detect idempotency-key
// reuse across different payloads.
//
// # Canonical form
//
// A body that parses as exactly one JSON value is re-serialized with object
// keys sorted and no insignificant whitespace. Number literals keep their
// original text, so 1 and 1.0 remain distinct. Anything else (form bodies,
// binary uploads, invalid UTF-8, trailing garbage) is hashed verbatim.
//
// # What this package must NOT do
//
//   - Fail. Malformed input is opaque bytes, never an error.
//   - Access the store or know about scope keys.
package fingerprint
