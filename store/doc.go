// Package store persists idempotency records in Redis.
//
// # Record layout
//
// One Redis string per scope key holding a versioned JSON record:
//
//	{"v":1,"status":"completed","request_digest":"…","created_at":"…",
//	 "completed_at":"…","response":{"status_code":201,"headers":{…},"body_b64":"…"}}
//
// # Atomicity
//
//   - TryReserve is a single SET NX PX. It is the only way a record is created.
//   - Finalize writes value and expiry in one step (Lua SET PX, or SET PX),
//     so a completed record never exists without an expiry.
//   - Nothing here deletes records; Redis expiry is the only destructor.
//
// # What this package must NOT do
//
//   - Import goIdem or decide replay/conflict outcomes.
//   - Cache records in process memory.
package store
