// Package identity resolves the caller identity that scopes idempotency keys.
//
// Two clients that pick the same idempotency key must never see each other's
// responses, so every key is scoped by the identity returned here. An empty
// identity means anonymous; all anonymous callers share one scope.
//
// # Resolvers
//
//   - [APIKey] hashes a static API key header.
//   - [BearerJWT] verifies an Authorization bearer token and uses its subject.
//   - [Chain] tries resolvers in order.
//
// # What this package must NOT do
//
//   - Return raw credentials. Identities end up in store keys and logs.
//   - Fall back to anonymous when a presented credential is invalid.
package identity
