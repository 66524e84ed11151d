package goIdem

import "context"

type idempotencyKeyContextKey struct{}
type scopeKeyContextKey struct{}

// withExecution attaches the client key and scope key to the context handed
// to the handler.
func withExecution(ctx context.Context, idempotencyKey, scopeKey string) context.Context {
	ctx = context.WithValue(ctx, idempotencyKeyContextKey{}, idempotencyKey)
	return context.WithValue(ctx, scopeKeyContextKey{}, scopeKey)
}

// IdempotencyKeyFromContext returns the client idempotency key of the
// request being executed. Handlers can forward it to downstream providers
// that accept their own idempotency keys.
func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	key, _ := ctx.Value(idempotencyKeyContextKey{}).(string)
	return key, key != ""
}

// ScopeKeyFromContext returns the store key guarding the current execution.
func ScopeKeyFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	key, _ := ctx.Value(scopeKeyContextKey{}).(string)
	return key, key != ""
}
