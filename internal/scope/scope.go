// Package scope builds the Redis key under which an idempotency record lives.
//
// Keys are length-prefixed per field so that no choice of caller, path or
// client key can forge another scope:
//
//	<prefix>:<len>:<caller>:<len>:<METHOD>:<len>:<path>:<len>:<key>
package scope

import (
	"strconv"
	"strings"
)

// AnonymousCaller is used when the request carries no caller identity.
const AnonymousCaller = "anon"

// DefaultPrefix is used when Build receives an empty prefix.
const DefaultPrefix = "idem"

// Build derives the store key for one idempotent operation.
func Build(prefix, callerID, method, path, idempotencyKey string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if callerID == "" {
		callerID = AnonymousCaller
	}
	method = strings.ToUpper(method)

	var b strings.Builder
	b.Grow(len(prefix) + len(callerID) + len(method) + len(path) + len(idempotencyKey) + 24)
	b.WriteString(prefix)
	writeField(&b, callerID)
	writeField(&b, method)
	writeField(&b, path)
	writeField(&b, idempotencyKey)
	return b.String()
}

func writeField(b *strings.Builder, field string) {
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(len(field)))
	b.WriteByte(':')
	b.WriteString(field)
}
