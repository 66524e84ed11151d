package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// DefaultAPIKeyHeader is the header read by the default resolver.
const DefaultAPIKeyHeader = "X-API-Key"

// ErrInvalidIdentity is returned when a request presents a credential that
// cannot be verified.
var ErrInvalidIdentity = errors.New("invalid caller identity")

// Resolver derives the caller identity of a request.
// It returns "" with a nil error when the request carries no credential.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(r *http.Request) (string, error)

// Resolve calls f(r).
func (f ResolverFunc) Resolve(r *http.Request) (string, error) {
	return f(r)
}

// Default resolves callers from the X-API-Key header.
func Default() Resolver {
	return APIKey(DefaultAPIKeyHeader)
}

// Anonymous resolves every request to the anonymous caller.
func Anonymous() Resolver {
	return ResolverFunc(func(*http.Request) (string, error) {
		return "", nil
	})
}

// APIKey identifies callers by the value of header. The value is hashed so
// the secret never reaches the store or the logs.
func APIKey(header string) Resolver {
	header = http.CanonicalHeaderKey(strings.TrimSpace(header))
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return ResolverFunc(func(r *http.Request) (string, error) {
		value := strings.TrimSpace(r.Header.Get(header))
		if value == "" {
			return "", nil
		}
		return HashAPIKey(value), nil
	})
}

// HashAPIKey returns the identity APIKey derives from a raw key.
func HashAPIKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return "key:" + hex.EncodeToString(sum[:16])
}

// Chain returns the first non-empty identity. An error from any resolver
// stops the chain.
func Chain(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(r *http.Request) (string, error) {
		for _, res := range resolvers {
			if res == nil {
				continue
			}
			id, err := res.Resolve(r)
			if err != nil {
				return "", err
			}
			if id != "" {
				return id, nil
			}
		}
		return "", nil
	})
}
