package goIdem

import (
	"net/http"
	"sort"
	"strings"
)

// replayableHeaders is the whitelist of response headers kept in a snapshot.
// Anything else (Set-Cookie, hop-by-hop, tracing) is dropped.
var replayableHeaders = map[string]struct{}{
	"content-type":        {},
	"cache-control":       {},
	"content-disposition": {},
	"content-language":    {},
	"etag":                {},
	"expires":             {},
	"last-modified":       {},
	"location":            {},
	"retry-after":         {},
}

// ReplayableHeaders lists the header names a snapshot may carry, sorted.
func ReplayableHeaders() []string {
	out := make([]string, 0, len(replayableHeaders))
	for name := range replayableHeaders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FilterHeaders keeps the whitelisted subset of h, keyed by lower-cased name.
// Repeated values are joined with ", ".
func FilterHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for name, values := range h {
		lower := strings.ToLower(name)
		if _, ok := replayableHeaders[lower]; !ok || len(values) == 0 {
			continue
		}
		out[lower] = strings.Join(values, ", ")
	}
	return out
}

// SnapshotHeader rebuilds an http.Header from the stored whitelisted subset.
func SnapshotHeader(stored map[string]string) http.Header {
	h := make(http.Header, len(stored))
	for name, value := range stored {
		h.Set(name, value)
	}
	return h
}
