package goIdem

import (
	"net/http"
	"testing"
)

func TestFilterHeadersKeepsWhitelistLowercased(t *testing.T) {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Location", "/payments/pay_1")
	h.Add("Cache-Control", "no-store")
	h.Add("Cache-Control", "private")
	h.Set("Set-Cookie", "sid=1")
	h.Set("Connection", "keep-alive")

	got := FilterHeaders(h)
	if len(got) != 3 {
		t.Fatalf("expected 3 headers, got %v", got)
	}
	if got["content-type"] != "application/json" || got["location"] != "/payments/pay_1" {
		t.Fatalf("unexpected headers: %v", got)
	}
	if got["cache-control"] != "no-store, private" {
		t.Fatalf("expected joined values, got %q", got["cache-control"])
	}
	if _, ok := got["set-cookie"]; ok {
		t.Fatal("set-cookie must never be stored")
	}
}

func TestReplayableHeadersSorted(t *testing.T) {
	names := ReplayableHeaders()
	if len(names) != 9 {
		t.Fatalf("expected 9 names, got %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("not sorted: %v", names)
		}
	}
}
