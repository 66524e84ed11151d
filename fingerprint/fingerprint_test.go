package fingerprint

import (
	"testing"
)

func TestNormalizeSortsKeysAndDropsWhitespace(t *testing.T) {
	a := Normalize([]byte(`{"a":1,"b":2}`))
	b := Normalize([]byte("{\n  \"b\": 2,\n  \"a\": 1\n}"))

	if string(a) != string(b) {
		t.Fatalf("expected equal canonical forms, got %q and %q", a, b)
	}
	if string(a) != `{"a":1,"b":2}` {
		t.Fatalf("unexpected canonical form %q", a)
	}
}

func TestNormalizeNestedObjects(t *testing.T) {
	got := Normalize([]byte(`{"z":{"y":[3,{"b":1,"a":2}],"x":null},"a":"<&>"}`))
	want := `{"a":"<&>","z":{"x":null,"y":[3,{"a":2,"b":1}]}}`
	if string(got) != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizeKeepsNumberLiterals(t *testing.T) {
	got := Normalize([]byte(`{"amount": 10.50, "big": 12345678901234567890}`))
	want := `{"amount":10.50,"big":12345678901234567890}`
	if string(got) != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizeOpaqueInputs(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "form body", raw: []byte("amount=10&currency=USD")},
		{name: "truncated json", raw: []byte(`{"amount":`)},
		{name: "two values", raw: []byte(`{"a":1}{"b":2}`)},
		{name: "trailing garbage", raw: []byte(`{"a":1} x`)},
		{name: "binary", raw: []byte{0xff, 0xfe, 0x00, 0x7b}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			if string(got) != string(tt.raw) {
				t.Fatalf("expected opaque passthrough %q, got %q", tt.raw, got)
			}
		})
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if got := Normalize(nil); len(got) != 0 {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestDigestEquivalentBodies(t *testing.T) {
	d1 := Digest("post", "/payments", []byte(`{"amount":"10","currency":"USD"}`))
	d2 := Digest("POST", "/payments", []byte(`{ "currency" : "USD", "amount" : "10" }`))
	if d1 != d2 {
		t.Fatalf("expected equal digests, got %s and %s", d1, d2)
	}
	if len(d1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(d1))
	}
}

func TestDigestDistinguishesInputs(t *testing.T) {
	base := Digest("POST", "/payments", []byte(`{"amount":"10"}`))

	others := []string{
		Digest("POST", "/payments", []byte(`{"amount":"20"}`)),
		Digest("PUT", "/payments", []byte(`{"amount":"10"}`)),
		Digest("POST", "/accounts", []byte(`{"amount":"10"}`)),
		Digest("POST", "/payments", nil),
	}
	for i, d := range others {
		if d == base {
			t.Fatalf("digest %d collided with base", i)
		}
	}
}

func TestDigestEmptyBodyDefined(t *testing.T) {
	if Digest("DELETE", "/payments/1", nil) != Digest("DELETE", "/payments/1", []byte{}) {
		t.Fatal("nil and empty bodies must hash identically")
	}
}
