package store

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeDecodeCompletedRecord(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := created.Add(250 * time.Millisecond)

	data, err := Encode(&Record{
		Status:        StatusCompleted,
		RequestDigest: "d1",
		CreatedAt:     created,
		CompletedAt:   completed,
		Response: &Snapshot{
			StatusCode: 201,
			Headers:    map[string]string{"location": "/payments/pay_1"},
			Body:       []byte(`{"id":"pay_1"}`),
		},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	r, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !r.Completed() {
		t.Fatalf("expected completed record, got %q", r.Status)
	}
	if !r.CreatedAt.Equal(created) || !r.CompletedAt.Equal(completed) {
		t.Fatalf("timestamps not preserved: %v %v", r.CreatedAt, r.CompletedAt)
	}
	if r.Response.Headers["location"] != "/payments/pay_1" {
		t.Fatalf("unexpected headers %v", r.Response.Headers)
	}
}

func TestEncodeProcessingOmitsResponse(t *testing.T) {
	data, err := Encode(&Record{
		Status:        StatusProcessing,
		RequestDigest: "d1",
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	r, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if r.Response != nil || !r.CompletedAt.IsZero() {
		t.Fatalf("processing record must not carry completion data: %+v", r)
	}
}

func TestEncodeRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
	}{
		{name: "nil", record: nil},
		{name: "missing digest", record: &Record{Status: StatusProcessing}},
		{name: "unknown status", record: &Record{Status: "done", RequestDigest: "d"}},
		{name: "completed without response", record: &Record{Status: StatusCompleted, RequestDigest: "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.record); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDecodeCorrupt(t *testing.T) {
	inputs := []string{
		`not json`,
		`{"v":2,"status":"processing","request_digest":"d"}`,
		`{"v":1,"status":"processing"}`,
		`{"v":1,"status":"paused","request_digest":"d"}`,
		`{"v":1,"status":"completed","request_digest":"d"}`,
	}
	for _, in := range inputs {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrRecordCorrupt) {
			t.Fatalf("input %q: expected ErrRecordCorrupt, got %v", in, err)
		}
	}
}
