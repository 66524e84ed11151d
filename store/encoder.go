package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const recordFormatVersionCurrent = 1

type recordWire struct {
	Version       int           `json:"v"`
	Status        Status        `json:"status"`
	RequestDigest string        `json:"request_digest"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Response      *snapshotWire `json:"response,omitempty"`
}

// Encode serializes a record for storage.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil record")
	}
	if r.RequestDigest == "" {
		return nil, errors.New("record request digest is empty")
	}

	w := recordWire{
		Version:       recordFormatVersionCurrent,
		Status:        r.Status,
		RequestDigest: r.RequestDigest,
		CreatedAt:     r.CreatedAt.UTC(),
	}

	switch r.Status {
	case StatusProcessing:
	case StatusCompleted:
		if r.Response == nil {
			return nil, errSnapshotMissing
		}
		completed := r.CompletedAt.UTC()
		w.CompletedAt = &completed
		snap, err := toSnapshotWire(*r.Response)
		if err != nil {
			return nil, err
		}
		w.Response = &snap
	default:
		return nil, fmt.Errorf("unknown record status %q", r.Status)
	}

	return json.Marshal(w)
}

// Decode parses a stored record. Any structural problem is reported as
// ErrRecordCorrupt.
func Decode(data []byte) (*Record, error) {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	if w.Version != recordFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrRecordCorrupt, w.Version)
	}
	if w.RequestDigest == "" {
		return nil, fmt.Errorf("%w: missing request digest", ErrRecordCorrupt)
	}

	r := &Record{
		Status:        w.Status,
		RequestDigest: w.RequestDigest,
		CreatedAt:     w.CreatedAt,
	}

	switch w.Status {
	case StatusProcessing:
	case StatusCompleted:
		if w.Response == nil {
			return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, errSnapshotMissing)
		}
		snap, err := fromSnapshotWire(*w.Response)
		if err != nil {
			return nil, err
		}
		r.Response = &snap
		if w.CompletedAt != nil {
			r.CompletedAt = *w.CompletedAt
		}
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrRecordCorrupt, w.Status)
	}

	return r, nil
}
