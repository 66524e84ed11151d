package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type snapshotWire struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	BodyB64    string            `json:"body_b64"`
}

// EncodeSnapshot serializes a response snapshot to the store's text format.
// The body is base64 encoded so binary payloads survive byte-exact.
func EncodeSnapshot(s Snapshot) (string, error) {
	w, err := toSnapshotWire(s)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeSnapshot parses a value produced by EncodeSnapshot.
func DecodeSnapshot(value string) (Snapshot, error) {
	var w snapshotWire
	if err := json.Unmarshal([]byte(value), &w); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	return fromSnapshotWire(w)
}

func toSnapshotWire(s Snapshot) (snapshotWire, error) {
	if !validStatusCode(s.StatusCode) {
		return snapshotWire{}, fmt.Errorf("invalid snapshot status code %d", s.StatusCode)
	}

	headers := make(map[string]string, len(s.Headers))
	for k, v := range s.Headers {
		headers[strings.ToLower(k)] = v
	}

	return snapshotWire{
		StatusCode: s.StatusCode,
		Headers:    headers,
		BodyB64:    base64.StdEncoding.EncodeToString(s.Body),
	}, nil
}

func fromSnapshotWire(w snapshotWire) (Snapshot, error) {
	if !validStatusCode(w.StatusCode) {
		return Snapshot{}, fmt.Errorf("%w: status code %d", ErrRecordCorrupt, w.StatusCode)
	}

	body, err := base64.StdEncoding.DecodeString(w.BodyB64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: body: %v", ErrRecordCorrupt, err)
	}

	headers := w.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	return Snapshot{
		StatusCode: w.StatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}

func validStatusCode(code int) bool {
	return code >= 100 && code <= 999
}

var errSnapshotMissing = errors.New("completed record without response")
