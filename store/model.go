package store

import "time"

// Status is the lifecycle state of an idempotency record.
type Status string

const (
	// StatusProcessing marks a reserved record whose handler has not finished.
	StatusProcessing Status = "processing"
	// StatusCompleted marks a finalized record carrying a response snapshot.
	StatusCompleted Status = "completed"
)

// Snapshot is a captured HTTP response.
//
// Headers holds lower-cased names of the whitelisted subset only.
type Snapshot struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Record is the unit of coordination state stored under a scope key.
type Record struct {
	Status        Status
	RequestDigest string
	CreatedAt     time.Time
	// CompletedAt is zero while the record is processing.
	CompletedAt time.Time
	// Response is nil while the record is processing.
	Response *Snapshot
}

// Completed reports whether the record has been finalized.
func (r *Record) Completed() bool {
	return r != nil && r.Status == StatusCompleted
}
