package model

import "time"

// RedactedActor replaces the actor on anonymized change-log entries.
const RedactedActor = "redacted"

// ChangeLogEntry is an append-only audit record of one local mutation.
// Entries are never mutated or deleted, with one exception: a data-erasure
// request anonymizes them in place while keeping their existence and
// timestamp for audit continuity.
type ChangeLogEntry struct {
	ID        string         `json:"id"`
	RecordID  string         `json:"recordId"`
	Operation Operation      `json:"operation"`
	Changes   map[string]any `json:"changes"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	DeviceID  string         `json:"deviceId"`
}

// Anonymize strips personally identifying content from the entry. The
// id, record id, operation and timestamp stay intact.
func (e *ChangeLogEntry) Anonymize() {
	e.Actor = RedactedActor
	e.Changes = nil
}
