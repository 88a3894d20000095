package model

import (
	"time"
)

// SyncStatus tracks where a record sits in the sync lifecycle.
type SyncStatus string

const (
	StatusPending  SyncStatus = "pending"
	StatusSyncing  SyncStatus = "syncing"
	StatusSynced   SyncStatus = "synced"
	StatusConflict SyncStatus = "conflict"
)

// Operation is the kind of local mutation recorded in the change log.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// DeletedFlag marks a soft-deleted payload. Records are never physically
// removed, so sync history survives the delete.
const DeletedFlag = "_deleted"

// SyncableRecord wraps a payload with the versioning and integrity
// metadata the sync protocol needs.
type SyncableRecord struct {
	ID           string         `json:"id"`
	Collection   string         `json:"collection"`
	Payload      map[string]any `json:"payload"`
	Version      int            `json:"version"`
	LastModified time.Time      `json:"lastModified"`
	Checksum     string         `json:"checksum"`
	SyncStatus   SyncStatus     `json:"syncStatus"`
	DeviceID     string         `json:"deviceId"`

	// LastSyncedVersion is the last version the remote acknowledged.
	// The conflict detector uses it as the last common sync point.
	LastSyncedVersion int `json:"lastSyncedVersion"`
}

// Deleted reports whether the payload carries the soft-delete flag.
func (r *SyncableRecord) Deleted() bool {
	if r == nil || r.Payload == nil {
		return false
	}
	deleted, _ := r.Payload[DeletedFlag].(bool)
	return deleted
}

// Clone returns a copy with its own payload map, so callers can mutate
// the copy without reaching into stored state.
func (r *SyncableRecord) Clone() *SyncableRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Payload = ClonePayload(r.Payload)
	return &out
}

// ClonePayload shallow-copies a payload map.
func ClonePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}
