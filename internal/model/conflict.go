package model

import "time"

// ConflictType classifies how local and remote copies of a record diverged.
type ConflictType string

const (
	// ConflictVersion means the remote is strictly newer and the local
	// side has no independent edit. Nothing to ask the user about.
	ConflictVersion ConflictType = "version"

	// ConflictConcurrent means both sides advanced past the last common
	// sync point.
	ConflictConcurrent ConflictType = "concurrent"

	// ConflictDeleted means one side soft-deleted the record while the
	// other kept editing it.
	ConflictDeleted ConflictType = "deleted"
)

// SyncConflict holds both sides of a divergent record. It exists only
// between detection and resolution.
type SyncConflict struct {
	RecordID   string          `json:"recordId"`
	Local      *SyncableRecord `json:"localVersion"`
	Remote     *SyncableRecord `json:"remoteVersion"`
	Type       ConflictType    `json:"conflictType"`
	DetectedAt time.Time       `json:"timestamp"`
}
