package offline

import (
	"context"
	"fmt"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/integrity"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

// Resolution is the strategy a caller picks to settle a conflict.
type Resolution string

const (
	// ResolutionLocal keeps the local payload verbatim.
	ResolutionLocal Resolution = "local"
	// ResolutionRemote keeps the remote payload verbatim.
	ResolutionRemote Resolution = "remote"
	// ResolutionMerge keeps a caller-supplied merged payload.
	ResolutionMerge Resolution = "merge"
)

// Classify decides how local and remote copies of a record diverged.
// LastSyncedVersion is the last common sync point: if both sides moved
// past it, the edits were concurrent; if only the remote did, the local
// copy is merely stale.
func Classify(local, remote *model.SyncableRecord) model.ConflictType {
	if local.Deleted() != remote.Deleted() {
		return model.ConflictDeleted
	}
	if remote.Version > local.LastSyncedVersion && local.Version > local.LastSyncedVersion {
		return model.ConflictConcurrent
	}
	return model.ConflictVersion
}

// MarkConflict puts the local record into conflict status and stores
// both sides in the open-conflict set until someone resolves it. When a
// save raced the cycle and the stored record is no longer the version
// that conflicted, nothing is recorded and (nil, nil) comes back; the
// next cycle re-detects against the newer version.
func (s *DataStore) MarkConflict(ctx context.Context, local, remote *model.SyncableRecord, conflictType model.ConflictType) (*model.SyncConflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.kv.Get(ctx, local.Collection, local.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.Version != local.Version {
		return nil, nil
	}

	local.SyncStatus = model.StatusConflict
	if err := s.kv.Put(ctx, local.Collection, local.ID, local); err != nil {
		return nil, err
	}

	conflict := &model.SyncConflict{
		RecordID:   local.ID,
		Local:      local.Clone(),
		Remote:     remote.Clone(),
		Type:       conflictType,
		DetectedAt: s.clock.Now(),
	}
	s.conflicts[local.ID] = conflict

	return conflict, nil
}

// Conflict returns the open conflict for a record, or nil.
func (s *DataStore) Conflict(recordID string) *model.SyncConflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflicts[recordID]
}

// OpenConflicts lists every conflict awaiting resolution.
func (s *DataStore) OpenConflicts() []*model.SyncConflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.SyncConflict, 0, len(s.conflicts))
	for _, conflict := range s.conflicts {
		out = append(out, conflict)
	}
	return out
}

// ResolveConflict settles an open conflict. Whatever the strategy, the
// winner is written as a fresh pending version numbered past both sides,
// so the next cycle can push it without tripping the same conflict, and
// the entry leaves the open set. Resolving an unknown record id is a
// no-op. merged is only consulted for ResolutionMerge.
func (s *DataStore) ResolveConflict(ctx context.Context, recordID string, strategy Resolution, merged map[string]any) error {
	s.mu.Lock()

	conflict, ok := s.conflicts[recordID]
	if !ok {
		s.mu.Unlock()
		return nil
	}

	var resolved *model.SyncableRecord
	switch strategy {
	case ResolutionLocal:
		resolved = conflict.Local.Clone()
	case ResolutionRemote:
		resolved = conflict.Remote.Clone()
	case ResolutionMerge:
		resolved = conflict.Local.Clone()
		if merged != nil {
			resolved.Payload = model.ClonePayload(merged)
		}
	default:
		s.mu.Unlock()
		return fmt.Errorf("unknown resolution strategy %q", strategy)
	}

	resolved.ID = conflict.RecordID
	resolved.Collection = conflict.Local.Collection
	resolved.Version = maxVersion(conflict) + 1
	resolved.LastModified = s.clock.Now()
	resolved.Checksum = integrity.Checksum(resolved.Payload)
	resolved.SyncStatus = model.StatusPending
	resolved.DeviceID = s.deviceID
	resolved.LastSyncedVersion = conflict.Local.LastSyncedVersion

	if err := s.kv.Put(ctx, resolved.Collection, resolved.ID, resolved); err != nil {
		s.mu.Unlock()
		return err
	}

	delete(s.conflicts, recordID)
	s.enqueueLocked(resolved.Collection, resolved.ID)
	onDirty := s.onDirty
	s.mu.Unlock()

	if onDirty != nil {
		onDirty()
	}
	return nil
}

func maxVersion(conflict *model.SyncConflict) int {
	if conflict.Local.Version > conflict.Remote.Version {
		return conflict.Local.Version
	}
	return conflict.Remote.Version
}
