// Package offline implements the offline-first record store, its pending
// sync queue, conflict resolution and the sync orchestrator.
package offline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/integrity"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/storage"
)

// Config carries the device identity for a DataStore. Zero values get
// sensible defaults: a random device id, the system clock and a generic
// actor name for the change log.
type Config struct {
	DeviceID string
	Actor    string
	Clock    model.Clock
}

// DataStore is the single shared mutable resource on a device. All
// mutation funnels through Save/Delete/ResolveConflict, which serialize
// on one mutex so version and checksum computation stay atomic with the
// write they accompany.
type DataStore struct {
	kv       storage.KeyValueStore
	clock    model.Clock
	deviceID string
	actor    string

	mu        sync.Mutex
	queue     []queueKey
	changeLog []model.ChangeLogEntry
	conflicts map[string]*model.SyncConflict

	onChange func(model.ChangeLogEntry)
	onDirty  func()
}

type queueKey struct {
	Collection string
	RecordID   string
}

// IntegrityReport lists the records whose stored checksum no longer
// matches their payload.
type IntegrityReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func New(kv storage.KeyValueStore, cfg Config) *DataStore {
	if cfg.DeviceID == "" {
		cfg.DeviceID = "device_" + uuid.NewString()
	}
	if cfg.Actor == "" {
		cfg.Actor = "local_user"
	}
	if cfg.Clock == nil {
		cfg.Clock = model.SystemClock{}
	}

	return &DataStore{
		kv:        kv,
		clock:     cfg.Clock,
		deviceID:  cfg.DeviceID,
		actor:     cfg.Actor,
		conflicts: make(map[string]*model.SyncConflict),
	}
}

// DeviceID returns the stable per-device identifier.
func (s *DataStore) DeviceID() string { return s.deviceID }

// OnChange registers an observer for new change-log entries. One
// observer, original-flavored; the caller fans out if it needs more.
func (s *DataStore) OnChange(fn func(model.ChangeLogEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// OnDirty registers the orchestrator's wake-up callback, invoked after
// every local mutation.
func (s *DataStore) OnDirty(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDirty = fn
}

// Save validates and persists a payload as a new record version with
// status pending, enqueues it for sync and appends a change-log entry.
// The record id comes from payload["id"] when present, otherwise a new
// one is generated. Returns the record id.
func (s *DataStore) Save(ctx context.Context, collection string, payload map[string]any, op model.Operation) (string, error) {
	if err := model.ValidatePayload(collection, payload); err != nil {
		return "", err
	}
	payload = model.ClonePayload(payload)

	s.mu.Lock()

	id, _ := payload["id"].(string)
	if id == "" {
		id = uuid.NewString()
		payload["id"] = id
	}

	existing, err := s.kv.Get(ctx, collection, id)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}

	record := &model.SyncableRecord{
		ID:           id,
		Collection:   collection,
		Payload:      payload,
		Version:      integrity.NextVersion(existing),
		LastModified: s.clock.Now(),
		Checksum:     integrity.Checksum(payload),
		SyncStatus:   model.StatusPending,
		DeviceID:     s.deviceID,
	}
	if existing != nil {
		record.LastSyncedVersion = existing.LastSyncedVersion
	}

	if err := s.kv.Put(ctx, collection, id, record); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.enqueueLocked(collection, id)
	// A fresh save supersedes any conflict detected against an older
	// version; resolving it now would resurrect detection-time payloads.
	delete(s.conflicts, id)

	entry := model.ChangeLogEntry{
		ID:        uuid.NewString(),
		RecordID:  id,
		Operation: op,
		Changes:   model.ClonePayload(payload),
		Timestamp: record.LastModified,
		Actor:     s.actor,
		DeviceID:  s.deviceID,
	}
	s.changeLog = append(s.changeLog, entry)

	onChange, onDirty := s.onChange, s.onDirty
	s.mu.Unlock()

	if onChange != nil {
		onChange(entry)
	}
	if onDirty != nil {
		onDirty()
	}
	return id, nil
}

// Get returns the payload for id, or nil when the record is absent or
// soft-deleted.
func (s *DataStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	record, err := s.kv.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Deleted() {
		return nil, nil
	}
	return model.ClonePayload(record.Payload), nil
}

// Query returns the payloads matching every non-nil filter key by deep
// equality, so slice and map values (symptoms lists and the like) filter
// without panicking. Soft-deleted records never match.
func (s *DataStore) Query(ctx context.Context, collection string, filter map[string]any) ([]map[string]any, error) {
	records, err := s.kv.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	matching := lo.Filter(records, func(record *model.SyncableRecord, _ int) bool {
		if record.Deleted() {
			return false
		}
		for key, want := range filter {
			if want == nil {
				continue
			}
			if !reflect.DeepEqual(record.Payload[key], want) {
				return false
			}
		}
		return true
	})

	return lo.Map(matching, func(record *model.SyncableRecord, _ int) map[string]any {
		return model.ClonePayload(record.Payload)
	}), nil
}

// Delete soft-deletes a record: the payload gets the deletion flag, the
// version bumps and the record goes back to pending so the delete syncs
// like any other edit. Deleting a missing or already-deleted record is a
// no-op.
func (s *DataStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()

	record, err := s.kv.Get(ctx, collection, id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if record == nil || record.Deleted() {
		s.mu.Unlock()
		return nil
	}

	record.Payload[model.DeletedFlag] = true
	record.Version++
	record.LastModified = s.clock.Now()
	record.Checksum = integrity.Checksum(record.Payload)
	record.SyncStatus = model.StatusPending

	if err := s.kv.Put(ctx, collection, id, record); err != nil {
		s.mu.Unlock()
		return err
	}
	s.enqueueLocked(collection, id)
	delete(s.conflicts, id)

	entry := model.ChangeLogEntry{
		ID:        uuid.NewString(),
		RecordID:  id,
		Operation: model.OpDelete,
		Changes:   map[string]any{model.DeletedFlag: true},
		Timestamp: record.LastModified,
		Actor:     s.actor,
		DeviceID:  s.deviceID,
	}
	s.changeLog = append(s.changeLog, entry)

	onChange, onDirty := s.onChange, s.onDirty
	s.mu.Unlock()

	if onChange != nil {
		onChange(entry)
	}
	if onDirty != nil {
		onDirty()
	}
	return nil
}

// ValidateIntegrity recomputes every stored checksum and reports the ids
// whose stored digest disagrees. A non-empty report is the degraded-mode
// signal for persistent storage trouble.
func (s *DataStore) ValidateIntegrity(ctx context.Context, collection string) (IntegrityReport, error) {
	records, err := s.kv.GetAll(ctx, collection)
	if err != nil {
		return IntegrityReport{}, err
	}

	report := IntegrityReport{Valid: true, Errors: []string{}}
	for _, record := range records {
		if integrity.Checksum(record.Payload) != record.Checksum {
			report.Errors = append(report.Errors, fmt.Sprintf("checksum mismatch for record %s", record.ID))
		}
	}
	report.Valid = len(report.Errors) == 0
	return report, nil
}

// PendingRecords returns the records awaiting sync, in enqueue order for
// retry fairness. Pending records that are not on the in-memory queue
// (e.g. restored from a backup) come last.
func (s *DataStore) PendingRecords(ctx context.Context, collection string) ([]*model.SyncableRecord, error) {
	records, err := s.kv.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	pending := lo.Filter(records, func(record *model.SyncableRecord, _ int) bool {
		return record.SyncStatus == model.StatusPending
	})

	s.mu.Lock()
	position := make(map[string]int, len(s.queue))
	for i, key := range s.queue {
		if key.Collection == collection {
			position[key.RecordID] = i
		}
	}
	s.mu.Unlock()

	ordered := make([]*model.SyncableRecord, 0, len(pending))
	tail := make([]*model.SyncableRecord, 0)
	for _, record := range pending {
		if _, queued := position[record.ID]; queued {
			ordered = append(ordered, record)
		} else {
			tail = append(tail, record)
		}
	}
	sortByPosition(ordered, position)
	return append(ordered, tail...), nil
}

// ResetInterrupted moves records stuck in syncing back to pending.
// Syncing is not a durable state; finding it at startup means a cycle
// was cut short. Returns how many records were reset.
func (s *DataStore) ResetInterrupted(ctx context.Context, collection string) (int, error) {
	records, err := s.kv.GetAll(ctx, collection)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, record := range records {
		if record.SyncStatus != model.StatusSyncing {
			continue
		}
		record.SyncStatus = model.StatusPending
		if err := s.kv.Put(ctx, collection, record.ID, record); err != nil {
			return reset, err
		}
		s.mu.Lock()
		s.enqueueLocked(collection, record.ID)
		s.mu.Unlock()
		reset++
	}
	return reset, nil
}

// errSuperseded reports that a status write lost to a newer local save.
// The newer version is already pending and queued; the stale write is
// simply dropped.
var errSuperseded = errors.New("record superseded by a newer local version")

// MarkSyncing claims a record for the current cycle. Returns
// errSuperseded when a local save bumped the version after the cycle
// snapshotted the record.
func (s *DataStore) MarkSyncing(ctx context.Context, record *model.SyncableRecord) error {
	return s.setStatus(ctx, record, model.StatusSyncing)
}

// MarkPending returns an in-flight record to the pending set after a
// transient failure. Losing to a newer save is fine; that version is
// pending already.
func (s *DataStore) MarkPending(ctx context.Context, record *model.SyncableRecord) error {
	if err := s.setStatus(ctx, record, model.StatusPending); err != nil && !errors.Is(err, errSuperseded) {
		return err
	}
	return nil
}

// MarkSynced records a remote acknowledgement. While the stored record
// is still the acknowledged version, it leaves the queue and its version
// becomes the last common sync point. When a save raced the remote call,
// only the sync point advances; the newer pending version and its
// payload stay untouched and queued.
func (s *DataStore) MarkSynced(ctx context.Context, record *model.SyncableRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.kv.Get(ctx, record.Collection, record.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		return nil
	}
	if stored.Version != record.Version {
		if record.Version > stored.LastSyncedVersion {
			stored.LastSyncedVersion = record.Version
			return s.kv.Put(ctx, record.Collection, record.ID, stored)
		}
		return nil
	}

	record.SyncStatus = model.StatusSynced
	record.LastSyncedVersion = record.Version
	if err := s.kv.Put(ctx, record.Collection, record.ID, record); err != nil {
		return err
	}
	s.dequeueLocked(record.Collection, record.ID)
	return nil
}

// AdoptRemote replaces the local copy with the remote one and considers
// it synced. Used to auto-resolve version-type divergences, where the
// local side has no edit worth keeping. A save that raced the cycle
// wins: the adoption is dropped and the newer version stays pending.
func (s *DataStore) AdoptRemote(ctx context.Context, local, remote *model.SyncableRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.kv.Get(ctx, local.Collection, local.ID)
	if err != nil {
		return err
	}
	if stored == nil || stored.Version != local.Version {
		return nil
	}

	adopted := remote.Clone()
	adopted.SyncStatus = model.StatusSynced
	adopted.LastSyncedVersion = adopted.Version
	adopted.Checksum = integrity.Checksum(adopted.Payload)
	if err := s.kv.Put(ctx, adopted.Collection, adopted.ID, adopted); err != nil {
		return err
	}
	s.dequeueLocked(adopted.Collection, adopted.ID)
	return nil
}

// ChangeLog returns a copy of the append-only audit log.
func (s *DataStore) ChangeLog() []model.ChangeLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.ChangeLogEntry, len(s.changeLog))
	copy(out, s.changeLog)
	return out
}

// AnonymizeActor serves a data-erasure request: every change-log entry by
// the actor keeps its existence and timestamp but loses its identifying
// content. Returns how many entries were anonymized.
func (s *DataStore) AnonymizeActor(actor string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	anonymized := 0
	for i := range s.changeLog {
		if s.changeLog[i].Actor == actor {
			s.changeLog[i].Anonymize()
			anonymized++
		}
	}
	return anonymized
}

// QueueLen reports how many records are waiting to sync.
func (s *DataStore) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// setStatus writes a sync status only while the stored record is still
// the version the caller snapshotted; otherwise the write lost to a
// newer save and comes back as errSuperseded.
func (s *DataStore) setStatus(ctx context.Context, record *model.SyncableRecord, status model.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.kv.Get(ctx, record.Collection, record.ID)
	if err != nil {
		return err
	}
	if stored == nil || stored.Version != record.Version {
		return errSuperseded
	}

	record.SyncStatus = status
	return s.kv.Put(ctx, record.Collection, record.ID, record)
}

// enqueueLocked appends to the queue unless the record is already
// waiting. A version bump replaces the queued work; queueing it twice
// would only burn a duplicate remote call.
func (s *DataStore) enqueueLocked(collection, id string) {
	for _, key := range s.queue {
		if key.Collection == collection && key.RecordID == id {
			return
		}
	}
	s.queue = append(s.queue, queueKey{Collection: collection, RecordID: id})
}

func (s *DataStore) dequeueLocked(collection, id string) {
	s.queue = lo.Filter(s.queue, func(key queueKey, _ int) bool {
		return !(key.Collection == collection && key.RecordID == id)
	})
}

func sortByPosition(records []*model.SyncableRecord, position map[string]int) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && position[records[j].ID] < position[records[j-1].ID]; j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}
