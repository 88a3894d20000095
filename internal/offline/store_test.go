package offline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

func TestSaveCreatesPendingRecord(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	id, err := store.Save(ctx, model.CollectionCases, casePayload("p1"), model.OpCreate)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := kv.Get(ctx, model.CollectionCases, id)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 1, record.Version)
	assert.Equal(t, model.StatusPending, record.SyncStatus)
	assert.Equal(t, "device_test", record.DeviceID)
	assert.NotEmpty(t, record.Checksum)
	assert.Equal(t, 1, store.QueueLen())

	log := store.ChangeLog()
	require.Len(t, log, 1)
	assert.Equal(t, model.OpCreate, log[0].Operation)
	assert.Equal(t, id, log[0].RecordID)
	assert.Equal(t, "chw_test", log[0].Actor)
}

func TestSaveRejectsInvalidPayload(t *testing.T) {
	store, _ := newTestStore()

	_, err := store.Save(context.Background(), model.CollectionCases, map[string]any{"symptoms": []any{"fever"}}, model.OpCreate)
	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)

	assert.Equal(t, 0, store.QueueLen())
	assert.Empty(t, store.ChangeLog())
}

func TestSaveVersionSequence(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	payload := casePayload("p1")
	payload["id"] = "case_1"

	for i := 1; i <= 5; i++ {
		payload["notes"] = fmt.Sprintf("visit %d", i)
		_, err := store.Save(ctx, model.CollectionCases, payload, model.OpUpdate)
		require.NoError(t, err)

		record, err := kv.Get(ctx, model.CollectionCases, "case_1")
		require.NoError(t, err)
		assert.Equal(t, i, record.Version)
	}
}

func TestSaveConcurrentSameRecord(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	const writers = 100
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			payload := casePayload("p1")
			payload["id"] = "case_1"
			payload["notes"] = fmt.Sprintf("writer %d", n)
			_, err := store.Save(ctx, model.CollectionCases, payload, model.OpUpdate)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	record, err := kv.Get(ctx, model.CollectionCases, "case_1")
	require.NoError(t, err)
	// Serialized read-modify-write: no version lost, no version repeated.
	assert.Equal(t, writers, record.Version)
	assert.Len(t, store.ChangeLog(), writers)
}

func TestGetHidesSoftDeleted(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	id, err := store.Save(ctx, model.CollectionCases, casePayload("p1"), model.OpCreate)
	require.NoError(t, err)

	payload, err := store.Get(ctx, model.CollectionCases, id)
	require.NoError(t, err)
	assert.Equal(t, "p1", payload["patientId"])

	require.NoError(t, store.Delete(ctx, model.CollectionCases, id))

	payload, err = store.Get(ctx, model.CollectionCases, id)
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestDeleteSoftDeletes(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	id, err := store.Save(ctx, model.CollectionCases, casePayload("p1"), model.OpCreate)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, model.CollectionCases, id))

	record, err := kv.Get(ctx, model.CollectionCases, id)
	require.NoError(t, err)
	require.NotNil(t, record, "soft delete must not remove the record")
	assert.True(t, record.Deleted())
	assert.Equal(t, 2, record.Version)
	assert.Equal(t, model.StatusPending, record.SyncStatus)

	log := store.ChangeLog()
	require.Len(t, log, 2)
	assert.Equal(t, model.OpDelete, log[1].Operation)
}

func TestDeleteMissingOrDeletedIsNoop(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, model.CollectionCases, "ghost"))

	id, err := store.Save(ctx, model.CollectionCases, casePayload("p1"), model.OpCreate)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, model.CollectionCases, id))
	require.NoError(t, store.Delete(ctx, model.CollectionCases, id))

	record, err := kv.Get(ctx, model.CollectionCases, id)
	require.NoError(t, err)
	assert.Equal(t, 2, record.Version, "second delete must not bump the version again")
}

func TestQueryFiltersByEquality(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	for _, p := range []struct{ patient, level string }{
		{"p1", "HIGH"},
		{"p1", "LOW"},
		{"p2", "HIGH"},
	} {
		payload := casePayload(p.patient)
		payload["riskLevel"] = p.level
		_, err := store.Save(ctx, model.CollectionCases, payload, model.OpCreate)
		require.NoError(t, err)
	}

	results, err := store.Query(ctx, model.CollectionCases, map[string]any{"patientId": "p1", "riskLevel": "HIGH"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "HIGH", results[0]["riskLevel"])

	// Nil filter values are ignored rather than matched.
	results, err = store.Query(ctx, model.CollectionCases, map[string]any{"patientId": "p1", "riskLevel": nil})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = store.Query(ctx, model.CollectionCases, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestQueryMatchesSliceValues(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	payload := casePayload("p1")
	payload["symptoms"] = []any{"fever", "cough"}
	_, err := store.Save(ctx, model.CollectionCases, payload, model.OpCreate)
	require.NoError(t, err)

	// Slice-valued filters compare by content instead of panicking on an
	// uncomparable type.
	results, err := store.Query(ctx, model.CollectionCases, map[string]any{"symptoms": []any{"fever", "cough"}})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = store.Query(ctx, model.CollectionCases, map[string]any{"symptoms": []any{"fever"}})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryExcludesDeleted(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	id, err := store.Save(ctx, model.CollectionCases, casePayload("p1"), model.OpCreate)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, model.CollectionCases, id))

	results, err := store.Query(ctx, model.CollectionCases, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestValidateIntegrityFlagsCorruption(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	goodID, err := store.Save(ctx, model.CollectionCases, casePayload("p1"), model.OpCreate)
	require.NoError(t, err)
	badID, err := store.Save(ctx, model.CollectionCases, casePayload("p2"), model.OpCreate)
	require.NoError(t, err)

	report, err := store.ValidateIntegrity(ctx, model.CollectionCases)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)

	// Mutate a payload behind the store's back, skipping the checksum
	// recompute that Save performs.
	kv.Corrupt(model.CollectionCases, badID, map[string]any{"patientId": "tampered"})

	report, err = store.ValidateIntegrity(ctx, model.CollectionCases)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], badID)
	assert.NotContains(t, report.Errors[0], goodID)
}

func TestPendingRecordsEnqueueOrder(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := store.Save(ctx, model.CollectionCases, casePayload(fmt.Sprintf("p%d", i)), model.OpCreate)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	pending, err := store.PendingRecords(ctx, model.CollectionCases)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i, record := range pending {
		assert.Equal(t, ids[i], record.ID)
	}
}

func TestResetInterrupted(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	id, err := store.Save(ctx, model.CollectionCases, casePayload("p1"), model.OpCreate)
	require.NoError(t, err)

	record, err := kv.Get(ctx, model.CollectionCases, id)
	require.NoError(t, err)
	require.NoError(t, store.MarkSyncing(ctx, record))

	reset, err := store.ResetInterrupted(ctx, model.CollectionCases)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	record, err = kv.Get(ctx, model.CollectionCases, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, record.SyncStatus)
}

func TestMarkSyncedAdvancesSyncPoint(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	id, err := store.Save(ctx, model.CollectionCases, casePayload("p1"), model.OpCreate)
	require.NoError(t, err)

	record, err := kv.Get(ctx, model.CollectionCases, id)
	require.NoError(t, err)
	require.NoError(t, store.MarkSynced(ctx, record))

	stored, err := kv.Get(ctx, model.CollectionCases, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, stored.SyncStatus)
	assert.Equal(t, stored.Version, stored.LastSyncedVersion)
	assert.Equal(t, 0, store.QueueLen())
}

func TestAnonymizeActor(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	_, err := store.Save(ctx, model.CollectionCases, casePayload("p1"), model.OpCreate)
	require.NoError(t, err)
	_, err = store.Save(ctx, model.CollectionCases, casePayload("p2"), model.OpCreate)
	require.NoError(t, err)

	count := store.AnonymizeActor("chw_test")
	assert.Equal(t, 2, count)

	for _, entry := range store.ChangeLog() {
		assert.Equal(t, model.RedactedActor, entry.Actor)
		assert.Nil(t, entry.Changes)
		assert.False(t, entry.Timestamp.IsZero())
	}

	assert.Equal(t, 0, store.AnonymizeActor("someone_else"))
}

func TestOnChangeObserver(t *testing.T) {
	store, _ := newTestStore()

	var seen []model.ChangeLogEntry
	store.OnChange(func(entry model.ChangeLogEntry) {
		seen = append(seen, entry)
	})

	_, err := store.Save(context.Background(), model.CollectionCases, casePayload("p1"), model.OpCreate)
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, model.OpCreate, seen[0].Operation)
}
