package storage

import (
	"context"
	"sync"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

// Memory keeps records in process memory. It backs single-session device
// deployments and tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]*model.SyncableRecord
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]*model.SyncableRecord)}
}

func (m *Memory) Put(_ context.Context, collection, id string, record *model.SyncableRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, ok := m.collections[collection]
	if !ok {
		records = make(map[string]*model.SyncableRecord)
		m.collections[collection] = records
	}
	records[id] = record.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (*model.SyncableRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return record.Clone(), nil
}

func (m *Memory) GetAll(_ context.Context, collection string) ([]*model.SyncableRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*model.SyncableRecord, 0, len(m.collections[collection]))
	for _, record := range m.collections[collection] {
		records = append(records, record.Clone())
	}
	return records, nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections[collection], id)
	return nil
}

// Corrupt overwrites a stored record's payload without recomputing its
// checksum. Integrity-validation tests use it to simulate on-disk
// corruption; production code has no call path to it.
func (m *Memory) Corrupt(collection, id string, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.collections[collection][id]; ok {
		record.Payload = payload
	}
}
