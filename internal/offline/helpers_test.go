package offline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/remote"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/storage"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type toggleNetwork struct {
	online atomic.Bool
}

func newToggleNetwork(online bool) *toggleNetwork {
	n := &toggleNetwork{}
	n.online.Store(online)
	return n
}

func (n *toggleNetwork) Online() bool      { return n.online.Load() }
func (n *toggleNetwork) SetOnline(ok bool) { n.online.Store(ok) }

// fakeSyncer scripts the backend per record id. Unscripted ids are
// acknowledged. The deterministic conflict injection the demo client
// used lives here, in test code only.
type fakeSyncer struct {
	mu      sync.Mutex
	scripts map[string]func(*model.SyncableRecord) (remote.Result, error)
	calls   []string
	block   chan struct{}
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{scripts: map[string]func(*model.SyncableRecord) (remote.Result, error){}}
}

func (f *fakeSyncer) script(id string, fn func(*model.SyncableRecord) (remote.Result, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[id] = fn
}

func (f *fakeSyncer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSyncer) AttemptSync(_ context.Context, record *model.SyncableRecord) (remote.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, record.ID)
	script := f.scripts[record.ID]
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if script != nil {
		return script(record)
	}
	return remote.Result{Acknowledged: true}, nil
}

func newTestStore() (*DataStore, *storage.Memory) {
	kv := storage.NewMemory()
	store := New(kv, Config{
		DeviceID: "device_test",
		Actor:    "chw_test",
		Clock:    newManualClock(),
	})
	return store, kv
}

func casePayload(patientID string) map[string]any {
	return map[string]any{
		"patientId": patientID,
		"symptoms":  []any{"fever"},
	}
}
