package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/remote"
)

// CycleState is what the orchestrator reports to status observers. The
// channel is observation only; observers cannot alter a cycle's outcome.
type CycleState string

const (
	StateSyncing CycleState = "syncing"
	StateSynced  CycleState = "synced"
	StateError   CycleState = "sync_error"
)

// SyncStatus is a point-in-time snapshot for UI indicators.
type SyncStatus struct {
	Online       bool `json:"isOnline"`
	InProgress   bool `json:"syncInProgress"`
	PendingCount int  `json:"pendingCount"`
}

// OrchestratorConfig tunes the sync loop. Zero values default to a
// five-minute cycle over the cases collection with a ten-second
// connectivity probe.
type OrchestratorConfig struct {
	Interval      time.Duration
	ProbeInterval time.Duration
	Collections   []string
}

// Orchestrator drives synchronization cycles: periodic, on reconnect, on
// explicit request and after local saves while online. Cycles are
// single-flight per device; an overlapping trigger is dropped, not
// queued.
type Orchestrator struct {
	store   *DataStore
	syncer  remote.Syncer
	network model.NetworkStatus

	interval      time.Duration
	probeInterval time.Duration
	collections   []string

	inProgress atomic.Bool
	trigger    chan struct{}

	mu         sync.Mutex
	onStatus   func(CycleState)
	onConflict func(model.SyncConflict)
}

func NewOrchestrator(store *DataStore, syncer remote.Syncer, network model.NetworkStatus, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 10 * time.Second
	}
	if len(cfg.Collections) == 0 {
		cfg.Collections = []string{model.CollectionCases}
	}

	o := &Orchestrator{
		store:         store,
		syncer:        syncer,
		network:       network,
		interval:      cfg.Interval,
		probeInterval: cfg.ProbeInterval,
		collections:   cfg.Collections,
		trigger:       make(chan struct{}, 1),
	}

	store.OnDirty(o.poke)
	return o
}

// OnStatus registers the status-transition observer.
func (o *Orchestrator) OnStatus(fn func(CycleState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onStatus = fn
}

// OnConflict registers the conflict observer.
func (o *Orchestrator) OnConflict(fn func(model.SyncConflict)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onConflict = fn
}

// Run drives the sync loop until the context is cancelled. Records left
// in syncing by an interrupted previous process are reset to pending
// first.
func (o *Orchestrator) Run(ctx context.Context) error {
	for _, collection := range o.collections {
		if _, err := o.store.ResetInterrupted(ctx, collection); err != nil {
			return fmt.Errorf("reset interrupted records: %w", err)
		}
	}

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	probe := time.NewTicker(o.probeInterval)
	defer probe.Stop()

	wasOnline := o.network.Online()
	if wasOnline {
		o.SyncNow(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			o.SyncNow(ctx)

		case <-probe.C:
			online := o.network.Online()
			if online && !wasOnline {
				o.SyncNow(ctx)
			}
			wasOnline = online

		case <-o.trigger:
			o.SyncNow(ctx)
		}
	}
}

// SyncNow runs one synchronization cycle. Offline it is a no-op, and a
// cycle already in flight makes it a no-op too. One record's failure
// never blocks the rest: the cycle processes the whole pending set and
// reports sync_error at the end if anything failed transiently.
func (o *Orchestrator) SyncNow(ctx context.Context) error {
	if !o.network.Online() {
		return nil
	}
	if !o.inProgress.CompareAndSwap(false, true) {
		return nil
	}
	defer o.inProgress.Store(false)

	o.emit(StateSyncing)

	var failed int
	var lastErr error
	for _, collection := range o.collections {
		pending, err := o.store.PendingRecords(ctx, collection)
		if err != nil {
			failed++
			lastErr = err
			continue
		}

		for _, record := range pending {
			if err := o.syncRecord(ctx, record); err != nil {
				failed++
				lastErr = err
			}
		}
	}

	if failed > 0 {
		o.emit(StateError)
		return fmt.Errorf("sync cycle finished with %d failures: %w", failed, lastErr)
	}
	o.emit(StateSynced)
	return nil
}

// syncRecord pushes one record. Acknowledged records are marked synced
// and dequeued; divergences go to the conflict detector; transient
// failures put the record back in pending for a later cycle.
func (o *Orchestrator) syncRecord(ctx context.Context, record *model.SyncableRecord) error {
	if err := o.store.MarkSyncing(ctx, record); err != nil {
		if errors.Is(err, errSuperseded) {
			// A save replaced this version after the cycle snapshotted
			// it; the newer version is queued and syncs next cycle.
			return nil
		}
		return err
	}

	result, err := o.syncer.AttemptSync(ctx, record)
	if err != nil {
		if resetErr := o.store.MarkPending(ctx, record); resetErr != nil {
			return resetErr
		}
		return err
	}

	if result.Acknowledged {
		return o.store.MarkSynced(ctx, record)
	}

	conflictType := Classify(record, result.Remote)
	if conflictType == model.ConflictVersion {
		if result.Remote.Version > record.Version {
			// Remote moved on and we have nothing of our own to defend.
			return o.store.AdoptRemote(ctx, record, result.Remote)
		}
		// Stale or replayed remote copy; never roll back past the last
		// acknowledged version. Keep ours pending for the next cycle.
		return o.store.MarkPending(ctx, record)
	}

	conflict, err := o.store.MarkConflict(ctx, record, result.Remote, conflictType)
	if err != nil {
		return err
	}
	if conflict == nil {
		return nil
	}

	o.mu.Lock()
	onConflict := o.onConflict
	o.mu.Unlock()
	if onConflict != nil {
		onConflict(*conflict)
	}
	return nil
}

// Status snapshots the sync state for offline/unsynced indicators.
func (o *Orchestrator) Status() SyncStatus {
	return SyncStatus{
		Online:       o.network.Online(),
		InProgress:   o.inProgress.Load(),
		PendingCount: o.store.QueueLen(),
	}
}

// poke requests a cycle after a local mutation. Offline pokes are
// dropped; the reconnect probe will pick the work up.
func (o *Orchestrator) poke() {
	if !o.network.Online() {
		return
	}
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) emit(state CycleState) {
	o.mu.Lock()
	onStatus := o.onStatus
	o.mu.Unlock()
	if onStatus != nil {
		onStatus(state)
	}
}
