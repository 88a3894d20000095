// Package remote defines the contract to the backend sync API and an
// HTTP implementation of it.
package remote

import (
	"context"
	"fmt"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

// Result is the outcome of pushing one record to the backend. Either the
// backend acknowledged our version, or it answered with the competing
// record it holds.
type Result struct {
	Acknowledged bool
	Remote       *model.SyncableRecord
}

// Syncer is the remote sync collaborator. Transient failures (network,
// timeout, backend overload) come back as *TransientError; the caller
// leaves the record pending and moves on.
type Syncer interface {
	AttemptSync(ctx context.Context, record *model.SyncableRecord) (Result, error)
}

// TransientError marks a sync failure worth retrying on a later cycle.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient sync failure: %v", e.Err) }

func (e *TransientError) Unwrap() error { return e.Err }
