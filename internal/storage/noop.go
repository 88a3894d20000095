package storage

import (
	"context"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

// Noop is the explicit storage-unavailable mode: writes are discarded and
// reads come back empty, without erroring. It exists for environments
// where persistent storage is structurally absent (e.g. server-side
// rendering of the client shell). Selecting it is a deliberate
// configuration choice, never a silent fallback.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Put(context.Context, string, string, *model.SyncableRecord) error { return nil }

func (Noop) Get(context.Context, string, string) (*model.SyncableRecord, error) { return nil, nil }

func (Noop) GetAll(context.Context, string) ([]*model.SyncableRecord, error) { return nil, nil }

func (Noop) Delete(context.Context, string, string) error { return nil }
