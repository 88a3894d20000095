// Package storage defines the key-value persistence boundary the record
// store is built on, with in-memory, no-op and postgres-backed
// implementations.
package storage

import (
	"context"
	"fmt"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

// KeyValueStore is the narrow persistence contract. Get returns
// (nil, nil) for a missing id. Implementations must be safe for
// concurrent use.
type KeyValueStore interface {
	Put(ctx context.Context, collection, id string, record *model.SyncableRecord) error
	Get(ctx context.Context, collection, id string) (*model.SyncableRecord, error)
	GetAll(ctx context.Context, collection string) ([]*model.SyncableRecord, error)
	Delete(ctx context.Context, collection, id string) error
}

// Error wraps any failure of the persistence layer. Callers get it
// propagated as-is; the record store never retries storage failures.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
