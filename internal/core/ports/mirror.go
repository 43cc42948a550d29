package ports

import (
	"context"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

// MirrorCollection is a handle on the records of one shape in the secondary
// store. Writes are keyed by the record identifier. Insert and InsertMany
// wrap domain.ErrDuplicateKey when an identifier already exists.
type MirrorCollection interface {
	Upsert(ctx context.Context, rec domain.Record) error
	Delete(ctx context.Context, id string) error
	InsertMany(ctx context.Context, recs []domain.Record) error
	Insert(ctx context.Context, rec domain.Record) error
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}

// MirrorConnection hands out collections while the secondary is healthy.
// Accessor returns nil when it is not.
type MirrorConnection interface {
	IsHealthy() bool
	State() domain.ConnectionState
	Accessor(shape domain.Shape) MirrorCollection
}

// SnapshotSource reads the current state of the primary store.
type SnapshotSource interface {
	Snapshot(ctx context.Context, shape domain.Shape) ([]domain.Record, error)
	Count(ctx context.Context, shape domain.Shape) (int64, error)
	Load(ctx context.Context, shape domain.Shape, id string) (domain.Record, error)
}

// Propagator mirrors one committed primary mutation. It reports what it did
// and never fails the caller.
type Propagator interface {
	Propagate(ctx context.Context, typeName string, fallback *domain.Shape, rec domain.Record, op domain.Operation) domain.Outcome
}
