package session

import (
	"context"
	"time"
)

// SnapshotInfo describes a stored snapshot. Version changes on every save.
type SnapshotInfo struct {
	ID        string
	Version   int64
	UpdatedAt time.Time
}

// Backend persists encoded session snapshots. Implementations must make a
// Save visible atomically: a concurrent Load sees the old or the new bytes.
type Backend interface {
	Save(ctx context.Context, id string, data []byte) (SnapshotInfo, error)
	Load(ctx context.Context, id string) ([]byte, SnapshotInfo, error)
	Stat(ctx context.Context, id string) (SnapshotInfo, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]SnapshotInfo, error)
}
