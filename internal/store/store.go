package store

import (
	"context"

	"github.com/mavelar/chainchess/internal/room"
)

// RoomStore is the durable snapshot backend consumed by the session
// coordinator. Get returns (nil, nil) when the id is absent. Implementations
// must be safe for concurrent use.
type RoomStore interface {
	Get(ctx context.Context, id string) (*room.Snapshot, error)
	Save(ctx context.Context, snap *room.Snapshot) error
	Delete(ctx context.Context, id string) error
	Create(ctx context.Context, snap *room.Snapshot) error
}
