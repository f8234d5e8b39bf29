package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mavelar/chainchess/internal/room"
)

// memstore is the volatile map backend used when no Redis URL is
// configured. Snapshots are kept as marshaled JSON so callers never share
// mutable state with the store.
type memstore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() RoomStore {
	return &memstore{data: make(map[string][]byte)}
}

func (m *memstore) Get(ctx context.Context, id string) (*room.Snapshot, error) {
	m.mu.RLock()
	raw, ok := m.data[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var snap room.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

func (m *memstore) Save(ctx context.Context, snap *room.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("invalid snapshot")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}
	m.mu.Lock()
	m.data[snap.ID] = raw
	m.mu.Unlock()
	return nil
}

func (m *memstore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
	return nil
}

func (m *memstore) Create(ctx context.Context, snap *room.Snapshot) error {
	return m.Save(ctx, snap)
}
