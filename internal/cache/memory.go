package cache

import (
	"context"
	"sync"

	"focus-service/internal/models"
)

// MemoryStore keeps snapshots in process. Used when Redis is not configured.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]models.StateSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]models.StateSnapshot)}
}

func (m *MemoryStore) StoreResult(_ context.Context, snap models.StateSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.SessionID] = snap
	return nil
}

func (m *MemoryStore) GetLatest(_ context.Context, sessionID string) (models.StateSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[sessionID]
	if !ok {
		return models.StateSnapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, sessionID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
