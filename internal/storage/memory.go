package storage

import (
	"context"
	"sync"

	"github.com/tahcohcat/meechain/internal/models"
)

// MemoryStorage keeps state in process. Nothing survives a restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	players map[string]models.PlayerState
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{players: make(map[string]models.PlayerState)}
}

func (m *MemoryStorage) Load(ctx context.Context, playerID string) (*models.PlayerState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.players[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	out := st.Clone()
	return &out, nil
}

func (m *MemoryStorage) Save(ctx context.Context, state models.PlayerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[state.PlayerID] = state.Clone()
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

var _ Repository = (*MemoryStorage)(nil)
