package idstore

import (
	"context"
	"sync"
)

// MemoryStorage is a Storage kept in process memory
type MemoryStorage struct {
	mu   sync.Mutex
	sets map[string][]string
	// SaveErr, when set, is returned by every Save
	SaveErr error
	saves   int
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sets: make(map[string][]string)}
}

func (m *MemoryStorage) Load(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.sets[key]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, _ int, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	out := make([]string, len(ids))
	copy(out, ids)
	m.sets[key] = out
	m.saves++
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets, key)
	return nil
}

// Saves returns the number of successful Save calls
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
