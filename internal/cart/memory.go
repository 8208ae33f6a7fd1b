package cart

import (
	"context"
	"sync"
)

// MemoryStore keeps carts in process memory. Used by tests and by the
// server when no database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]Line
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]Line)}
}

func (m *MemoryStore) Lines(_ context.Context, cartKey string) ([]Line, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := m.carts[cartKey]
	out := make([]Line, len(lines))
	copy(out, lines)
	return out, nil
}

func (m *MemoryStore) UpsertLine(_ context.Context, cartKey string, line Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := m.carts[cartKey]
	for i := range lines {
		if lines[i].ItemID == line.ItemID {
			lines[i] = line
			return nil
		}
	}
	m.carts[cartKey] = append(lines, line)
	return nil
}

func (m *MemoryStore) DeleteLine(_ context.Context, cartKey, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := m.carts[cartKey]
	for i := range lines {
		if lines[i].ItemID == itemID {
			m.carts[cartKey] = append(lines[:i], lines[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Clear(_ context.Context, cartKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, cartKey)
	return nil
}
