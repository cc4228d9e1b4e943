package repositories

import (
	"context"
	"sync"
)

// MemoryStateRepository keeps state in a map. Nothing survives the process.
type MemoryStateRepository struct {
	mu    sync.Mutex
	items map[string]string
}

// NewMemoryStateRepository returns an empty [MemoryStateRepository].
func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{items: make(map[string]string)}
}

func (m *MemoryStateRepository) Load(ctx context.Context, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.items[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryStateRepository) Save(ctx context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.items[k] = v
	}
	return nil
}

func (m *MemoryStateRepository) Remove(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *MemoryStateRepository) Close() error { return nil }
