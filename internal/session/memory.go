package session

import (
	"context"
	"sync"
	"time"
)

// memoryKV ignores ttl. Tests and single-process local runs only.
type memoryKV struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

func NewMemoryStore() *Store {
	return &Store{kv: &memoryKV{data: map[string]map[string]string{}}}
}

func (m *memoryKV) set(_ context.Context, userID string, fields map[string]string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.data[userID]
	if !ok {
		h = map[string]string{}
		m.data[userID] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *memoryKV) getAll(_ context.Context, userID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data[userID]))
	for k, v := range m.data[userID] {
		out[k] = v
	}
	return out, nil
}

func (m *memoryKV) del(_ context.Context, userID string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range fields {
		delete(m.data[userID], f)
	}
	return nil
}
