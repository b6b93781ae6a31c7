package store

import (
	"context"
	"sync"
)

// Memory is a process-local store. Nothing survives the process.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Seed stores val under key without calling any fill function.
func (m *Memory) Seed(key string, val []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
}

func (m *Memory) Upsert(ctx context.Context, key string, fill FillFunc) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, false, nil
	}
	v, err := fill(ctx)
	if err != nil {
		return nil, false, err
	}
	m.data[key] = v
	return v, true, nil
}

func (m *Memory) Len(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data), nil
}

func (m *Memory) Flush(context.Context) error { return nil }
func (m *Memory) Close() error                { return nil }
