package storage

import (
	"context"
	"sync"
)

// Memory is an in-process backend used by tests and dry runs.
type Memory struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int

	// FailSave, when set, is returned by the next SaveBatch call.
	FailSave error
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Load implements Backend.
func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// SaveBatch implements Backend.
func (m *Memory) SaveBatch(_ context.Context, snapshots map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		err := m.FailSave
		m.FailSave = nil
		return err
	}
	for k, v := range snapshots {
		m.data[k] = append([]byte(nil), v...)
	}
	m.saves++
	return nil
}

// Saves returns how many batches have been written.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close implements Backend.
func (m *Memory) Close() error { return nil }
