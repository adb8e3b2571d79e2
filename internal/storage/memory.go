package storage

import (
	"sync"

	"github.com/starford/notekeep/internal/apperr"
)

// Memory is a map-backed KV used for ephemeral runs and tests.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return v, nil
}

func (m *Memory) Put(key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	m.data = make(map[string]string)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Compile-time interface checks.
var (
	_ KV = (*FS)(nil)
	_ KV = (*SQLite)(nil)
	_ KV = (*Memory)(nil)
)
