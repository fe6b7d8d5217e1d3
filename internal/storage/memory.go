package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Storage used by tests and local development.
// Objects live in a map for the lifetime of the process.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Initialize is a no-op.
func (m *Memory) Initialize(ctx context.Context) error { return nil }

// Store keeps a copy of data under a timestamped key and returns its URL.
func (m *Memory) Store(ctx context.Context, data []byte, name, contentType string) (string, error) {
	key := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), name)

	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[key] = buf
	m.mu.Unlock()

	return m.FileURL(key), nil
}

// FileURL returns a synthetic URL for an object key.
func (m *Memory) FileURL(name string) string {
	return "http://test-storage/" + name
}

// Delete removes an object; deleting a missing object is not an error.
func (m *Memory) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	delete(m.objects, name)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored objects. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
