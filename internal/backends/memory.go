package backends

import (
	"context"
	"sync"

	"github.com/systmms/openclaw-secure/pkg/backend"
)

// Memory is an in-process backend for tests and dry runs.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func newMemoryFactory(options map[string]any, _ Deps) (backend.Backend, error) {
	m := NewMemory()
	if seed, ok := options["values"].(map[string]any); ok {
		for k, v := range seed {
			if s, ok := v.(string); ok {
				m.values[k] = s
			}
		}
	}
	return m, nil
}

// Name implements backend.Backend.
func (m *Memory) Name() string { return "memory" }

// Available implements backend.Backend.
func (m *Memory) Available(context.Context) bool { return true }

// Get implements backend.Backend.
func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", backend.NotFound(m.Name(), key)
	}
	return v, nil
}

// Set implements backend.Backend.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
