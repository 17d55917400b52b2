package processed

import (
	"context"
	"sync"
)

// Memory tracks processed task IDs for a single daemon run.
type Memory struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) Seen(_ context.Context, taskID string) (bool, error) {
	m.mu.RLock()
	_, ok := m.seen[taskID]
	m.mu.RUnlock()
	return ok, nil
}

func (m *Memory) MarkProcessed(_ context.Context, taskID string) error {
	m.mu.Lock()
	m.seen[taskID] = struct{}{}
	m.mu.Unlock()
	return nil
}
