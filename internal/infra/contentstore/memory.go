package contentstore

import (
	"context"
	"fmt"
	"sync"

	"bountyd/internal/domain"
)

// Memory is the in-process content store used for tests and no-IPFS
// deployments. Blobs are keyed by their CID, so puts are idempotent by
// construction.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, data []byte) (string, error) {
	id, err := CID(data)
	if err != nil {
		return "", err
	}
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	m.blobs[id] = stored
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) Get(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.blobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: cid %s", domain.ErrNotFound, id)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
