package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps the blob in process memory
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (ms *MemoryStore) Load(_ context.Context) ([]byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.data == nil {
		return nil, nil
	}
	return append([]byte(nil), ms.data...), nil
}

func (ms *MemoryStore) Save(_ context.Context, data []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.data = append([]byte(nil), data...)
	return nil
}
