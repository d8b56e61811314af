package store

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() Store {
	return &memoryStore{data: make(map[string][]byte)}
}

func (store *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	value, ok := store.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (store *memoryStore) Set(_ context.Context, key string, value []byte) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.data[key] = append([]byte(nil), value...)
	return nil
}

func (store *memoryStore) Delete(_ context.Context, key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.data, key)
	return nil
}

func (store *memoryStore) Close() error {
	return nil
}
