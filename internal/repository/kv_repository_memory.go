package repository

import (
	"context"
	"sync"

	"github.com/sandeepkv93/alumni-portal-client/internal/observability"
)

type InMemoryKeyValueRepository struct {
	mu    sync.RWMutex
	store map[string]string
}

func NewInMemoryKeyValueRepository() *InMemoryKeyValueRepository {
	return &InMemoryKeyValueRepository{store: make(map[string]string)}
}

func (r *InMemoryKeyValueRepository) Get(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	v, ok := r.store[key]
	r.mu.RUnlock()
	if !ok {
		observability.RecordStorageOperation(ctx, "memory", "get", "miss")
		return "", ErrKeyNotFound
	}
	observability.RecordStorageOperation(ctx, "memory", "get", "hit")
	return v, nil
}

func (r *InMemoryKeyValueRepository) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	r.store[key] = value
	r.mu.Unlock()
	observability.RecordStorageOperation(ctx, "memory", "set", "success")
	return nil
}

func (r *InMemoryKeyValueRepository) Delete(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	for _, k := range keys {
		delete(r.store, k)
	}
	r.mu.Unlock()
	observability.RecordStorageOperation(ctx, "memory", "delete", "success")
	return nil
}

func (r *InMemoryKeyValueRepository) Close() error { return nil }
