package localstore

import (
	"context"
	"errors"
	"sync"

	"storefront/internal/domain"
)

type memoryRepo struct {
	mu     sync.RWMutex
	values map[string]map[string][]byte
}

// NewMemory keeps values in process memory. Used for local runs and tests.
func NewMemory() Repository {
	return &memoryRepo{values: make(map[string]map[string][]byte)}
}

func (r *memoryRepo) Get(_ context.Context, browserID, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[browserID][key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (r *memoryRepo) Set(_ context.Context, browserID, key string, value []byte) error {
	if !validKey(browserID, key) {
		return errors.New("browser id and key required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values[browserID] == nil {
		r.values[browserID] = make(map[string][]byte)
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	r.values[browserID][key] = stored
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, browserID string, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.values[browserID], k)
	}
	if len(r.values[browserID]) == 0 {
		delete(r.values, browserID)
	}
	return nil
}

func (r *memoryRepo) Ping(context.Context) error {
	return nil
}
