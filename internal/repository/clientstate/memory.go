package clientstate

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

type memoryRepo struct {
	mu     sync.RWMutex
	values map[string]map[string][]byte
}

// NewMemory returns a process-local Repository. State is lost on restart.
func NewMemory() Repository {
	return &memoryRepo{values: make(map[string]map[string][]byte)}
}

func (r *memoryRepo) Get(_ context.Context, owner, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[owner][key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (r *memoryRepo) Set(_ context.Context, owner, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.values[owner] == nil {
		r.values[owner] = make(map[string][]byte)
	}
	r.values[owner][key] = stored
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, owner, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values[owner], key)
	if len(r.values[owner]) == 0 {
		delete(r.values, owner)
	}
	return nil
}

func (r *memoryRepo) Ping(context.Context) error {
	return nil
}
