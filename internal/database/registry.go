package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry remembers which named resource definitions (collections, tables,
// indexes) have been applied in this process so repeated initialization
// applies each one only once. A failed apply is not remembered and may be
// retried.
type Registry struct {
	mu      sync.Mutex
	applied map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{applied: make(map[string]struct{})}
}

// Ensure runs apply for name unless it already succeeded. Concurrent callers
// for any name are serialized.
func (r *Registry) Ensure(ctx context.Context, name string, apply func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.applied[name]; ok {
		return nil
	}

	if err := apply(ctx); err != nil {
		return fmt.Errorf("failed to register %s: %w", name, err)
	}

	r.applied[name] = struct{}{}
	return nil
}

// Registered reports whether name has been applied.
func (r *Registry) Registered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.applied[name]
	return ok
}

// Names returns the applied names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.applied))
	for name := range r.applied {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
