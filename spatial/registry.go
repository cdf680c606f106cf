package spatial

import (
	"sync"

	"github.com/plus3/tessera/ecs"
)

// Registry maps chunk keys to their owning entity stores. It is the only
// structure in the package designed for concurrent use: resolves may run
// from any goroutine, while registrations are expected to be rare
// (load/unload, subdivision, coalescing, reloads) and take the write lock.
//
// The registry never owns chunks or stores. Callers replacing a chunk's
// store must unregister the old key before destroying the store, so the
// worst a stale key holder can see is a miss.
type Registry struct {
	mu     sync.RWMutex
	owners map[ChunkKey]*ecs.Store
}

// NewRegistry creates an empty owner registry.
func NewRegistry() *Registry {
	return &Registry{
		owners: make(map[ChunkKey]*ecs.Store),
	}
}

// Register records store as the owner for key, replacing any previous owner.
func (r *Registry) Register(key ChunkKey, store *ecs.Store) {
	r.mu.Lock()
	r.owners[key] = store
	r.mu.Unlock()
}

// Unregister removes the owner entry for key, if any.
func (r *Registry) Unregister(key ChunkKey) {
	r.mu.Lock()
	delete(r.owners, key)
	r.mu.Unlock()
}

// Resolve returns the store currently registered for key, or nil. A nil
// result means "owner currently absent" and is not an error: the chunk may
// have been coalesced away or reloaded under a newer generation.
func (r *Registry) Resolve(key ChunkKey) *ecs.Store {
	r.mu.RLock()
	store := r.owners[key]
	r.mu.RUnlock()
	return store
}

// Len returns the number of registered owners.
func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.owners)
	r.mu.RUnlock()
	return n
}
