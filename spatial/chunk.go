package spatial

import (
	"github.com/plus3/tessera/ecs"
	"github.com/plus3/tessera/geom"
)

// Chunk pairs a bounded region with the entity store that owns everything
// inside it. Exactly one chunk owns a store at a time; the chunk itself is
// owned by its partition, never by the Registry.
type Chunk struct {
	Bounds geom.AABB
	Store  *ecs.Store
	Key    ChunkKey
}

// NewChunk creates a chunk owning a fresh store from the given registry.
func NewChunk(bounds geom.AABB, registry *ecs.ComponentRegistry, key ChunkKey) *Chunk {
	return &Chunk{
		Bounds: bounds,
		Store:  ecs.NewStore(registry),
		Key:    key,
	}
}

// Count returns the number of live entities owned by the chunk.
func (c *Chunk) Count() int {
	return c.Store.Count()
}

// Reload hands out a fresh invalidation token for the chunk without
// changing its spatial identity: the old key is unregistered, the
// generation bumped, and the store re-registered under the new key.
// Holders of the old key miss on their next resolve.
func (c *Chunk) Reload(reg *Registry) ChunkKey {
	reg.Unregister(c.Key)
	c.Key = c.Key.Bumped()
	reg.Register(c.Key, c.Store)
	return c.Key
}
