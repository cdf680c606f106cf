package partition

import (
	"github.com/plus3/tessera/ecs"
	"github.com/plus3/tessera/geom"
	"github.com/plus3/tessera/spatial"
)

// MatchingStorageChunks gathers the archetypes matching a filter across the
// partition's global store and every active chunk, in that order. Archetypes
// with no live entities are skipped, so the result is directly iterable by
// query systems without per-archetype emptiness checks.
func MatchingStorageChunks(p Partition, f ecs.Filter) []*ecs.Archetype {
	out := p.GlobalStore().MatchingArchetypes(f, nil)
	p.Chunks(func(c *spatial.Chunk) bool {
		out = c.Store.MatchingArchetypes(f, out)
		return true
	})
	return out
}

// CulledStorageChunks is MatchingStorageChunks restricted to chunks surviving
// frustum culling. The global store always contributes: region-independent
// entities have no bounds to cull against.
func CulledStorageChunks(p Partition, f ecs.Filter, fr geom.Frustum) []*ecs.Archetype {
	out := p.GlobalStore().MatchingArchetypes(f, nil)
	p.CullChunksEach(fr, func(c *spatial.Chunk) bool {
		out = c.Store.MatchingArchetypes(f, out)
		return true
	})
	return out
}
