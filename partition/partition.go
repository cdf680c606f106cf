// Package partition maps world-space regions to independent entity stores.
// Six interchangeable strategies implement the same contract: uniform grids
// (2D/3D), adaptive quadtree/octree, a dynamic BVH for placed volumes, and a
// sweep-and-prune broadphase for moving bodies. An application picks one
// strategy per level at construction time.
//
// Partitions carry no internal locking. Structural mutation (subdivide,
// coalesce, rebuild, refit) must be serialized by the caller against
// concurrent reads of the same partition, typically by running mutation on a
// single maintenance tick between frames. Only the spatial.Registry is safe
// for concurrent access.
package partition

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/plus3/tessera/ecs"
	"github.com/plus3/tessera/geom"
	"github.com/plus3/tessera/spatial"
)

// Policy decides what a point lookup does with out-of-bounds coordinates.
type Policy uint8

const (
	// Reject returns no chunk for points outside the partition's extent.
	Reject Policy = iota
	// ClampToEdge clamps the coordinate into range before the lookup.
	ClampToEdge
)

// PositionFunc resolves an entity's world position within a store. A false
// result means the position cannot be resolved; subdivision leaves such
// entities where they are.
type PositionFunc func(store *ecs.Store, id ecs.EntityId) (mgl32.Vec3, bool)

// PositionVia builds a PositionFunc reading a single component type.
func PositionVia[T any](get func(*T) mgl32.Vec3) PositionFunc {
	return func(store *ecs.Store, id ecs.EntityId) (mgl32.Vec3, bool) {
		comp := ecs.ReadComponent[T](store, id)
		if comp == nil {
			return mgl32.Vec3{}, false
		}
		return get(comp), true
	}
}

// Partition is the contract shared by all six strategies.
type Partition interface {
	// GetChunk locates the chunk owning the given point, or nil under the
	// Reject policy when the point falls outside the partition's extent.
	GetChunk(point mgl32.Vec3, policy Policy) *spatial.Chunk

	// GlobalStore returns the store for region-independent entities.
	GlobalStore() *ecs.Store

	// RegisterAllChunks registers every active chunk under the given level
	// id and attaches the registry, so chunks created or destroyed later
	// (subdivision, coalescing, insertion) keep it in sync.
	RegisterAllChunks(reg *spatial.Registry, level uint16)

	// EntityCount returns the live entity total across the global store and
	// every active chunk.
	EntityCount() int

	// Chunks visits every active chunk; return false to stop early.
	Chunks(fn func(*spatial.Chunk) bool)

	// CullChunks returns the chunks whose bounds intersect the frustum.
	CullChunks(f geom.Frustum) []*spatial.Chunk

	// CullChunksBand is CullChunks restricted to chunks whose vertical
	// extent overlaps [yMin, yMax].
	CullChunksBand(f geom.Frustum, yMin, yMax float32) []*spatial.Chunk

	// CullChunksEach is the allocation-free form of CullChunks; return
	// false from fn to stop early.
	CullChunksEach(f geom.Frustum, fn func(*spatial.Chunk) bool)

	// CullChunksNear returns up to maxCount surviving chunks, nearest
	// first by squared distance to the point.
	CullChunksNear(f geom.Frustum, point mgl32.Vec3, maxCount int) []*spatial.Chunk
}

// selectNearest partially sorts chunks so the k nearest to p (by squared
// distance) occupy the front, and returns that prefix. The tail is left in
// unspecified order.
func selectNearest(chunks []*spatial.Chunk, p mgl32.Vec3, maxCount int) []*spatial.Chunk {
	if maxCount <= 0 {
		return chunks[:0]
	}
	k := min(maxCount, len(chunks))

	dists := make([]float32, len(chunks))
	for i, c := range chunks {
		dists[i] = c.Bounds.DistSqToPoint(p)
	}

	for i := 0; i < k; i++ {
		best := i
		for j := i + 1; j < len(chunks); j++ {
			if dists[j] < dists[best] {
				best = j
			}
		}
		chunks[i], chunks[best] = chunks[best], chunks[i]
		dists[i], dists[best] = dists[best], dists[i]
	}
	return chunks[:k]
}

// bandOverlaps reports whether the box's vertical extent intersects
// [yMin, yMax].
func bandOverlaps(b geom.AABB, yMin, yMax float32) bool {
	return b.Max[1] >= yMin && b.Min[1] <= yMax
}

func collectCulled(p Partition, f geom.Frustum) []*spatial.Chunk {
	var out []*spatial.Chunk
	p.CullChunksEach(f, func(c *spatial.Chunk) bool {
		out = append(out, c)
		return true
	})
	return out
}
