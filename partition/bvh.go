package partition

import (
	"cmp"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/kamstrup/intmap"

	"github.com/plus3/tessera/ecs"
	"github.com/plus3/tessera/geom"
	"github.com/plus3/tessera/spatial"
)

// Volume is a placed region indexed by a BVH: its bounds, its owning chunk
// and a stable id for later updates.
type Volume struct {
	Bounds geom.AABB
	Chunk  *spatial.Chunk
	ID     uint32
}

type bvhNode struct {
	bounds geom.AABB
	left   int32
	right  int32
	leaf   int32 // index into volumes, or -1 for internal nodes
}

// BVH partitions discretely placed volumes (rooms, triggers, interiors)
// with a bounding-volume hierarchy rebuilt top-down by median split.
// Volumes move in steps, not sweeps: after bounds updates call Refit when
// the volume set is unchanged, or Build after insertions and removals.
type BVH struct {
	components *ecs.ComponentRegistry
	global     *ecs.Store
	volumes    []Volume
	nodes      []bvhNode
	root       int32
	byID       *intmap.Map[uint32, int32]
	reg        *spatial.Registry
	level      uint16
	nextID     uint32
}

var _ Partition = (*BVH)(nil)

// NewBVH creates an empty hierarchy.
func NewBVH(components *ecs.ComponentRegistry) *BVH {
	return &BVH{
		components: components,
		global:     ecs.NewStore(components),
		root:       nilNode,
		byID:       intmap.New[uint32, int32](64),
	}
}

// AddVolume creates a chunk for a newly placed volume and returns its id.
// The volume is invisible to lookups and culling until the next Build.
// Keys carry the volume id as their code: volumes float freely, so there is
// no lattice cell to encode.
func (b *BVH) AddVolume(bounds geom.AABB) uint32 {
	id := b.nextID
	b.nextID++

	key := spatial.GridKey(b.level, spatial.SchemeBVH, 0, uint64(id))
	chunk := spatial.NewChunk(bounds, b.components, key)
	if b.reg != nil {
		b.reg.Register(chunk.Key, chunk.Store)
	}

	b.byID.Put(id, int32(len(b.volumes)))
	b.volumes = append(b.volumes, Volume{Bounds: bounds, Chunk: chunk, ID: id})
	return id
}

// Volume returns the volume for an id, or nil when unknown. The pointer
// aliases internal storage and is valid only until the next AddVolume or
// RemoveVolume call.
func (b *BVH) Volume(id uint32) *Volume {
	idx, ok := b.byID.Get(id)
	if !ok {
		return nil
	}
	return &b.volumes[idx]
}

// UpdateVolume moves a volume to new bounds. The tree keeps its topology;
// call Refit to restore ancestor bounds, or Build if movement was large
// enough to degrade the tree.
func (b *BVH) UpdateVolume(id uint32, bounds geom.AABB) bool {
	vol := b.Volume(id)
	if vol == nil {
		return false
	}
	vol.Bounds = bounds
	vol.Chunk.Bounds = bounds
	return true
}

// RemoveVolume unregisters and drops a volume. Requires a Build before the
// next lookup.
func (b *BVH) RemoveVolume(id uint32) bool {
	idx, ok := b.byID.Get(id)
	if !ok {
		return false
	}
	vol := b.volumes[idx]
	if b.reg != nil {
		b.reg.Unregister(vol.Chunk.Key)
	}
	b.byID.Del(id)

	last := int32(len(b.volumes) - 1)
	if idx != last {
		b.volumes[idx] = b.volumes[last]
		b.byID.Put(b.volumes[idx].ID, idx)
	}
	b.volumes = b.volumes[:last]
	b.root = nilNode
	b.nodes = b.nodes[:0]
	return true
}

// Build rebuilds the hierarchy top-down: at each level the remaining
// volumes are split at the median of their centers along the longest axis
// of their enclosing bounds. This approximates a good tree in O(n log n)
// without evaluating true surface-area cost.
func (b *BVH) Build() {
	b.nodes = b.nodes[:0]
	if len(b.volumes) == 0 {
		b.root = nilNode
		return
	}

	order := make([]int32, len(b.volumes))
	for i := range order {
		order[i] = int32(i)
	}
	b.root = b.buildRange(order)
}

func (b *BVH) buildRange(order []int32) int32 {
	if len(order) == 1 {
		b.nodes = append(b.nodes, bvhNode{
			bounds: b.volumes[order[0]].Bounds,
			left:   nilNode,
			right:  nilNode,
			leaf:   order[0],
		})
		return int32(len(b.nodes) - 1)
	}

	enclosing := b.volumes[order[0]].Bounds
	for _, vi := range order[1:] {
		enclosing = enclosing.Union(b.volumes[vi].Bounds)
	}
	axis := enclosing.LongestAxis()

	slices.SortFunc(order, func(x, y int32) int {
		return cmp.Compare(b.volumes[x].Bounds.Center()[axis], b.volumes[y].Bounds.Center()[axis])
	})
	mid := len(order) / 2

	// Parent slot first so ancestors always precede descendants; Refit
	// relies on that ordering.
	ni := int32(len(b.nodes))
	b.nodes = append(b.nodes, bvhNode{leaf: nilNode})

	left := b.buildRange(order[:mid])
	right := b.buildRange(order[mid:])

	b.nodes[ni].left = left
	b.nodes[ni].right = right
	b.nodes[ni].bounds = b.nodes[left].bounds.Union(b.nodes[right].bounds)
	return ni
}

// Refit recomputes node bounds bottom-up after volumes moved, without
// re-partitioning. Only valid while the volume set is unchanged since the
// last Build.
func (b *BVH) Refit() {
	for i := len(b.nodes) - 1; i >= 0; i-- {
		node := &b.nodes[i]
		if node.leaf >= 0 {
			node.bounds = b.volumes[node.leaf].Bounds
		} else {
			node.bounds = b.nodes[node.left].bounds.Union(b.nodes[node.right].bounds)
		}
	}
}

// GetChunk descends to the volume containing the point. When both children
// contain it the left child always wins; the descent does not backtrack, so
// a point in overlapping sibling bounds resolves to the leftmost candidate.
// Under ClampToEdge a point outside every volume resolves to the nearest
// volume instead of nil.
func (b *BVH) GetChunk(point mgl32.Vec3, policy Policy) *spatial.Chunk {
	ni := b.root
	for ni != nilNode {
		node := &b.nodes[ni]
		if node.leaf >= 0 {
			if node.bounds.ContainsClosed(point) {
				return b.volumes[node.leaf].Chunk
			}
			break
		}
		if b.nodes[node.left].bounds.ContainsClosed(point) {
			ni = node.left
			continue
		}
		if b.nodes[node.right].bounds.ContainsClosed(point) {
			ni = node.right
			continue
		}
		break
	}

	if policy == Reject {
		return nil
	}
	return b.nearestVolumeChunk(point)
}

func (b *BVH) nearestVolumeChunk(point mgl32.Vec3) *spatial.Chunk {
	var best *spatial.Chunk
	bestDist := float32(0)
	for i := range b.volumes {
		d := b.volumes[i].Bounds.DistSqToPoint(point)
		if best == nil || d < bestDist {
			best = b.volumes[i].Chunk
			bestDist = d
		}
	}
	return best
}

// GlobalStore returns the store for region-independent entities.
func (b *BVH) GlobalStore() *ecs.Store {
	return b.global
}

// RegisterAllChunks registers every volume under the given level id.
func (b *BVH) RegisterAllChunks(reg *spatial.Registry, level uint16) {
	b.reg = reg
	b.level = level
	for i := range b.volumes {
		c := b.volumes[i].Chunk
		c.Key.Level = level
		reg.Register(c.Key, c.Store)
	}
}

// EntityCount returns the live entity total across the global store and
// every volume.
func (b *BVH) EntityCount() int {
	total := b.global.Count()
	for i := range b.volumes {
		total += b.volumes[i].Chunk.Count()
	}
	return total
}

// Chunks visits every volume's chunk.
func (b *BVH) Chunks(fn func(*spatial.Chunk) bool) {
	for i := range b.volumes {
		if !fn(b.volumes[i].Chunk) {
			return
		}
	}
}

// CullChunksEach walks the hierarchy, pruning subtrees outside the frustum.
func (b *BVH) CullChunksEach(f geom.Frustum, fn func(*spatial.Chunk) bool) {
	if b.root != nilNode {
		b.cullNode(b.root, f, fn)
	}
}

func (b *BVH) cullNode(ni int32, f geom.Frustum, fn func(*spatial.Chunk) bool) bool {
	node := &b.nodes[ni]
	if !f.IntersectsAABB(node.bounds) {
		return true
	}
	if node.leaf >= 0 {
		return fn(b.volumes[node.leaf].Chunk)
	}
	if !b.cullNode(node.left, f, fn) {
		return false
	}
	return b.cullNode(node.right, f, fn)
}

// CullChunks returns the volumes whose bounds intersect the frustum.
func (b *BVH) CullChunks(f geom.Frustum) []*spatial.Chunk {
	return collectCulled(b, f)
}

// CullChunksBand is CullChunks restricted to a vertical band.
func (b *BVH) CullChunksBand(f geom.Frustum, yMin, yMax float32) []*spatial.Chunk {
	var out []*spatial.Chunk
	b.CullChunksEach(f, func(c *spatial.Chunk) bool {
		if bandOverlaps(c.Bounds, yMin, yMax) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// CullChunksNear returns up to maxCount surviving volumes, nearest first.
func (b *BVH) CullChunksNear(f geom.Frustum, point mgl32.Vec3, maxCount int) []*spatial.Chunk {
	return selectNearest(b.CullChunks(f), point, maxCount)
}
