package partition

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/plus3/tessera/ecs"
	"github.com/plus3/tessera/geom"
	"github.com/plus3/tessera/spatial"
)

const nilNode = int32(-1)

// TreeConfig tunes an adaptive tree partition. Zero fields take defaults.
type TreeConfig struct {
	// MaxEntitiesPerLeaf is the occupancy above which a leaf subdivides,
	// provided its extent still allows it. Default 64.
	MaxEntitiesPerLeaf int
	// CoalesceBelow is the summed child occupancy at or below which an
	// all-leaf node collapses back into a single leaf. Default 16.
	CoalesceBelow int
	// MinLeafSize is the smallest leaf edge length on split axes.
	// Default 1.
	MinLeafSize float32
	// CoalesceInterval is the number of seconds between coalesce passes
	// driven by Update. Default 1.
	CoalesceInterval float64
}

func (c TreeConfig) withDefaults() TreeConfig {
	if c.MaxEntitiesPerLeaf <= 0 {
		c.MaxEntitiesPerLeaf = 64
	}
	if c.CoalesceBelow <= 0 {
		c.CoalesceBelow = 16
	}
	if c.MinLeafSize <= 0 {
		c.MinLeafSize = 1
	}
	if c.CoalesceInterval <= 0 {
		c.CoalesceInterval = 1
	}
	return c
}

// TreeStats describes the current shape of an adaptive tree.
type TreeStats struct {
	Nodes    int
	Leaves   int
	Chunks   int
	MaxDepth int
}

// treeNode is one arena slot. A node is a leaf iff its child slots are
// empty; children are always allocated as a full set. chunk is non-nil for
// leaves that have seen occupancy, and exceptionally for internal nodes
// still sheltering entities whose position could not be resolved during
// subdivision.
type treeNode struct {
	bounds     geom.AABB
	depth      uint8
	generation uint16
	children   [8]int32
	chunk      *spatial.Chunk
}

// adaptiveTree is the shared core behind Quadtree and Octree: nodes live in
// a flat arena with index-based child links and a free list, so subdivision
// and coalescing recycle slots instead of churning allocations.
type adaptiveTree struct {
	cfg    TreeConfig
	scheme spatial.SchemeTag
	branch int

	childBounds func(geom.AABB, int) geom.AABB
	childAt     func(center mgl32.Vec3, p mgl32.Vec3) int
	splitExtent func(geom.AABB) float32
	cellCode    func(rootMin mgl32.Vec3, leafMin mgl32.Vec3, minLeaf float32) uint64

	nodes     []treeNode
	freeNodes []int32
	root      int32

	global     *ecs.Store
	components *ecs.ComponentRegistry
	reg        *spatial.Registry
	level      uint16

	sinceCoalesce float64
}

func newAdaptiveTree(components *ecs.ComponentRegistry, bounds geom.AABB, cfg TreeConfig) adaptiveTree {
	t := adaptiveTree{
		cfg:        cfg.withDefaults(),
		global:     ecs.NewStore(components),
		components: components,
	}
	t.root = t.allocNode(bounds, 0)
	return t
}

func (t *adaptiveTree) allocNode(bounds geom.AABB, depth uint8) int32 {
	fresh := treeNode{bounds: bounds, depth: depth}
	for i := range fresh.children {
		fresh.children[i] = nilNode
	}

	if n := len(t.freeNodes); n > 0 {
		ni := t.freeNodes[n-1]
		t.freeNodes = t.freeNodes[:n-1]
		t.nodes[ni] = fresh
		return ni
	}
	t.nodes = append(t.nodes, fresh)
	return int32(len(t.nodes) - 1)
}

func (t *adaptiveTree) isLeaf(ni int32) bool {
	return t.nodes[ni].children[0] == nilNode
}

func (t *adaptiveTree) canSplit(ni int32) bool {
	node := &t.nodes[ni]
	return node.depth < math.MaxUint8 &&
		t.splitExtent(node.bounds) >= 2*t.cfg.MinLeafSize
}

func (t *adaptiveTree) keyFor(ni int32) spatial.ChunkKey {
	node := &t.nodes[ni]
	cell := t.cellCode(t.nodes[t.root].bounds.Min, node.bounds.Min, t.cfg.MinLeafSize)
	return spatial.TreeKey(t.level, t.scheme, node.depth, node.generation, cell)
}

// ensureChunk creates and registers the node's chunk on first occupancy.
func (t *adaptiveTree) ensureChunk(ni int32) *spatial.Chunk {
	node := &t.nodes[ni]
	if node.chunk == nil {
		node.chunk = spatial.NewChunk(node.bounds, t.components, t.keyFor(ni))
		if t.reg != nil {
			t.reg.Register(node.chunk.Key, node.chunk.Store)
		}
	}
	return node.chunk
}

func (t *adaptiveTree) leafFor(p mgl32.Vec3) int32 {
	ni := t.root
	for !t.isLeaf(ni) {
		node := &t.nodes[ni]
		ni = node.children[t.childAt(node.bounds.Center(), p)]
	}
	return ni
}

// GetChunk descends to the leaf owning the point, creating the leaf's chunk
// on first occupancy. Structural state is touched only on that first visit;
// callers still follow the external-serialization contract.
func (t *adaptiveTree) GetChunk(point mgl32.Vec3, policy Policy) *spatial.Chunk {
	rootBounds := t.nodes[t.root].bounds
	if !rootBounds.Contains(point) {
		if policy == Reject {
			return nil
		}
		point = clampIntoAABB(rootBounds, point)
	}
	return t.ensureChunk(t.leafFor(point))
}

// EnsureLeafForPoint descends to the point's leaf, splitting empty leaves
// on the way until the minimum leaf size is reached, and returns the
// finest leaf's chunk. Occupied leaves are never split here; that requires
// a position accessor (see SubdivideIfOverCapacity). Returns nil for
// points outside the tree's extent.
func (t *adaptiveTree) EnsureLeafForPoint(point mgl32.Vec3) *spatial.Chunk {
	if !t.nodes[t.root].bounds.Contains(point) {
		return nil
	}

	ni := t.leafFor(point)
	for t.canSplit(ni) {
		if c := t.nodes[ni].chunk; c != nil && c.Count() > 0 {
			break
		}
		t.subdivide(ni, nil)
		node := &t.nodes[ni]
		ni = node.children[t.childAt(node.bounds.Center(), point)]
	}
	return t.ensureChunk(ni)
}

// subdivide turns a leaf into an internal node, allocating the full child
// set at once, then re-routes the leaf's entities into the children by
// position. Entities whose position posFn cannot resolve stay behind in
// the parent's store, which remains valid (and registered) on the now
// internal node; callers that never want stragglers must supply an
// accessor covering every entity they insert.
func (t *adaptiveTree) subdivide(ni int32, posFn PositionFunc) {
	bounds := t.nodes[ni].bounds
	depth := t.nodes[ni].depth

	var kids [8]int32
	for i := range kids {
		kids[i] = nilNode
	}
	for i := 0; i < t.branch; i++ {
		kids[i] = t.allocNode(t.childBounds(bounds, i), depth+1)
	}

	node := &t.nodes[ni] // re-take: allocNode may have grown the arena
	node.children = kids

	if node.chunk == nil {
		return
	}

	src := node.chunk.Store
	if posFn != nil {
		center := bounds.Center()
		ids := make([]ecs.EntityId, 0, src.Count())
		for id := range src.EntityIds() {
			ids = append(ids, id)
		}
		for _, id := range ids {
			pos, ok := posFn(src, id)
			if !ok {
				continue // unroutable: stays in the parent store
			}
			dst := t.ensureChunk(kids[t.childAt(center, pos)])
			src.MoveTo(id, dst.Store)
		}
	}

	if src.Count() == 0 {
		if t.reg != nil {
			t.reg.Unregister(node.chunk.Key)
		}
		node.chunk = nil
	}
}

// SubdivideIfOverCapacity splits every leaf whose occupancy exceeds the
// configured maximum and whose extent still allows splitting, re-routing
// entities through posFn. Children produced by a split are revisited, so
// no leaf that can legally split exceeds the maximum once the pass
// returns. Returns the number of subdivisions performed.
func (t *adaptiveTree) SubdivideIfOverCapacity(posFn PositionFunc) int {
	subdivided := 0
	stack := []int32{t.root}
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if t.isLeaf(ni) {
			c := t.nodes[ni].chunk
			if c == nil || c.Count() <= t.cfg.MaxEntitiesPerLeaf || !t.canSplit(ni) {
				continue
			}
			t.subdivide(ni, posFn)
			subdivided++
		}
		for i := 0; i < t.branch; i++ {
			stack = append(stack, t.nodes[ni].children[i])
		}
	}
	return subdivided
}

// Update advances the maintenance clock and runs a bottom-up coalesce pass
// once per configured interval. Not every frame: coalescing walks the whole
// tree.
func (t *adaptiveTree) Update(deltaTime float64) {
	t.sinceCoalesce += deltaTime
	if t.sinceCoalesce < t.cfg.CoalesceInterval {
		return
	}
	t.sinceCoalesce = 0
	t.coalescePass(t.root)
}

func (t *adaptiveTree) coalescePass(ni int32) {
	if t.isLeaf(ni) {
		return
	}
	for i := 0; i < t.branch; i++ {
		t.coalescePass(t.nodes[ni].children[i])
	}

	// A node collapses only when every child is (now) a leaf and their
	// summed occupancy is small enough to live in one store again.
	sum := 0
	for i := 0; i < t.branch; i++ {
		ci := t.nodes[ni].children[i]
		if !t.isLeaf(ci) {
			return
		}
		if c := t.nodes[ci].chunk; c != nil {
			sum += c.Count()
		}
	}
	if sum > t.cfg.CoalesceBelow {
		return
	}
	t.coalesce(ni)
}

// coalesce merges all children into the parent's reinstated store, frees
// the child nodes and bumps the parent's generation so stale keys to the
// pre-coalesce chunk miss.
func (t *adaptiveTree) coalesce(ni int32) {
	node := &t.nodes[ni]
	node.generation++

	if node.chunk != nil {
		if t.reg != nil {
			t.reg.Unregister(node.chunk.Key)
		}
		node.chunk.Key = t.keyFor(ni)
		if t.reg != nil {
			t.reg.Register(node.chunk.Key, node.chunk.Store)
		}
	}

	for i := 0; i < t.branch; i++ {
		ci := node.children[i]
		child := &t.nodes[ci]
		if child.chunk != nil {
			child.chunk.Store.MoveAllTo(t.ensureChunk(ni).Store)
			if t.reg != nil {
				t.reg.Unregister(child.chunk.Key)
			}
			child.chunk = nil
		}
		node.children[i] = nilNode
		t.freeNodes = append(t.freeNodes, ci)
	}
}

// ReloadLeafByPoint bumps the generation of the leaf owning the point and
// re-registers it, returning the new key. The second result is false when
// the point is outside the tree or its leaf has no chunk yet.
func (t *adaptiveTree) ReloadLeafByPoint(point mgl32.Vec3) (spatial.ChunkKey, bool) {
	if t.reg == nil {
		panic("tree not registered; call RegisterAllChunks first")
	}
	if !t.nodes[t.root].bounds.Contains(point) {
		return spatial.ChunkKey{}, false
	}
	ni := t.leafFor(point)
	node := &t.nodes[ni]
	if node.chunk == nil {
		return spatial.ChunkKey{}, false
	}
	key := node.chunk.Reload(t.reg)
	node.generation = key.Generation
	return key, true
}

// GlobalStore returns the store for region-independent entities.
func (t *adaptiveTree) GlobalStore() *ecs.Store {
	return t.global
}

// RegisterAllChunks registers every existing chunk under the given level id
// and attaches the registry for chunks created or destroyed later.
func (t *adaptiveTree) RegisterAllChunks(reg *spatial.Registry, level uint16) {
	t.reg = reg
	t.level = level
	t.eachNodeChunk(t.root, func(c *spatial.Chunk) bool {
		c.Key.Level = level
		reg.Register(c.Key, c.Store)
		return true
	})
}

// EntityCount returns the live entity total across the global store and
// every chunk in the tree.
func (t *adaptiveTree) EntityCount() int {
	total := t.global.Count()
	t.eachNodeChunk(t.root, func(c *spatial.Chunk) bool {
		total += c.Count()
		return true
	})
	return total
}

// Chunks visits every chunk in the tree.
func (t *adaptiveTree) Chunks(fn func(*spatial.Chunk) bool) {
	t.eachNodeChunk(t.root, fn)
}

func (t *adaptiveTree) eachNodeChunk(ni int32, fn func(*spatial.Chunk) bool) bool {
	node := &t.nodes[ni]
	if node.chunk != nil {
		if !fn(node.chunk) {
			return false
		}
	}
	if t.isLeaf(ni) {
		return true
	}
	for i := 0; i < t.branch; i++ {
		if !t.eachNodeChunk(node.children[i], fn) {
			return false
		}
	}
	return true
}

// CullChunksEach walks the tree top-down, pruning subtrees whose bounds do
// not intersect the frustum, and visits every surviving chunk.
func (t *adaptiveTree) CullChunksEach(f geom.Frustum, fn func(*spatial.Chunk) bool) {
	t.cullNode(t.root, f, false, 0, 0, fn)
}

// CullChunks returns the chunks whose bounds intersect the frustum.
func (t *adaptiveTree) CullChunks(f geom.Frustum) []*spatial.Chunk {
	var out []*spatial.Chunk
	t.cullNode(t.root, f, false, 0, 0, func(c *spatial.Chunk) bool {
		out = append(out, c)
		return true
	})
	return out
}

// CullChunksBand is CullChunks restricted to a vertical band; the band
// prunes whole subtrees before the plane test.
func (t *adaptiveTree) CullChunksBand(f geom.Frustum, yMin, yMax float32) []*spatial.Chunk {
	var out []*spatial.Chunk
	t.cullNode(t.root, f, true, yMin, yMax, func(c *spatial.Chunk) bool {
		out = append(out, c)
		return true
	})
	return out
}

// CullChunksNear returns up to maxCount surviving chunks, nearest first.
func (t *adaptiveTree) CullChunksNear(f geom.Frustum, point mgl32.Vec3, maxCount int) []*spatial.Chunk {
	return selectNearest(t.CullChunks(f), point, maxCount)
}

func (t *adaptiveTree) cullNode(ni int32, f geom.Frustum, banded bool, yMin, yMax float32, fn func(*spatial.Chunk) bool) bool {
	node := &t.nodes[ni]
	if banded && !bandOverlaps(node.bounds, yMin, yMax) {
		return true
	}
	if !f.IntersectsAABB(node.bounds) {
		return true
	}
	if node.chunk != nil {
		if !fn(node.chunk) {
			return false
		}
	}
	if t.isLeaf(ni) {
		return true
	}
	for i := 0; i < t.branch; i++ {
		if !t.cullNode(node.children[i], f, banded, yMin, yMax, fn) {
			return false
		}
	}
	return true
}

// Stats reports the tree's current shape.
func (t *adaptiveTree) Stats() TreeStats {
	var stats TreeStats
	t.statNode(t.root, &stats)
	return stats
}

func (t *adaptiveTree) statNode(ni int32, stats *TreeStats) {
	node := &t.nodes[ni]
	stats.Nodes++
	if int(node.depth) > stats.MaxDepth {
		stats.MaxDepth = int(node.depth)
	}
	if node.chunk != nil {
		stats.Chunks++
	}
	if t.isLeaf(ni) {
		stats.Leaves++
		return
	}
	for i := 0; i < t.branch; i++ {
		t.statNode(node.children[i], stats)
	}
}

func clampIntoAABB(b geom.AABB, p mgl32.Vec3) mgl32.Vec3 {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			p[i] = b.Min[i]
		}
		if p[i] >= b.Max[i] {
			p[i] = math.Nextafter32(b.Max[i], b.Min[i])
		}
	}
	return p
}
