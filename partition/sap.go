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

// Body is a region tracked by sweep-and-prune: its bounds, its owning chunk
// and a stable id for later updates.
type Body struct {
	Bounds geom.AABB
	Chunk  *spatial.Chunk
	ID     uint32
}

// SweepPrune maintains per-axis sorted orderings of body intervals and
// finds overlapping pairs by sweeping one axis, confirming candidates on
// the others. Mutations only mark the orderings dirty; the sort runs
// lazily before the next sweep or lookup, so bursts of updates cost one
// re-sort. Nearly-sorted input keeps that re-sort cheap.
type SweepPrune struct {
	components *ecs.ComponentRegistry
	global     *ecs.Store
	bodies     []Body
	order      [3][]int32 // body indices sorted by Bounds.Min per axis
	byID       *intmap.Map[uint32, int32]
	reg        *spatial.Registry
	level      uint16
	nextID     uint32
	dirty      bool
}

var _ Partition = (*SweepPrune)(nil)

// NewSweepPrune creates an empty sweep-and-prune set.
func NewSweepPrune(components *ecs.ComponentRegistry) *SweepPrune {
	return &SweepPrune{
		components: components,
		global:     ecs.NewStore(components),
		byID:       intmap.New[uint32, int32](64),
	}
}

// Insert creates a chunk for a new body and returns its id.
func (s *SweepPrune) Insert(bounds geom.AABB) uint32 {
	id := s.nextID
	s.nextID++

	key := spatial.GridKey(s.level, spatial.SchemeSweepPrune, 0, uint64(id))
	chunk := spatial.NewChunk(bounds, s.components, key)
	if s.reg != nil {
		s.reg.Register(chunk.Key, chunk.Store)
	}

	s.byID.Put(id, int32(len(s.bodies)))
	s.bodies = append(s.bodies, Body{Bounds: bounds, Chunk: chunk, ID: id})
	s.dirty = true
	return id
}

// Body returns the body for an id, or nil when unknown. The pointer aliases
// internal storage and is valid only until the next Insert or Remove call.
func (s *SweepPrune) Body(id uint32) *Body {
	idx, ok := s.byID.Get(id)
	if !ok {
		return nil
	}
	return &s.bodies[idx]
}

// UpdateBounds moves a body to new bounds.
func (s *SweepPrune) UpdateBounds(id uint32, bounds geom.AABB) bool {
	body := s.Body(id)
	if body == nil {
		return false
	}
	body.Bounds = bounds
	body.Chunk.Bounds = bounds
	s.dirty = true
	return true
}

// Remove unregisters and drops a body.
func (s *SweepPrune) Remove(id uint32) bool {
	idx, ok := s.byID.Get(id)
	if !ok {
		return false
	}
	body := s.bodies[idx]
	if s.reg != nil {
		s.reg.Unregister(body.Chunk.Key)
	}
	s.byID.Del(id)

	last := int32(len(s.bodies) - 1)
	if idx != last {
		s.bodies[idx] = s.bodies[last]
		s.byID.Put(s.bodies[idx].ID, idx)
	}
	s.bodies = s.bodies[:last]
	s.dirty = true
	return true
}

func (s *SweepPrune) sortIfDirty() {
	if !s.dirty {
		return
	}
	for axis := 0; axis < 3; axis++ {
		if cap(s.order[axis]) < len(s.bodies) {
			s.order[axis] = make([]int32, len(s.bodies))
		}
		s.order[axis] = s.order[axis][:len(s.bodies)]
		for i := range s.order[axis] {
			s.order[axis][i] = int32(i)
		}
		slices.SortStableFunc(s.order[axis], func(x, y int32) int {
			return cmp.Compare(s.bodies[x].Bounds.Min[axis], s.bodies[y].Bounds.Min[axis])
		})
	}
	s.dirty = false
}

// EnumerateOverlapPairs calls fn for every pair of bodies whose bounds
// intersect, sweeping the X ordering with an active set and confirming
// candidates on the full AABB. Return false to stop early. Each pair is
// reported once, in X-sweep order.
func (s *SweepPrune) EnumerateOverlapPairs(fn func(a, b *Body) bool) {
	s.sortIfDirty()

	var active []int32
	for _, bi := range s.order[0] {
		body := &s.bodies[bi]

		// Expire active intervals that end before this one starts.
		live := active[:0]
		for _, ai := range active {
			if s.bodies[ai].Bounds.Max[0] >= body.Bounds.Min[0] {
				live = append(live, ai)
			}
		}
		active = live

		for _, ai := range active {
			if body.Bounds.Intersects(s.bodies[ai].Bounds) {
				if !fn(&s.bodies[ai], body) {
					return
				}
			}
		}
		active = append(active, bi)
	}
}

// GetChunk scans the X ordering up to the first interval starting past the
// point and returns the first body containing it. Under ClampToEdge a
// point outside every body resolves to the nearest body instead of nil.
func (s *SweepPrune) GetChunk(point mgl32.Vec3, policy Policy) *spatial.Chunk {
	s.sortIfDirty()

	for _, bi := range s.order[0] {
		body := &s.bodies[bi]
		if body.Bounds.Min[0] > point[0] {
			break
		}
		if body.Bounds.ContainsClosed(point) {
			return body.Chunk
		}
	}

	if policy == Reject {
		return nil
	}
	return s.nearestBodyChunk(point)
}

func (s *SweepPrune) nearestBodyChunk(point mgl32.Vec3) *spatial.Chunk {
	var best *spatial.Chunk
	bestDist := float32(0)
	for i := range s.bodies {
		d := s.bodies[i].Bounds.DistSqToPoint(point)
		if best == nil || d < bestDist {
			best = s.bodies[i].Chunk
			bestDist = d
		}
	}
	return best
}

// GlobalStore returns the store for region-independent entities.
func (s *SweepPrune) GlobalStore() *ecs.Store {
	return s.global
}

// RegisterAllChunks registers every body under the given level id.
func (s *SweepPrune) RegisterAllChunks(reg *spatial.Registry, level uint16) {
	s.reg = reg
	s.level = level
	for i := range s.bodies {
		c := s.bodies[i].Chunk
		c.Key.Level = level
		reg.Register(c.Key, c.Store)
	}
}

// EntityCount returns the live entity total across the global store and
// every body.
func (s *SweepPrune) EntityCount() int {
	total := s.global.Count()
	for i := range s.bodies {
		total += s.bodies[i].Chunk.Count()
	}
	return total
}

// Chunks visits every body's chunk.
func (s *SweepPrune) Chunks(fn func(*spatial.Chunk) bool) {
	for i := range s.bodies {
		if !fn(s.bodies[i].Chunk) {
			return
		}
	}
}

// CullChunksEach visits every body whose bounds intersect the frustum.
func (s *SweepPrune) CullChunksEach(f geom.Frustum, fn func(*spatial.Chunk) bool) {
	for i := range s.bodies {
		if !f.IntersectsAABB(s.bodies[i].Bounds) {
			continue
		}
		if !fn(s.bodies[i].Chunk) {
			return
		}
	}
}

// CullChunks returns the bodies whose bounds intersect the frustum.
func (s *SweepPrune) CullChunks(f geom.Frustum) []*spatial.Chunk {
	return collectCulled(s, f)
}

// CullChunksBand is CullChunks restricted to a vertical band, with the
// cheap band test ahead of the plane test.
func (s *SweepPrune) CullChunksBand(f geom.Frustum, yMin, yMax float32) []*spatial.Chunk {
	var out []*spatial.Chunk
	for i := range s.bodies {
		if !bandOverlaps(s.bodies[i].Bounds, yMin, yMax) {
			continue
		}
		if f.IntersectsAABB(s.bodies[i].Bounds) {
			out = append(out, s.bodies[i].Chunk)
		}
	}
	return out
}

// CullChunksNear returns up to maxCount surviving bodies, nearest first.
func (s *SweepPrune) CullChunksNear(f geom.Frustum, point mgl32.Vec3, maxCount int) []*spatial.Chunk {
	return selectNearest(s.CullChunks(f), point, maxCount)
}
