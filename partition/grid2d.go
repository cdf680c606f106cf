package partition

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/plus3/tessera/ecs"
	"github.com/plus3/tessera/geom"
	"github.com/plus3/tessera/spatial"
)

// Grid2D partitions a rectangular region into a fixed width×height array of
// square cells on the X/Z plane, each spanning the full vertical extent.
// All chunks exist from construction; nothing is ever created or destroyed,
// only reloaded.
type Grid2D struct {
	bounds     geom.AABB
	cellSize   float32
	width      int
	height     int
	chunks     []*spatial.Chunk // row-major, index = cz*width + cx
	global     *ecs.Store
	components *ecs.ComponentRegistry
	reg        *spatial.Registry
	level      uint16
}

var _ Partition = (*Grid2D)(nil)

// NewGrid2D creates a grid of width×height cells of the given size, with its
// minimum corner at origin and cells spanning [yMin, yMax] vertically.
func NewGrid2D(components *ecs.ComponentRegistry, origin mgl32.Vec3, width, height int, cellSize, yMin, yMax float32) *Grid2D {
	if width <= 0 || height <= 0 {
		panic("grid dimensions must be positive")
	}
	if cellSize <= 0 {
		panic("grid cell size must be positive")
	}

	g := &Grid2D{
		bounds: geom.AABB{
			Min: mgl32.Vec3{origin[0], yMin, origin[2]},
			Max: mgl32.Vec3{
				origin[0] + float32(width)*cellSize,
				yMax,
				origin[2] + float32(height)*cellSize,
			},
		},
		cellSize:   cellSize,
		width:      width,
		height:     height,
		chunks:     make([]*spatial.Chunk, width*height),
		global:     ecs.NewStore(components),
		components: components,
	}

	for cz := 0; cz < height; cz++ {
		for cx := 0; cx < width; cx++ {
			cellBounds := geom.AABB{
				Min: mgl32.Vec3{origin[0] + float32(cx)*cellSize, yMin, origin[2] + float32(cz)*cellSize},
				Max: mgl32.Vec3{origin[0] + float32(cx+1)*cellSize, yMax, origin[2] + float32(cz+1)*cellSize},
			}
			key := spatial.GridKey(0, spatial.SchemeGrid2D, 0, geom.Morton2(uint32(cx), uint32(cz)))
			g.chunks[cz*width+cx] = spatial.NewChunk(cellBounds, components, key)
		}
	}

	return g
}

// ChunkAt returns the chunk for an explicit cell coordinate, or nil when the
// coordinate is out of range.
func (g *Grid2D) ChunkAt(cx, cz int) *spatial.Chunk {
	if cx < 0 || cx >= g.width || cz < 0 || cz >= g.height {
		return nil
	}
	return g.chunks[cz*g.width+cx]
}

// GetChunk locates the cell containing the point's X/Z coordinate. The Y
// coordinate does not participate in the lookup.
func (g *Grid2D) GetChunk(point mgl32.Vec3, policy Policy) *spatial.Chunk {
	cx := int(math.Floor(float64((point[0] - g.bounds.Min[0]) / g.cellSize)))
	cz := int(math.Floor(float64((point[2] - g.bounds.Min[2]) / g.cellSize)))

	if cx < 0 || cx >= g.width || cz < 0 || cz >= g.height {
		if policy == Reject {
			return nil
		}
		cx = clampInt(cx, 0, g.width-1)
		cz = clampInt(cz, 0, g.height-1)
	}
	return g.chunks[cz*g.width+cx]
}

// GlobalStore returns the store for region-independent entities.
func (g *Grid2D) GlobalStore() *ecs.Store {
	return g.global
}

// RegisterAllChunks registers every cell under the given level id. Called
// once per level load; later ReloadCell calls keep the registry current.
func (g *Grid2D) RegisterAllChunks(reg *spatial.Registry, level uint16) {
	g.reg = reg
	g.level = level
	for _, c := range g.chunks {
		c.Key.Level = level
		reg.Register(c.Key, c.Store)
	}
}

// ReloadCell bumps a single cell's generation and re-registers it,
// invalidating stale keys held elsewhere. Returns the new key.
func (g *Grid2D) ReloadCell(cx, cz int) spatial.ChunkKey {
	if g.reg == nil {
		panic("grid not registered; call RegisterAllChunks first")
	}
	c := g.ChunkAt(cx, cz)
	if c == nil {
		panic("grid cell out of range")
	}
	return c.Reload(g.reg)
}

// EntityCount returns the live entity total across the global store and all
// cells.
func (g *Grid2D) EntityCount() int {
	total := g.global.Count()
	for _, c := range g.chunks {
		total += c.Count()
	}
	return total
}

// Chunks visits every cell.
func (g *Grid2D) Chunks(fn func(*spatial.Chunk) bool) {
	for _, c := range g.chunks {
		if !fn(c) {
			return
		}
	}
}

// CullChunksEach visits every cell whose bounds intersect the frustum.
func (g *Grid2D) CullChunksEach(f geom.Frustum, fn func(*spatial.Chunk) bool) {
	for _, c := range g.chunks {
		if !f.IntersectsAABB(c.Bounds) {
			continue
		}
		if !fn(c) {
			return
		}
	}
}

// CullChunks returns the cells whose bounds intersect the frustum.
func (g *Grid2D) CullChunks(f geom.Frustum) []*spatial.Chunk {
	return collectCulled(g, f)
}

// CullChunksBand is CullChunks restricted to a vertical band. The band test
// runs before the six-plane test, rejecting columns that can never overlap.
func (g *Grid2D) CullChunksBand(f geom.Frustum, yMin, yMax float32) []*spatial.Chunk {
	var out []*spatial.Chunk
	for _, c := range g.chunks {
		if !bandOverlaps(c.Bounds, yMin, yMax) {
			continue
		}
		if f.IntersectsAABB(c.Bounds) {
			out = append(out, c)
		}
	}
	return out
}

// CullChunksNear returns up to maxCount surviving cells, nearest first.
func (g *Grid2D) CullChunksNear(f geom.Frustum, point mgl32.Vec3, maxCount int) []*spatial.Chunk {
	return selectNearest(g.CullChunks(f), point, maxCount)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
