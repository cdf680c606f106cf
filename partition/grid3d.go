package partition

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/plus3/tessera/ecs"
	"github.com/plus3/tessera/geom"
	"github.com/plus3/tessera/spatial"
)

// Grid3D partitions a box into a fixed width×height×depth array of cubic
// cells. Like Grid2D, the cell set is immutable after construction.
type Grid3D struct {
	bounds     geom.AABB
	cellSize   float32
	width      int // cells along X
	height     int // cells along Y
	depth      int // cells along Z
	chunks     []*spatial.Chunk // index = (cz*height+cy)*width + cx
	global     *ecs.Store
	components *ecs.ComponentRegistry
	reg        *spatial.Registry
	level      uint16
}

var _ Partition = (*Grid3D)(nil)

// NewGrid3D creates a grid of width×height×depth cells of the given size,
// with its minimum corner at origin.
func NewGrid3D(components *ecs.ComponentRegistry, origin mgl32.Vec3, width, height, depth int, cellSize float32) *Grid3D {
	if width <= 0 || height <= 0 || depth <= 0 {
		panic("grid dimensions must be positive")
	}
	if cellSize <= 0 {
		panic("grid cell size must be positive")
	}

	g := &Grid3D{
		bounds: geom.AABB{
			Min: origin,
			Max: origin.Add(mgl32.Vec3{
				float32(width) * cellSize,
				float32(height) * cellSize,
				float32(depth) * cellSize,
			}),
		},
		cellSize:   cellSize,
		width:      width,
		height:     height,
		depth:      depth,
		chunks:     make([]*spatial.Chunk, width*height*depth),
		global:     ecs.NewStore(components),
		components: components,
	}

	for cz := 0; cz < depth; cz++ {
		for cy := 0; cy < height; cy++ {
			for cx := 0; cx < width; cx++ {
				cellMin := origin.Add(mgl32.Vec3{
					float32(cx) * cellSize,
					float32(cy) * cellSize,
					float32(cz) * cellSize,
				})
				cellBounds := geom.AABB{
					Min: cellMin,
					Max: cellMin.Add(mgl32.Vec3{cellSize, cellSize, cellSize}),
				}
				key := spatial.GridKey(0, spatial.SchemeGrid3D, 0,
					geom.Morton3(uint32(cx), uint32(cy), uint32(cz)))
				g.chunks[g.index(cx, cy, cz)] = spatial.NewChunk(cellBounds, components, key)
			}
		}
	}

	return g
}

func (g *Grid3D) index(cx, cy, cz int) int {
	return (cz*g.height+cy)*g.width + cx
}

// ChunkAt returns the chunk for an explicit cell coordinate, or nil when the
// coordinate is out of range.
func (g *Grid3D) ChunkAt(cx, cy, cz int) *spatial.Chunk {
	if cx < 0 || cx >= g.width || cy < 0 || cy >= g.height || cz < 0 || cz >= g.depth {
		return nil
	}
	return g.chunks[g.index(cx, cy, cz)]
}

// GetChunk locates the cell containing the point.
func (g *Grid3D) GetChunk(point mgl32.Vec3, policy Policy) *spatial.Chunk {
	cx := int(math.Floor(float64((point[0] - g.bounds.Min[0]) / g.cellSize)))
	cy := int(math.Floor(float64((point[1] - g.bounds.Min[1]) / g.cellSize)))
	cz := int(math.Floor(float64((point[2] - g.bounds.Min[2]) / g.cellSize)))

	if cx < 0 || cx >= g.width || cy < 0 || cy >= g.height || cz < 0 || cz >= g.depth {
		if policy == Reject {
			return nil
		}
		cx = clampInt(cx, 0, g.width-1)
		cy = clampInt(cy, 0, g.height-1)
		cz = clampInt(cz, 0, g.depth-1)
	}
	return g.chunks[g.index(cx, cy, cz)]
}

// GlobalStore returns the store for region-independent entities.
func (g *Grid3D) GlobalStore() *ecs.Store {
	return g.global
}

// RegisterAllChunks registers every cell under the given level id.
func (g *Grid3D) RegisterAllChunks(reg *spatial.Registry, level uint16) {
	g.reg = reg
	g.level = level
	for _, c := range g.chunks {
		c.Key.Level = level
		reg.Register(c.Key, c.Store)
	}
}

// ReloadCell bumps a single cell's generation and re-registers it.
func (g *Grid3D) ReloadCell(cx, cy, cz int) spatial.ChunkKey {
	if g.reg == nil {
		panic("grid not registered; call RegisterAllChunks first")
	}
	c := g.ChunkAt(cx, cy, cz)
	if c == nil {
		panic("grid cell out of range")
	}
	return c.Reload(g.reg)
}

// EntityCount returns the live entity total across the global store and all
// cells.
func (g *Grid3D) EntityCount() int {
	total := g.global.Count()
	for _, c := range g.chunks {
		total += c.Count()
	}
	return total
}

// Chunks visits every cell.
func (g *Grid3D) Chunks(fn func(*spatial.Chunk) bool) {
	for _, c := range g.chunks {
		if !fn(c) {
			return
		}
	}
}

// CullChunksEach visits every cell whose bounds intersect the frustum.
func (g *Grid3D) CullChunksEach(f geom.Frustum, fn func(*spatial.Chunk) bool) {
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
func (g *Grid3D) CullChunks(f geom.Frustum) []*spatial.Chunk {
	return collectCulled(g, f)
}

// CullChunksBand is CullChunks restricted to a vertical band, with the cheap
// band test ahead of the plane test.
func (g *Grid3D) CullChunksBand(f geom.Frustum, yMin, yMax float32) []*spatial.Chunk {
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
func (g *Grid3D) CullChunksNear(f geom.Frustum, point mgl32.Vec3, maxCount int) []*spatial.Chunk {
	return selectNearest(g.CullChunks(f), point, maxCount)
}
