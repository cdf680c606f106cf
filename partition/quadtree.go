package partition

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/plus3/tessera/ecs"
	"github.com/plus3/tessera/geom"
	"github.com/plus3/tessera/spatial"
)

// Quadtree is an adaptive partition splitting on the X and Z axes; every
// node keeps the full vertical extent. Leaves subdivide when their
// occupancy exceeds the configured maximum and coalesce back on the
// maintenance tick when occupancy falls off.
type Quadtree struct {
	adaptiveTree
}

var _ Partition = (*Quadtree)(nil)

// NewQuadtree creates a quadtree covering bounds.
func NewQuadtree(components *ecs.ComponentRegistry, bounds geom.AABB, cfg TreeConfig) *Quadtree {
	q := &Quadtree{adaptiveTree: newAdaptiveTree(components, bounds, cfg)}
	q.scheme = spatial.SchemeQuadtree
	q.branch = 4
	q.childBounds = geom.AABB.Quadrant
	q.childAt = quadChildAt
	q.splitExtent = quadSplitExtent
	q.cellCode = quadCellCode
	return q
}

func quadChildAt(center, p mgl32.Vec3) int {
	i := 0
	if p[0] >= center[0] {
		i |= 1
	}
	if p[2] >= center[2] {
		i |= 2
	}
	return i
}

func quadSplitExtent(b geom.AABB) float32 {
	size := b.Size()
	return min(size[0], size[2])
}

// quadCellCode derives the key cell from the leaf's lower corner at
// minimum-leaf-size granularity.
func quadCellCode(rootMin, leafMin mgl32.Vec3, minLeaf float32) uint64 {
	cx := uint32((leafMin[0] - rootMin[0]) / minLeaf)
	cz := uint32((leafMin[2] - rootMin[2]) / minLeaf)
	return geom.Morton2(cx, cz)
}
