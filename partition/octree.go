package partition

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/plus3/tessera/ecs"
	"github.com/plus3/tessera/geom"
	"github.com/plus3/tessera/spatial"
)

// Octree is the three-axis counterpart of Quadtree, splitting each node
// into eight octants.
type Octree struct {
	adaptiveTree
}

var _ Partition = (*Octree)(nil)

// NewOctree creates an octree covering bounds.
func NewOctree(components *ecs.ComponentRegistry, bounds geom.AABB, cfg TreeConfig) *Octree {
	o := &Octree{adaptiveTree: newAdaptiveTree(components, bounds, cfg)}
	o.scheme = spatial.SchemeOctree
	o.branch = 8
	o.childBounds = geom.AABB.Octant
	o.childAt = octChildAt
	o.splitExtent = octSplitExtent
	o.cellCode = octCellCode
	return o
}

func octChildAt(center, p mgl32.Vec3) int {
	i := 0
	if p[0] >= center[0] {
		i |= 1
	}
	if p[1] >= center[1] {
		i |= 2
	}
	if p[2] >= center[2] {
		i |= 4
	}
	return i
}

func octSplitExtent(b geom.AABB) float32 {
	size := b.Size()
	return min(size[0], size[1], size[2])
}

func octCellCode(rootMin, leafMin mgl32.Vec3, minLeaf float32) uint64 {
	cx := uint32((leafMin[0] - rootMin[0]) / minLeaf)
	cy := uint32((leafMin[1] - rootMin[1]) / minLeaf)
	cz := uint32((leafMin[2] - rootMin[2]) / minLeaf)
	return geom.Morton3(cx, cy, cz)
}
