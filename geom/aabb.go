package geom

import "github.com/go-gl/mathgl/mgl32"

// AABB is an axis-aligned bounding box described by its minimum and maximum
// corners. The zero value is a degenerate box at the origin.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewAABB builds a box from two corners, swapping per-axis so that
// Min <= Max holds on every axis.
func NewAABB(a, b mgl32.Vec3) AABB {
	box := AABB{Min: a, Max: b}
	for i := 0; i < 3; i++ {
		if box.Min[i] > box.Max[i] {
			box.Min[i], box.Max[i] = box.Max[i], box.Min[i]
		}
	}
	return box
}

// Contains reports whether the point lies inside the box. The test is
// half-open on the max side so that adjacent boxes tile space without
// double-claiming shared faces.
func (b AABB) Contains(p mgl32.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] < b.Max[0] &&
		p[1] >= b.Min[1] && p[1] < b.Max[1] &&
		p[2] >= b.Min[2] && p[2] < b.Max[2]
}

// ContainsClosed is like Contains but inclusive on the max side, for
// tolerance checks against boundary points.
func (b AABB) ContainsClosed(p mgl32.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// Intersects reports whether the two boxes overlap on all three axes.
func (b AABB) Intersects(o AABB) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

// Union returns the smallest box enclosing both inputs.
func (b AABB) Union(o AABB) AABB {
	var out AABB
	for i := 0; i < 3; i++ {
		out.Min[i] = min(b.Min[i], o.Min[i])
		out.Max[i] = max(b.Max[i], o.Max[i])
	}
	return out
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the per-axis extent of the box.
func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// LongestAxis returns the axis index (0, 1 or 2) with the largest extent.
func (b AABB) LongestAxis() int {
	size := b.Size()
	axis := 0
	if size[1] > size[axis] {
		axis = 1
	}
	if size[2] > size[axis] {
		axis = 2
	}
	return axis
}

// DistSqToPoint returns the squared distance from p to the closest point on
// the box, zero when p is inside.
func (b AABB) DistSqToPoint(p mgl32.Vec3) float32 {
	var d float32
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			v := b.Min[i] - p[i]
			d += v * v
		} else if p[i] > b.Max[i] {
			v := p[i] - b.Max[i]
			d += v * v
		}
	}
	return d
}

// Corners writes the eight corner points of the box into out.
func (b AABB) Corners(out *[8]mgl32.Vec3) {
	for i := 0; i < 8; i++ {
		out[i] = mgl32.Vec3{
			pick(i&1 != 0, b.Max[0], b.Min[0]),
			pick(i&2 != 0, b.Max[1], b.Min[1]),
			pick(i&4 != 0, b.Max[2], b.Min[2]),
		}
	}
}

// Quadrant returns child bounds i (0..3) of the box split at its center on
// the X and Z axes, with the full Y extent preserved. Bit 0 selects +X,
// bit 1 selects +Z.
func (b AABB) Quadrant(i int) AABB {
	c := b.Center()
	out := b
	if i&1 != 0 {
		out.Min[0] = c[0]
	} else {
		out.Max[0] = c[0]
	}
	if i&2 != 0 {
		out.Min[2] = c[2]
	} else {
		out.Max[2] = c[2]
	}
	return out
}

// Octant returns child bounds i (0..7) of the box split at its center on all
// three axes. Bit 0 selects +X, bit 1 selects +Y, bit 2 selects +Z.
func (b AABB) Octant(i int) AABB {
	c := b.Center()
	out := b
	if i&1 != 0 {
		out.Min[0] = c[0]
	} else {
		out.Max[0] = c[0]
	}
	if i&2 != 0 {
		out.Min[1] = c[1]
	} else {
		out.Max[1] = c[1]
	}
	if i&4 != 0 {
		out.Min[2] = c[2]
	} else {
		out.Max[2] = c[2]
	}
	return out
}

func pick(cond bool, a, b float32) float32 {
	if cond {
		return a
	}
	return b
}
