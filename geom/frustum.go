package geom

import "github.com/go-gl/mathgl/mgl32"

// Plane is a half-space in normal/offset form: points p with
// N·p + D >= 0 are on the inside.
type Plane struct {
	N mgl32.Vec3
	D float32
}

// Normalize scales the plane so that N has unit length, keeping the
// half-space unchanged.
func (p Plane) Normalize() Plane {
	l := p.N.Len()
	if l == 0 {
		return p
	}
	inv := 1 / l
	return Plane{N: p.N.Mul(inv), D: p.D * inv}
}

// DistanceTo returns the signed distance from the point to the plane,
// positive on the inside.
func (p Plane) DistanceTo(v mgl32.Vec3) float32 {
	return p.N.Dot(v) + p.D
}

// Frustum is a view volume described by six inward-facing planes, in the
// order left, right, bottom, top, near, far.
type Frustum [6]Plane

// FrustumFromMatrix extracts the six clip planes from a combined
// view-projection matrix (Gribb/Hartmann row combination), normalized so
// plane distances are in world units.
func FrustumFromMatrix(m mgl32.Mat4) Frustum {
	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{m.At(i, 0), m.At(i, 1), m.At(i, 2), m.At(i, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	plane := func(v mgl32.Vec4) Plane {
		return Plane{N: mgl32.Vec3{v[0], v[1], v[2]}, D: v[3]}.Normalize()
	}

	return Frustum{
		plane(r3.Add(r0)), // left
		plane(r3.Sub(r0)), // right
		plane(r3.Add(r1)), // bottom
		plane(r3.Sub(r1)), // top
		plane(r3.Add(r2)), // near
		plane(r3.Sub(r2)), // far
	}
}

// ContainsPoint reports whether the point is inside or on every plane.
func (f Frustum) ContainsPoint(p mgl32.Vec3) bool {
	for i := range f {
		if f[i].DistanceTo(p) < 0 {
			return false
		}
	}
	return true
}

// IntersectsAABB reports whether the box overlaps the frustum. Uses the
// positive-vertex test: for each plane only the corner furthest along the
// plane normal is checked, so a box is rejected as soon as that corner is
// outside. Boxes that straddle a plane pass, which may conservatively
// accept boxes near frustum edges.
func (f Frustum) IntersectsAABB(b AABB) bool {
	for i := range f {
		n := f[i].N
		v := mgl32.Vec3{
			pick(n[0] >= 0, b.Max[0], b.Min[0]),
			pick(n[1] >= 0, b.Max[1], b.Min[1]),
			pick(n[2] >= 0, b.Max[2], b.Min[2]),
		}
		if f[i].DistanceTo(v) < 0 {
			return false
		}
	}
	return true
}
