package partition

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/plus3/tessera/geom"
)

// LineVertex is one endpoint of a debug line segment, ready for upload to a
// line-list vertex buffer.
type LineVertex struct {
	Pos   mgl32.Vec3
	Color mgl32.Vec4
}

// chunkLineVertexCount is the vertex cost of one chunk outline: 12 box
// edges, two vertices each.
const chunkLineVertexCount = 24

// CullChunkLines writes wireframe outlines for the chunks surviving frustum
// culling into out, nearest to eye first, and returns the number of vertices
// written. At most displayCount chunks are drawn; chunks that would overflow
// the remaining capacity are dropped whole, so out never holds a partial box
// and the count is always a multiple of 24.
func CullChunkLines(p Partition, f geom.Frustum, eye mgl32.Vec3, displayCount int, out []LineVertex, color mgl32.Vec4) int {
	written := 0
	for _, c := range p.CullChunksNear(f, eye, displayCount) {
		// Signed arithmetic: remaining may go negative conceptually, and an
		// unsigned subtraction here would wrap.
		remaining := len(out) - written
		if remaining < chunkLineVertexCount {
			break
		}
		written += appendBoxEdges(out[written:], c.Bounds, color)
	}
	return written
}

// appendBoxEdges writes the 12 edges of a box into out and returns the
// vertex count. Corners are indexed bit0=X, bit1=Y, bit2=Z; an edge joins
// every corner pair differing in exactly one bit, taking each pair once.
func appendBoxEdges(out []LineVertex, b geom.AABB, color mgl32.Vec4) int {
	var corners [8]mgl32.Vec3
	b.Corners(&corners)

	n := 0
	for i := 0; i < 8; i++ {
		for _, bit := range [3]int{1, 2, 4} {
			j := i ^ bit
			if j < i {
				continue
			}
			out[n] = LineVertex{Pos: corners[i], Color: color}
			out[n+1] = LineVertex{Pos: corners[j], Color: color}
			n += 2
		}
	}
	return n
}
