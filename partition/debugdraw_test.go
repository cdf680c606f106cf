package partition

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/plus3/tessera/geom"
)

func TestAppendBoxEdges(t *testing.T) {
	box := geom.NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{2, 4, 6})
	color := mgl32.Vec4{1, 0, 0, 1}

	out := make([]LineVertex, chunkLineVertexCount)
	n := appendBoxEdges(out, box, color)
	assert.Equal(t, chunkLineVertexCount, n)

	// Every segment spans exactly one axis of the box
	edgeLengths := map[float32]int{}
	for i := 0; i < n; i += 2 {
		assert.Equal(t, color, out[i].Color)
		d := out[i+1].Pos.Sub(out[i].Pos)
		nonZero := 0
		for axis := 0; axis < 3; axis++ {
			if d[axis] != 0 {
				nonZero++
				edgeLengths[d[axis]]++
			}
		}
		assert.Equal(t, 1, nonZero, "edge %d spans one axis", i/2)
	}
	assert.Equal(t, map[float32]int{2: 4, 4: 4, 6: 4}, edgeLengths,
		"four edges per axis, each the box's extent on that axis")
}

func TestCullChunkLinesCapacityGuard(t *testing.T) {
	reg := newTestComponents()
	g := NewGrid2D(reg, mgl32.Vec3{0, 0, 0}, 2, 2, 10, 0, 20)
	f := frustumForBox(geom.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{21, 21, 21}))
	color := mgl32.Vec4{0, 1, 0, 1}

	eye := mgl32.Vec3{0, 0, 0}
	full := 4 * chunkLineVertexCount
	for _, capacity := range []int{0, 1, chunkLineVertexCount - 1, chunkLineVertexCount,
		chunkLineVertexCount + 5, full - 1, full, full + 10} {
		t.Run(fmt.Sprintf("cap=%d", capacity), func(t *testing.T) {
			out := make([]LineVertex, capacity)
			written := CullChunkLines(g, f, eye, 16, out, color)

			assert.LessOrEqual(t, written, capacity)
			assert.LessOrEqual(t, written, full)
			assert.Zero(t, written%chunkLineVertexCount, "no partial boxes")
			// Capacity permitting, whole boxes are packed greedily
			expect := min(capacity/chunkLineVertexCount*chunkLineVertexCount, full)
			assert.Equal(t, expect, written)
		})
	}
}

func TestCullChunkLinesDisplayCount(t *testing.T) {
	reg := newTestComponents()
	g := NewGrid2D(reg, mgl32.Vec3{0, 0, 0}, 2, 2, 10, 0, 20)
	f := frustumForBox(geom.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{21, 21, 21}))

	out := make([]LineVertex, 8*chunkLineVertexCount)
	eye := mgl32.Vec3{5, 5, 5}
	written := CullChunkLines(g, f, eye, 1, out, mgl32.Vec4{1, 1, 1, 1})
	assert.Equal(t, chunkLineVertexCount, written, "one chunk requested")

	// The nearest cell to the eye is drawn
	cell := g.ChunkAt(0, 0).Bounds
	for i := 0; i < written; i++ {
		assert.True(t, cell.ContainsClosed(out[i].Pos))
	}
}

func TestCullChunkLinesRespectsFrustum(t *testing.T) {
	reg := newTestComponents()
	g := NewGrid2D(reg, mgl32.Vec3{0, 0, 0}, 2, 2, 10, 0, 20)

	// Sees only the (0,0) cell
	f := frustumForBox(geom.NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{9, 20, 9}))
	out := make([]LineVertex, 8*chunkLineVertexCount)
	written := CullChunkLines(g, f, mgl32.Vec3{5, 5, 5}, 16, out, mgl32.Vec4{1, 1, 1, 1})
	assert.Equal(t, chunkLineVertexCount, written)

	cell := g.ChunkAt(0, 0).Bounds
	for i := 0; i < written; i++ {
		assert.True(t, cell.ContainsClosed(out[i].Pos))
	}
}
