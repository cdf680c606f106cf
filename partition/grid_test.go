package partition

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/plus3/tessera/geom"
	"github.com/plus3/tessera/spatial"
)

func TestGrid2DLookup(t *testing.T) {
	reg := newTestComponents()
	g := NewGrid2D(reg, mgl32.Vec3{0, 0, 0}, 4, 4, 10, 0, 20)

	tests := []struct {
		point  mgl32.Vec3
		cx, cz int
	}{
		{mgl32.Vec3{25, 0, 35}, 2, 3},
		{mgl32.Vec3{0, 0, 0}, 0, 0},
		{mgl32.Vec3{39.9, 0, 39.9}, 3, 3},
		{mgl32.Vec3{5, 100, 5}, 0, 0}, // Y never participates
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.point), func(t *testing.T) {
			got := g.GetChunk(tt.point, Reject)
			assert.Same(t, g.ChunkAt(tt.cx, tt.cz), got)
		})
	}
}

func TestGrid2DOutOfBoundsPolicy(t *testing.T) {
	reg := newTestComponents()
	g := NewGrid2D(reg, mgl32.Vec3{0, 0, 0}, 4, 4, 10, 0, 20)

	outside := mgl32.Vec3{-5, 0, 5}
	assert.Nil(t, g.GetChunk(outside, Reject))
	assert.Same(t, g.ChunkAt(0, 0), g.GetChunk(outside, ClampToEdge))

	farCorner := mgl32.Vec3{1000, 0, 1000}
	assert.Same(t, g.ChunkAt(3, 3), g.GetChunk(farCorner, ClampToEdge))
}

func TestGrid2DConstructionPanics(t *testing.T) {
	reg := newTestComponents()
	assert.Panics(t, func() { NewGrid2D(reg, mgl32.Vec3{}, 0, 4, 10, 0, 20) })
	assert.Panics(t, func() { NewGrid2D(reg, mgl32.Vec3{}, 4, 4, -1, 0, 20) })
}

func TestGrid2DRegistryAndReload(t *testing.T) {
	components := newTestComponents()
	g := NewGrid2D(components, mgl32.Vec3{0, 0, 0}, 2, 2, 10, 0, 20)
	reg := spatial.NewRegistry()
	g.RegisterAllChunks(reg, 7)

	assert.Equal(t, 4, reg.Len())

	c := g.ChunkAt(1, 0)
	assert.Equal(t, uint16(7), c.Key.Level)
	oldKey := c.Key
	assert.Same(t, c.Store, reg.Resolve(oldKey))

	newKey := g.ReloadCell(1, 0)
	assert.Equal(t, oldKey.Generation+1, newKey.Generation)

	assert.Nil(t, reg.Resolve(oldKey), "stale key must stop resolving")
	assert.Same(t, c.Store, reg.Resolve(newKey))
}

func TestGrid2DEntityCount(t *testing.T) {
	reg := newTestComponents()
	g := NewGrid2D(reg, mgl32.Vec3{0, 0, 0}, 4, 4, 10, 0, 20)

	spawnAt(g.ChunkAt(0, 0), 5, 1, 5)
	spawnAt(g.ChunkAt(2, 3), 25, 1, 35)
	spawnAt(g.ChunkAt(2, 3), 26, 1, 36)
	g.GlobalStore().Spawn(Tag{Kind: 1})

	assert.Equal(t, 4, g.EntityCount())
}

func TestGrid2DCulling(t *testing.T) {
	reg := newTestComponents()
	g := NewGrid2D(reg, mgl32.Vec3{0, 0, 0}, 4, 4, 10, 0, 20)

	// Volume covering the two westmost columns
	f := frustumForBox(geom.NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{19, 20, 40}))
	culled := g.CullChunks(f)
	assert.Len(t, culled, 8)

	banded := g.CullChunksBand(f, 100, 200)
	assert.Empty(t, banded, "band above every cell")

	near := g.CullChunksNear(f, mgl32.Vec3{5, 5, 5}, 2)
	assert.Len(t, near, 2)
	assert.Same(t, g.ChunkAt(0, 0), near[0])
}

func TestGrid3DLookup(t *testing.T) {
	reg := newTestComponents()
	g := NewGrid3D(reg, mgl32.Vec3{0, 0, 0}, 4, 2, 4, 10)

	got := g.GetChunk(mgl32.Vec3{25, 15, 35}, Reject)
	assert.Same(t, g.ChunkAt(2, 1, 3), got)

	assert.Nil(t, g.GetChunk(mgl32.Vec3{25, 25, 35}, Reject))
	assert.Same(t, g.ChunkAt(2, 1, 3), g.GetChunk(mgl32.Vec3{25, 25, 35}, ClampToEdge))
	assert.Nil(t, g.ChunkAt(4, 0, 0))
}

func TestGrid3DReload(t *testing.T) {
	components := newTestComponents()
	g := NewGrid3D(components, mgl32.Vec3{0, 0, 0}, 2, 2, 2, 10)
	reg := spatial.NewRegistry()
	g.RegisterAllChunks(reg, 3)

	oldKey := g.ChunkAt(1, 1, 0).Key
	newKey := g.ReloadCell(1, 1, 0)
	assert.Equal(t, oldKey.Bumped(), newKey)

	assert.Nil(t, reg.Resolve(oldKey))
	assert.NotNil(t, reg.Resolve(newKey))
}

func TestGridKeySchemesDistinct(t *testing.T) {
	reg := newTestComponents()
	g2 := NewGrid2D(reg, mgl32.Vec3{0, 0, 0}, 2, 2, 10, 0, 20)
	g3 := NewGrid3D(reg, mgl32.Vec3{0, 0, 0}, 2, 2, 2, 10)

	spatialReg := spatial.NewRegistry()
	g2.RegisterAllChunks(spatialReg, 1)
	g3.RegisterAllChunks(spatialReg, 1)

	// Same level, same Morton cell 0, different schemes: both resolve
	assert.Equal(t, 4+8, spatialReg.Len())
}
