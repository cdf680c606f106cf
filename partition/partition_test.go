package partition

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/plus3/tessera/ecs"
	"github.com/plus3/tessera/geom"
	"github.com/plus3/tessera/spatial"
)

type Position struct {
	X, Y, Z float32
}

type Tag struct {
	Kind int32
}

func newTestComponents() *ecs.ComponentRegistry {
	r := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](r)
	ecs.RegisterComponent[Tag](r)
	return r
}

func positionOf(p *Position) mgl32.Vec3 {
	return mgl32.Vec3{p.X, p.Y, p.Z}
}

func spawnAt(c *spatial.Chunk, x, y, z float32) ecs.EntityId {
	return c.Store.Spawn(Position{X: x, Y: y, Z: z})
}

// frustumForBox builds a frustum whose six planes are exactly the faces of
// the box, so tests control the culling volume in world space directly.
func frustumForBox(b geom.AABB) geom.Frustum {
	return geom.Frustum{
		{N: mgl32.Vec3{1, 0, 0}, D: -b.Min[0]},
		{N: mgl32.Vec3{-1, 0, 0}, D: b.Max[0]},
		{N: mgl32.Vec3{0, 1, 0}, D: -b.Min[1]},
		{N: mgl32.Vec3{0, -1, 0}, D: b.Max[1]},
		{N: mgl32.Vec3{0, 0, 1}, D: -b.Min[2]},
		{N: mgl32.Vec3{0, 0, -1}, D: b.Max[2]},
	}
}

func TestPositionVia(t *testing.T) {
	reg := newTestComponents()
	store := ecs.NewStore(reg)
	posFn := PositionVia(positionOf)

	id := store.Spawn(Position{X: 1, Y: 2, Z: 3})
	got, ok := posFn(store, id)
	assert.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, got)

	tagOnly := store.Spawn(Tag{Kind: 7})
	_, ok = posFn(store, tagOnly)
	assert.False(t, ok)
}

func TestSelectNearest(t *testing.T) {
	reg := newTestComponents()
	chunks := make([]*spatial.Chunk, 0, 5)
	for i := 0; i < 5; i++ {
		min := mgl32.Vec3{float32(i * 10), 0, 0}
		bounds := geom.AABB{Min: min, Max: min.Add(mgl32.Vec3{10, 10, 10})}
		chunks = append(chunks, spatial.NewChunk(bounds, reg, spatial.ChunkKey{Code: uint64(i)}))
	}

	// Nearest to x=45 are the cells at 40, 30/50 next
	near := selectNearest(chunks, mgl32.Vec3{45, 5, 5}, 3)
	assert.Len(t, near, 3)
	assert.Equal(t, float32(0), near[0].Bounds.DistSqToPoint(mgl32.Vec3{45, 5, 5}))

	assert.Empty(t, selectNearest(chunks, mgl32.Vec3{}, 0))
	assert.Len(t, selectNearest(chunks, mgl32.Vec3{}, 100), 5)
}
