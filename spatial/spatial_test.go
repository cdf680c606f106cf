package spatial_test

import (
	"sync"
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

func newTestRegistry() *ecs.ComponentRegistry {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	return registry
}

func TestTreeKeyPacksDepthIntoCode(t *testing.T) {
	key := spatial.TreeKey(3, spatial.SchemeQuadtree, 5, 0, 0x1234)

	assert.Equal(t, uint8(5), key.Depth)
	assert.Equal(t, uint64(5)<<56|0x1234, key.Code)
	assert.Equal(t, uint64(0x1234), key.Cell())
}

func TestTreeKeyTruncatesWideCells(t *testing.T) {
	// Cells wider than 56 bits lose their high bits to the depth byte
	wide := uint64(0xFF) << 56
	key := spatial.TreeKey(0, spatial.SchemeOctree, 2, 0, wide|42)
	assert.Equal(t, uint64(42), key.Cell())
	assert.Equal(t, uint8(2), key.Depth)
}

func TestKeysDifferAcrossSchemes(t *testing.T) {
	a := spatial.GridKey(1, spatial.SchemeGrid2D, 0, 99)
	b := spatial.GridKey(1, spatial.SchemeGrid3D, 0, 99)
	assert.NotEqual(t, a, b)
}

func TestRegistryRoundTrip(t *testing.T) {
	reg := spatial.NewRegistry()
	store := ecs.NewStore(newTestRegistry())
	key := spatial.GridKey(1, spatial.SchemeGrid2D, 0, 42)

	assert.Nil(t, reg.Resolve(key))

	reg.Register(key, store)
	assert.Same(t, store, reg.Resolve(key))
	assert.Equal(t, 1, reg.Len())

	reg.Unregister(key)
	assert.Nil(t, reg.Resolve(key))
	assert.Equal(t, 0, reg.Len())
}

func TestGenerationInvalidation(t *testing.T) {
	reg := spatial.NewRegistry()
	registry := newTestRegistry()

	chunk := spatial.NewChunk(
		geom.NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{10, 10, 10}),
		registry,
		spatial.GridKey(7, spatial.SchemeGrid2D, 0, 5),
	)
	reg.Register(chunk.Key, chunk.Store)

	oldKey := chunk.Key
	newKey := chunk.Reload(reg)

	assert.Equal(t, oldKey.Generation+1, newKey.Generation)
	assert.Equal(t, oldKey.Code, newKey.Code)

	// Old key misses, new key resolves the same store
	assert.Nil(t, reg.Resolve(oldKey))
	assert.Same(t, chunk.Store, reg.Resolve(newKey))
	assert.Equal(t, 1, reg.Len())
}

func TestChunkCount(t *testing.T) {
	chunk := spatial.NewChunk(
		geom.NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}),
		newTestRegistry(),
		spatial.GridKey(0, spatial.SchemeGrid2D, 0, 0),
	)

	assert.Equal(t, 0, chunk.Count())
	chunk.Store.Spawn(&Position{X: 0.5})
	chunk.Store.Spawn(&Position{X: 0.25})
	assert.Equal(t, 2, chunk.Count())
}

func TestRegistryConcurrentResolve(t *testing.T) {
	reg := spatial.NewRegistry()
	store := ecs.NewStore(newTestRegistry())

	keys := make([]spatial.ChunkKey, 64)
	for i := range keys {
		keys[i] = spatial.GridKey(0, spatial.SchemeGrid3D, 0, uint64(i))
		reg.Register(keys[i], store)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				k := keys[i%len(keys)]
				assert.Same(t, store, reg.Resolve(k))
			}
		}()
	}

	// Concurrent writer churns generations on a disjoint key
	wg.Add(1)
	go func() {
		defer wg.Done()
		churn := spatial.GridKey(1, spatial.SchemeGrid3D, 0, 999)
		for i := 0; i < 1000; i++ {
			reg.Register(churn, store)
			reg.Unregister(churn)
			churn = churn.Bumped()
		}
	}()

	wg.Wait()
}
