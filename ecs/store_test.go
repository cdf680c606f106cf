package ecs_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plus3/tessera/ecs"
)

// Test EntityId encoding/decoding
func TestEntityIdEncoding(t *testing.T) {
	archetypeId := uint32(12345)
	index := uint32(67890)

	entityId := ecs.NewEntityId(archetypeId, index)

	assert.Equal(t, archetypeId, entityId.ArchetypeId())
	assert.Equal(t, index, entityId.Index())
}

func TestEntityIdEdgeCases(t *testing.T) {
	tests := []struct {
		archetypeId uint32
		index       uint32
	}{
		{0, 0},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{1, 0},
		{0, 1},
		{0x12345678, 0x9ABCDEF0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("archetype=%d,index=%d", tt.archetypeId, tt.index), func(t *testing.T) {
			entityId := ecs.NewEntityId(tt.archetypeId, tt.index)
			assert.Equal(t, tt.archetypeId, entityId.ArchetypeId())
			assert.Equal(t, tt.index, entityId.Index())
		})
	}
}

// Test basic store operations
func TestSpawnEntity(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	id := store.Spawn(&Position{X: 1.0, Y: 2.0}, &Velocity{DX: 0.5, DY: 0.5}, Score(32))
	assert.NotEqual(t, ecs.EntityId(0), id)

	// Verify archetype ID is encoded
	assert.Greater(t, id.ArchetypeId(), uint32(0))
}

func TestGetComponent(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	id := store.Spawn(&Position{X: 3.0, Y: 4.0}, &Name{Value: "Test Entity"})

	// Get Position component
	posComp := store.GetComponent(id, reflect.TypeOf(Position{}))
	assert.NotNil(t, posComp)
	pos := posComp.(*Position)
	assert.Equal(t, float32(3.0), pos.X)
	assert.Equal(t, float32(4.0), pos.Y)

	// Try to get non-existent component
	velocityComp := store.GetComponent(id, reflect.TypeOf(Velocity{}))
	assert.Nil(t, velocityComp)

	// The typed helper returns nil rather than panicking on a miss
	assert.Nil(t, ecs.ReadComponent[Velocity](store, id))
	assert.NotNil(t, ecs.ReadComponent[Position](store, id))
}

func TestDeleteEntity(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	id := store.Spawn(&Position{X: 1.0, Y: 1.0}, &Health{Current: 100, Max: 100})
	assert.Equal(t, 1, store.Count())

	store.Delete(id)

	assert.Nil(t, store.GetComponent(id, reflect.TypeOf(Position{})))
	assert.Equal(t, 0, store.Count())
}

func TestCountAcrossArchetypes(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	store.Spawn(&Position{})
	store.Spawn(&Position{}, &Velocity{})
	id := store.Spawn(&Name{Value: "x"})
	assert.Equal(t, 3, store.Count())

	store.Delete(id)
	assert.Equal(t, 2, store.Count())

	// Deleting twice must not drive the count negative
	store.Delete(id)
	assert.Equal(t, 2, store.Count())
}

func TestMoveToTransfersComponents(t *testing.T) {
	registry := newTestRegistry()
	src := ecs.NewStore(registry)
	dst := ecs.NewStore(registry)

	id := src.Spawn(&Position{X: 7, Y: 8, Z: 9}, &Health{Current: 50, Max: 100})

	newId := src.MoveTo(id, dst)
	assert.NotEqual(t, ecs.EntityId(0), newId)

	// Same archetype id in both stores (shared registry)
	assert.Equal(t, id.ArchetypeId(), newId.ArchetypeId())

	assert.Equal(t, 0, src.Count())
	assert.Equal(t, 1, dst.Count())

	pos := ecs.ReadComponent[Position](dst, newId)
	assert.NotNil(t, pos)
	assert.Equal(t, float32(7), pos.X)
	assert.Equal(t, float32(9), pos.Z)

	// Source no longer resolves the entity
	assert.Nil(t, src.GetComponent(id, reflect.TypeOf(Position{})))
}

func TestMoveToMissingEntity(t *testing.T) {
	registry := newTestRegistry()
	src := ecs.NewStore(registry)
	dst := ecs.NewStore(registry)

	id := src.Spawn(&Position{})
	src.Delete(id)

	assert.Equal(t, ecs.EntityId(0), src.MoveTo(id, dst))
	assert.Equal(t, 0, dst.Count())
}

func TestMoveToCarriesEntityRef(t *testing.T) {
	registry := newTestRegistry()
	src := ecs.NewStore(registry)
	dst := ecs.NewStore(registry)

	id := src.Spawn(&Position{X: 1}, &Name{Value: "tracked"})
	ref := src.CreateEntityRef(id)
	assert.NotNil(t, ref)

	newId := src.MoveTo(id, dst)

	resolved, ok := dst.ResolveEntityRef(ref)
	assert.True(t, ok)
	assert.Equal(t, newId, resolved)

	name := ecs.ReadComponent[Name](dst, resolved)
	assert.NotNil(t, name)
	assert.Equal(t, "tracked", name.Value)
}

func TestMoveAllTo(t *testing.T) {
	registry := newTestRegistry()
	src := ecs.NewStore(registry)
	dst := ecs.NewStore(registry)

	for i := 0; i < 10; i++ {
		src.Spawn(&Position{X: float32(i)})
	}
	for i := 0; i < 5; i++ {
		src.Spawn(&Position{}, &Velocity{DX: float32(i)})
	}
	dst.Spawn(&Name{Value: "already here"})

	moved := src.MoveAllTo(dst)
	assert.Equal(t, 15, moved)
	assert.Equal(t, 0, src.Count())
	assert.Equal(t, 16, dst.Count())
}

func TestMultipleEntitiesSameArchetype(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	id1 := store.Spawn(&Position{X: 1.0}, &Velocity{DX: 0.1})
	id2 := store.Spawn(&Position{X: 2.0}, &Velocity{DX: 0.2})
	id3 := store.Spawn(&Position{X: 3.0}, &Velocity{DX: 0.3})

	// They should all have the same archetype ID
	assert.Equal(t, id1.ArchetypeId(), id2.ArchetypeId())
	assert.Equal(t, id1.ArchetypeId(), id3.ArchetypeId())

	// But different entity indices
	assert.NotEqual(t, id1.Index(), id2.Index())
	assert.NotEqual(t, id2.Index(), id3.Index())

	pos2 := ecs.ReadComponent[Position](store, id2)
	assert.Equal(t, float32(2.0), pos2.X)
}

func TestFilterMatching(t *testing.T) {
	registry := newTestRegistry()
	store := ecs.NewStore(registry)

	store.Spawn(&Position{}, &Velocity{})
	store.Spawn(&Position{}, &Static{})
	store.Spawn(&Name{Value: "no position"})

	posMask := ecs.MaskFor[Position](registry)
	staticMask := ecs.MaskFor[Static](registry)

	// Require Position
	matches := store.MatchingArchetypes(ecs.Filter{Require: posMask}, nil)
	assert.Len(t, matches, 2)

	// Require Position, exclude Static
	matches = store.MatchingArchetypes(ecs.Filter{Require: posMask, Exclude: staticMask}, nil)
	assert.Len(t, matches, 1)
	assert.True(t, matches[0].HasComponent(reflect.TypeOf(Velocity{})))

	// Zero filter matches every non-empty archetype
	matches = store.MatchingArchetypes(ecs.Filter{}, nil)
	assert.Len(t, matches, 3)
}

func TestFilterSkipsEmptiedArchetypes(t *testing.T) {
	registry := newTestRegistry()
	store := ecs.NewStore(registry)

	id := store.Spawn(&Position{}, &Velocity{})
	store.Delete(id)

	posMask := ecs.MaskFor[Position](registry)
	matches := store.MatchingArchetypes(ecs.Filter{Require: posMask}, nil)
	assert.Empty(t, matches)
}

func TestMaskOperations(t *testing.T) {
	registry := newTestRegistry()

	pos := ecs.MaskFor[Position](registry)
	vel := ecs.MaskFor[Velocity](registry)

	both := pos.Or(vel)
	assert.True(t, both.ContainsAll(pos))
	assert.True(t, both.ContainsAll(vel))
	assert.False(t, pos.ContainsAll(both))
	assert.True(t, both.Intersects(pos))
	assert.False(t, pos.Intersects(vel))
	assert.False(t, pos.IsZero())
	assert.True(t, ecs.Mask{}.IsZero())
}

func TestEntityIds(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	want := make(map[ecs.EntityId]bool)
	for i := 0; i < 4; i++ {
		want[store.Spawn(&Position{X: float32(i)})] = true
	}
	want[store.Spawn(&Name{Value: "other archetype"})] = true

	got := make(map[ecs.EntityId]bool)
	for id := range store.EntityIds() {
		got[id] = true
	}
	assert.Equal(t, want, got)
}

func TestAddComponent(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	id := store.Spawn(&Position{X: 1.0, Y: 2.0})
	assert.True(t, store.HasComponent(id, reflect.TypeOf(Position{})))
	assert.False(t, store.HasComponent(id, reflect.TypeOf(Velocity{})))

	newId := store.AddComponent(id, &Velocity{DX: 0.5, DY: 0.5})
	assert.NotEqual(t, id.ArchetypeId(), newId.ArchetypeId())

	assert.True(t, store.HasComponent(newId, reflect.TypeOf(Position{})))
	assert.True(t, store.HasComponent(newId, reflect.TypeOf(Velocity{})))

	pos := ecs.ReadComponent[Position](store, newId)
	assert.Equal(t, float32(1.0), pos.X)
	assert.Equal(t, float32(2.0), pos.Y)

	vel := ecs.ReadComponent[Velocity](store, newId)
	assert.Equal(t, float32(0.5), vel.DX)

	// The old id no longer resolves and the entity was not duplicated
	assert.Nil(t, store.GetComponent(id, reflect.TypeOf(Position{})))
	assert.Equal(t, 1, store.Count())
}

func TestAddComponentCarriesEntityRef(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	id := store.Spawn(&Position{X: 10.0})
	ref := store.CreateEntityRef(id)

	newId := store.AddComponent(id, &Velocity{DX: 1.0})

	resolved, ok := store.ResolveEntityRef(ref)
	assert.True(t, ok)
	assert.Equal(t, newId, resolved)

	pos := ecs.ReadComponent[Position](store, resolved)
	assert.Equal(t, float32(10.0), pos.X)
}

func TestRemoveComponent(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	id := store.Spawn(&Position{X: 1.0, Y: 2.0}, &Velocity{DX: 0.5})
	ref := store.CreateEntityRef(id)

	newId := store.RemoveComponent(id, reflect.TypeOf(Velocity{}))

	resolved, ok := store.ResolveEntityRef(ref)
	assert.True(t, ok)
	assert.Equal(t, newId, resolved)

	assert.True(t, store.HasComponent(newId, reflect.TypeOf(Position{})))
	assert.False(t, store.HasComponent(newId, reflect.TypeOf(Velocity{})))

	pos := ecs.ReadComponent[Position](store, newId)
	assert.Equal(t, float32(1.0), pos.X)
	assert.Equal(t, float32(2.0), pos.Y)
	assert.Equal(t, 1, store.Count())
}

func TestRemoveLastComponent(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	id := store.Spawn(&Position{X: 1.0})
	ref := store.CreateEntityRef(id)

	// Removing the final component deletes the entity outright
	assert.Equal(t, ecs.EntityId(0), store.RemoveComponent(id, reflect.TypeOf(Position{})))

	_, ok := store.ResolveEntityRef(ref)
	assert.False(t, ok)
	assert.Nil(t, store.GetComponent(id, reflect.TypeOf(Position{})))
	assert.Equal(t, 0, store.Count())
}

func TestCompactReindexesEntityRefs(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	ids := make([]ecs.EntityId, 20)
	refs := make([]*ecs.EntityRef, 20)
	for i := range 20 {
		ids[i] = store.Spawn(&Position{X: float32(i)}, &Velocity{DX: 1.0})
		refs[i] = store.CreateEntityRef(ids[i])
	}
	for i := 0; i < 20; i += 2 {
		store.Delete(ids[i])
	}

	store.Compact()

	assert.Equal(t, 10, store.Count())
	for i := 1; i < 20; i += 2 {
		id, ok := store.ResolveEntityRef(refs[i])
		assert.True(t, ok, fmt.Sprintf("ref %d should survive compaction", i))

		pos := ecs.ReadComponent[Position](store, id)
		assert.NotNil(t, pos)
		assert.Equal(t, float32(i), pos.X)
	}
	for i := 0; i < 20; i += 2 {
		_, ok := store.ResolveEntityRef(refs[i])
		assert.False(t, ok, fmt.Sprintf("deleted ref %d should stay invalid", i))
	}
}

func TestCompactEmptyStore(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	for i := range 10 {
		id := store.Spawn(&Position{X: float32(i)})
		store.Delete(id)
	}

	store.Compact()
	assert.Equal(t, 0, store.Count())
}

func TestCreateEntityRefIdempotent(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	id := store.Spawn(&Position{X: 5.0})

	ref1 := store.CreateEntityRef(id)
	ref2 := store.CreateEntityRef(id)
	assert.Same(t, ref1, ref2)

	// Unknown archetype yields no ref
	assert.Nil(t, store.CreateEntityRef(ecs.NewEntityId(0xDEAD, 0)))
}

func TestInvalidateEntityRef(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	id := store.Spawn(&Position{X: 1.0})
	ref := store.CreateEntityRef(id)

	assert.True(t, store.InvalidateEntityRef(ref))
	_, ok := store.ResolveEntityRef(ref)
	assert.False(t, ok)

	// Second invalidation is a no-op, as is invalidating nil
	assert.False(t, store.InvalidateEntityRef(ref))
	assert.False(t, store.InvalidateEntityRef(nil))

	// Only the ref is severed; the entity itself stays live
	assert.NotNil(t, ecs.ReadComponent[Position](store, id))
	assert.Equal(t, 1, store.Count())
}

func TestEntityRefInvalidatedOnDelete(t *testing.T) {
	store := ecs.NewStore(newTestRegistry())

	id := store.Spawn(&Position{X: 1.0})
	ref := store.CreateEntityRef(id)
	assert.NotNil(t, ref)

	resolved, ok := store.ResolveEntityRef(ref)
	assert.True(t, ok)
	assert.Equal(t, id, resolved)

	store.Delete(id)

	_, ok = store.ResolveEntityRef(ref)
	assert.False(t, ok)
}
