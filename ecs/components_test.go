package ecs_test

import "github.com/plus3/tessera/ecs"

// Common test component types
type Position struct {
	X, Y, Z float32
}

type Velocity struct {
	DX, DY, DZ float32
}

type Name struct {
	Value string
}

type Health struct {
	Current int
	Max     int
}

// Static marks entities that never move between chunks
type Static struct{}

type Score int32

func newTestRegistry() *ecs.ComponentRegistry {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Name](registry)
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[Static](registry)
	ecs.RegisterComponent[Score](registry)
	return registry
}
