package ecs

import "reflect"

// ComponentRegistry manages component type registration for a family of
// Stores. Every Store created against the same registry shares archetype ids
// and component mask bits, which is what makes entities transferable between
// stores (see Store.MoveTo).
type ComponentRegistry struct {
	factories map[reflect.Type]func() iComponentStorage
	bits      map[reflect.Type]uint8
	nextBit   int
}

// NewComponentRegistry creates a new component registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		factories: make(map[reflect.Type]func() iComponentStorage),
		bits:      make(map[reflect.Type]uint8),
	}
}

// RegisterComponent registers a new component type with the given registry
// and assigns it the next free mask bit. This must be called for each
// component type before it can be used.
func RegisterComponent[T any](r *ComponentRegistry) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if _, exists := r.factories[t]; exists {
		return
	}
	if r.nextBit >= maskWords*64 {
		panic("component type limit reached (" + t.String() + " would exceed 256 types)")
	}
	r.factories[t] = func() iComponentStorage {
		return &genericComponentStorage[T]{
			nextIndex: 0,
		}
	}
	r.bits[t] = uint8(r.nextBit)
	r.nextBit++
}

// getFactory returns the factory function for a given component type.
// Returns nil if the type is not registered.
func (r *ComponentRegistry) getFactory(t reflect.Type) func() iComponentStorage {
	return r.factories[t]
}

// bitFor returns the mask bit assigned to a component type.
func (r *ComponentRegistry) bitFor(t reflect.Type) (uint8, bool) {
	bit, ok := r.bits[t]
	return bit, ok
}

// maskOf builds the combined mask for a set of component types. Unregistered
// types are skipped; archetype construction catches those separately.
func (r *ComponentRegistry) maskOf(types []reflect.Type) Mask {
	var m Mask
	for _, t := range types {
		if bit, ok := r.bits[t]; ok {
			m.Set(bit)
		}
	}
	return m
}

func typeOf(v any) reflect.Type {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
