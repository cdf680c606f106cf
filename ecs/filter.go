package ecs

// Filter selects archetypes by component mask: an archetype matches when its
// mask contains every Require bit and none of the Exclude bits. The zero
// Filter matches every archetype.
type Filter struct {
	Require Mask
	Exclude Mask
}

// Matches reports whether an archetype with the given component mask passes
// the filter.
func (f Filter) Matches(m Mask) bool {
	return m.ContainsAll(f.Require) && !m.Intersects(f.Exclude)
}

// MaskFor returns the single-bit mask for a registered component type.
// Panics if the type has not been registered.
func MaskFor[T any](r *ComponentRegistry) Mask {
	var zero T
	t := typeOf(zero)
	bit, ok := r.bitFor(t)
	if !ok {
		panic("component type " + t.String() + " not registered")
	}
	var m Mask
	m.Set(bit)
	return m
}
