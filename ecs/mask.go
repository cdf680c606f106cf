package ecs

// maskWords * 64 bounds the number of distinct component types per registry.
const maskWords = 4

// Mask is a fixed-width bitset over registered component types. Each
// archetype carries the mask of its component set; filters match against it.
type Mask [maskWords]uint64

// Set enables the bit for the given component id.
func (m *Mask) Set(bit uint8) {
	m[bit>>6] |= 1 << (bit & 63)
}

// Has reports whether the bit for the given component id is set.
func (m Mask) Has(bit uint8) bool {
	return m[bit>>6]&(1<<(bit&63)) != 0
}

// ContainsAll reports whether every bit set in sub is also set in m.
func (m Mask) ContainsAll(sub Mask) bool {
	return m[0]&sub[0] == sub[0] &&
		m[1]&sub[1] == sub[1] &&
		m[2]&sub[2] == sub[2] &&
		m[3]&sub[3] == sub[3]
}

// Intersects reports whether m and o share any set bit.
func (m Mask) Intersects(o Mask) bool {
	return m[0]&o[0] != 0 ||
		m[1]&o[1] != 0 ||
		m[2]&o[2] != 0 ||
		m[3]&o[3] != 0
}

// Or returns the union of the two masks.
func (m Mask) Or(o Mask) Mask {
	var out Mask
	for i := 0; i < maskWords; i++ {
		out[i] = m[i] | o[i]
	}
	return out
}

// IsZero reports whether no bit is set.
func (m Mask) IsZero() bool {
	return m == Mask{}
}
