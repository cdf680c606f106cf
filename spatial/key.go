package spatial

// SchemeTag identifies the partitioning strategy that minted a key. Keys
// from different schemes never collide even when their codes coincide.
type SchemeTag uint8

const (
	SchemeGrid2D SchemeTag = iota + 1
	SchemeGrid3D
	SchemeQuadtree
	SchemeOctree
	SchemeBVH
	SchemeSweepPrune
)

// codeDepthShift places a tree key's depth in the top byte of its code so
// codes sort depth-major; the low 56 bits carry the cell coordinate.
const (
	codeDepthShift = 56
	codeCellMask   = uint64(1)<<codeDepthShift - 1
)

// ChunkKey is the versioned identity of a spatial chunk:
// level:16 scheme:8 depth:8 generation:16 code:64. Two keys for the same
// logical region differ only in Generation, which is bumped whenever the
// chunk's backing store is replaced. Stale keys simply stop resolving in
// the Registry; nothing else invalidates them.
type ChunkKey struct {
	Level      uint16
	Scheme     SchemeTag
	Depth      uint8
	Generation uint16
	Code       uint64
}

// GridKey builds a key for a flat (depth-less) scheme. code is typically a
// Morton encoding of the cell coordinate, used only as an ordering aid.
func GridKey(level uint16, scheme SchemeTag, generation uint16, code uint64) ChunkKey {
	return ChunkKey{
		Level:      level,
		Scheme:     scheme,
		Generation: generation,
		Code:       code,
	}
}

// TreeKey builds a key for a tree scheme. The depth is stored both in the
// Depth field and in the top byte of Code; cell occupies the remaining
// 56 bits (higher bits are discarded).
func TreeKey(level uint16, scheme SchemeTag, depth uint8, generation uint16, cell uint64) ChunkKey {
	return ChunkKey{
		Level:      level,
		Scheme:     scheme,
		Depth:      depth,
		Generation: generation,
		Code:       uint64(depth)<<codeDepthShift | cell&codeCellMask,
	}
}

// Cell returns the coordinate part of the code, without the depth byte.
func (k ChunkKey) Cell() uint64 {
	return k.Code & codeCellMask
}

// Bumped returns the key with its generation incremented. The old key and
// the bumped key address the same region but never resolve to the same
// registration.
func (k ChunkKey) Bumped() ChunkKey {
	k.Generation++
	return k
}
