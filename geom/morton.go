package geom

// Morton (Z-order) encoding interleaves the bits of integer cell
// coordinates so that spatially adjacent cells produce correlated codes.
// Partition keys use this purely as an ordering aid; nothing depends on
// the exact curve shape.

// Morton2 interleaves two 32-bit coordinates into a 64-bit code,
// x occupying the even bits and y the odd bits.
func Morton2(x, y uint32) uint64 {
	return part1By1(uint64(x)) | part1By1(uint64(y))<<1
}

// DeMorton2 is the inverse of Morton2.
func DeMorton2(code uint64) (x, y uint32) {
	return compact1By1(code), compact1By1(code >> 1)
}

// Morton3 interleaves three coordinates into a 64-bit code. Only the low
// 21 bits of each coordinate participate; higher bits are discarded.
func Morton3(x, y, z uint32) uint64 {
	return part1By2(uint64(x)) | part1By2(uint64(y))<<1 | part1By2(uint64(z))<<2
}

// DeMorton3 is the inverse of Morton3, up to the 21-bit truncation.
func DeMorton3(code uint64) (x, y, z uint32) {
	return compact1By2(code), compact1By2(code >> 1), compact1By2(code >> 2)
}

func part1By1(x uint64) uint64 {
	x &= 0xFFFFFFFF
	x = (x | x<<16) & 0x0000FFFF0000FFFF
	x = (x | x<<8) & 0x00FF00FF00FF00FF
	x = (x | x<<4) & 0x0F0F0F0F0F0F0F0F
	x = (x | x<<2) & 0x3333333333333333
	x = (x | x<<1) & 0x5555555555555555
	return x
}

func compact1By1(x uint64) uint32 {
	x &= 0x5555555555555555
	x = (x | x>>1) & 0x3333333333333333
	x = (x | x>>2) & 0x0F0F0F0F0F0F0F0F
	x = (x | x>>4) & 0x00FF00FF00FF00FF
	x = (x | x>>8) & 0x0000FFFF0000FFFF
	x = (x | x>>16) & 0x00000000FFFFFFFF
	return uint32(x)
}

func part1By2(x uint64) uint64 {
	x &= 0x1FFFFF
	x = (x | x<<32) & 0x001F00000000FFFF
	x = (x | x<<16) & 0x001F0000FF0000FF
	x = (x | x<<8) & 0x100F00F00F00F00F
	x = (x | x<<4) & 0x10C30C30C30C30C3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

func compact1By2(x uint64) uint32 {
	x &= 0x1249249249249249
	x = (x | x>>2) & 0x10C30C30C30C30C3
	x = (x | x>>4) & 0x100F00F00F00F00F
	x = (x | x>>8) & 0x001F0000FF0000FF
	x = (x | x>>16) & 0x001F00000000FFFF
	x = (x | x>>32) & 0x00000000001FFFFF
	return uint32(x)
}
