// Package position packs a 4x4 grid of tiles into a fixed 16-byte value and
// rotates that value without decoding it.
//
// Layout:
//
// A Packed value holds one exponent byte per cell, row-major: the cell at
// (row, col) lives in byte row*4+col. Bytes 0-7 form lane 0 (rows 0 and 1)
// and bytes 8-15 form lane 1 (rows 2 and 3). Each lane read as a
// little-endian uint64 therefore has the top-left cell of its first row in
// the least significant byte:
//
//	lane 0: byte 0 = (0,0) ... byte 3 = (0,3), byte 4 = (1,0) ... byte 7 = (1,3)
//	lane 1: byte 0 = (2,0) ... byte 3 = (2,3), byte 4 = (3,0) ... byte 7 = (3,3)
//
// This layout is fixed. The rotation tables in rotate.go are written against
// it, and any consumer storing Packed values depends on it.
//
// Rotation:
//
// Rotate permutes bytes with one of four precomputed 16-entry tables. It never
// looks at what the bytes mean, so it preserves the multiset of exponents
// and does not need the tile codec.
//
// Usage:
//
//	g, err := position.ParseGrid("16 8 8 4  4 2 0 0  2 0 0 0  0 0 2 0")
//	p, err := position.Pack(g)
//	r := position.Rotate(p, 1)
//	g2, err := position.Unpack(r)
//	fmt.Print(g2)
package position
