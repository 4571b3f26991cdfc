package position

// rotationTables[n] rotates a position n quarter turns clockwise: destination
// byte i takes source byte rotationTables[n][i].
//
// One clockwise turn moves (r, c) to (c, 3-r), so destination (r, c) reads
// source (3-c, r), i.e. byte (3-c)*4 + r.
var rotationTables = [4][Cells]uint8{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	{12, 8, 4, 0, 13, 9, 5, 1, 14, 10, 6, 2, 15, 11, 7, 3},
	{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
	{3, 7, 11, 15, 2, 6, 10, 14, 1, 5, 9, 13, 0, 4, 8, 12},
}

// NormalizeTurns reduces n modulo 4 into 0..3; -1 becomes 3.
func NormalizeTurns(n int) int {
	return ((n % 4) + 4) % 4
}

// Rotate turns p clockwise by quarterTurns, which may be negative or larger
// than 3. The bytes are moved, never decoded.
func Rotate(p Packed, quarterTurns int) Packed {
	n := NormalizeTurns(quarterTurns)
	if n == 0 {
		return p
	}
	return permuteBytes(p, &rotationTables[n])
}

// permuteBytes is the scalar equivalent of a 16-lane byte shuffle.
func permuteBytes(src Packed, table *[Cells]uint8) Packed {
	var dst Packed
	for i, j := range table {
		dst[i] = src[j]
	}
	return dst
}
