package position

import "github.com/wricardo/packed2048/game/tile"

// Pack encodes every cell of g. It fails on the first invalid tile, reporting
// its row and column, and never returns a partially packed value.
func Pack(g Grid) (Packed, error) {
	var p Packed
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if err := p.SetTile(row, col, tile.Value(g[row][col])); err != nil {
				return Packed{}, err
			}
		}
	}
	return p, nil
}

// Unpack decodes every cell of p. A byte outside the exponent range is
// rejected rather than decoded.
func Unpack(p Packed) (Grid, error) {
	var g Grid
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			v, err := p.Tile(row, col)
			if err != nil {
				return Grid{}, err
			}
			g[row][col] = uint32(v)
		}
	}
	return g, nil
}
