package position

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wricardo/packed2048/game/tile"
)

// scenarioGrid is a mid-game position used across the tests.
var scenarioGrid = Grid{
	{16, 8, 8, 4},
	{4, 2, 0, 0},
	{2, 0, 0, 0},
	{0, 0, 2, 0},
}

// randomGrid fills every cell with a valid tile drawn from rng.
func randomGrid(rng *rand.Rand) Grid {
	var g Grid
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			e := rng.Intn(tile.MaxExponent + 1)
			if e > 0 {
				g[row][col] = 1 << e
			}
		}
	}
	return g
}

// rotateGridClockwise is the obvious logical rotation the permutation tables
// must agree with.
func rotateGridClockwise(g Grid) Grid {
	var out Grid
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			out[col][Size-1-row] = g[row][col]
		}
	}
	return out
}

func mustPack(t *testing.T, g Grid) Packed {
	t.Helper()
	p, err := Pack(g)
	require.NoError(t, err)
	return p
}
