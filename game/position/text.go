package position

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/wricardo/packed2048/game/tile"
)

// ParseGrid reads exactly sixteen whitespace-separated tiles in row-major
// order.
func ParseGrid(s string) (Grid, error) {
	var g Grid

	fields := strings.Fields(s)
	if len(fields) != Cells {
		return g, fmt.Errorf("%w: %d tiles found (should be %d)", ErrMalformedInput, len(fields), Cells)
	}

	for i, field := range fields {
		n, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return Grid{}, fmt.Errorf("%w: token %d %q is not a non-negative integer", ErrMalformedInput, i, field)
		}
		row, col := i/Size, i%Size
		if _, err := tile.Encode(tile.Value(n)); err != nil {
			return Grid{}, &CellError{Row: row, Col: col, Err: err}
		}
		g[row][col] = uint32(n)
	}

	return g, nil
}

// Text returns the sixteen tiles separated by single spaces, the form read by
// ParseGrid.
func (g Grid) Text() string {
	tokens := make([]string, 0, Cells)
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			tokens = append(tokens, strconv.FormatUint(uint64(g[row][col]), 10))
		}
	}
	return strings.Join(tokens, " ")
}

// String renders g one row per line with every column right-aligned to its
// widest entry.
func (g Grid) String() string {
	var cells [Size][Size]string
	widths := [Size]int{1, 1, 1, 1}

	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			cells[row][col] = strconv.FormatUint(uint64(g[row][col]), 10)
			widths[col] = max(widths[col], len(cells[row][col]))
		}
	}

	var b strings.Builder
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			b.WriteString(strings.Repeat(" ", widths[col]-len(cells[row][col])))
			b.WriteString(cells[row][col])
			if col < Size-1 {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// UnmarshalJSON reads a grid as exactly four rows of four tiles. Any other
// shape fails with ErrMalformedInput instead of being padded or truncated.
// Tile values are not checked; Pack does that.
func (g *Grid) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var rows [][]uint32
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("%w: grid must be %d rows of %d tiles: %v", ErrMalformedInput, Size, Size, err)
	}
	if len(rows) != Size {
		return fmt.Errorf("%w: grid has %d rows (should be %d)", ErrMalformedInput, len(rows), Size)
	}

	var out Grid
	for row, cells := range rows {
		if len(cells) != Size {
			return fmt.Errorf("%w: grid row %d has %d tiles (should be %d)", ErrMalformedInput, row, len(cells), Size)
		}
		copy(out[row][:], cells)
	}
	*g = out
	return nil
}
