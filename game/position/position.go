package position

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/wricardo/packed2048/game/tile"
)

const (
	// Size is the width of the grid on each side.
	Size = 4

	// Cells is the number of tiles in a grid.
	Cells = Size * Size

	// LaneBytes is the number of cells stored in each 64-bit lane.
	LaneBytes = 8
)

var ErrMalformedInput = errors.New("malformed input")

// Grid is the logical form of a position, indexed [row][col].
type Grid [Size][Size]uint32

// Packed is the 16-byte form of a position. See the package documentation
// for the byte layout.
type Packed [Cells]byte

// CellError reports the cell that failed to pack or unpack.
type CellError struct {
	Row int
	Col int
	Err error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("row %d, col %d: %v", e.Row, e.Col, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// offset returns the byte index of (row, col).
func offset(row, col int) int {
	return row*Size + col
}

// Exponent returns the raw exponent byte stored at (row, col). It is not
// range checked; use Validate or Unpack for that.
func (p Packed) Exponent(row, col int) uint8 {
	return p[offset(row, col)]
}

// Tile decodes the tile at (row, col).
func (p Packed) Tile(row, col int) (tile.Value, error) {
	v, err := tile.Decode(tile.Exponent(p.Exponent(row, col)))
	if err != nil {
		return 0, &CellError{Row: row, Col: col, Err: err}
	}
	return v, nil
}

// SetTile encodes v into (row, col). An invalid tile or a cell off the grid
// returns a *CellError and leaves p unchanged.
func (p *Packed) SetTile(row, col int, v tile.Value) error {
	if err := checkCell(row, col); err != nil {
		return err
	}
	e, err := tile.Encode(v)
	if err != nil {
		return &CellError{Row: row, Col: col, Err: err}
	}
	p[offset(row, col)] = uint8(e)
	return nil
}

// SetExponent stores e at (row, col) after range checking it.
func (p *Packed) SetExponent(row, col int, e tile.Exponent) error {
	if err := checkCell(row, col); err != nil {
		return err
	}
	if !tile.IsValidExponent(e) {
		return &CellError{Row: row, Col: col, Err: fmt.Errorf("%w: %d", tile.ErrInvalidExponent, e)}
	}
	p[offset(row, col)] = uint8(e)
	return nil
}

func checkCell(row, col int) error {
	if row < 0 || row >= Size || col < 0 || col >= Size {
		return &CellError{Row: row, Col: col, Err: fmt.Errorf("%w: cell outside the %dx%d grid", ErrMalformedInput, Size, Size)}
	}
	return nil
}

// Exponents returns the sixteen exponent bytes in layout order.
func (p Packed) Exponents() [Cells]uint8 {
	return [Cells]uint8(p)
}

// Validate checks every byte against the exponent range and reports the first
// offending cell.
func (p Packed) Validate() error {
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if e := tile.Exponent(p.Exponent(row, col)); !tile.IsValidExponent(e) {
				return &CellError{
					Row: row,
					Col: col,
					Err: fmt.Errorf("%w: %d exceeds %d", tile.ErrInvalidExponent, e, tile.MaxExponent),
				}
			}
		}
	}
	return nil
}

// Lanes returns the two 64-bit lanes, each read little-endian.
func (p Packed) Lanes() (lo, hi uint64) {
	return binary.LittleEndian.Uint64(p[:LaneBytes]), binary.LittleEndian.Uint64(p[LaneBytes:])
}

// FromLanes builds a Packed value from its two lanes.
func FromLanes(lo, hi uint64) Packed {
	var p Packed
	binary.LittleEndian.PutUint64(p[:LaneBytes], lo)
	binary.LittleEndian.PutUint64(p[LaneBytes:], hi)
	return p
}

// String returns the 32 hex digits of p in byte order.
func (p Packed) String() string {
	return hex.EncodeToString(p[:])
}

// ParsePacked reads the hex form produced by Packed.String. The bytes are not
// range checked.
func ParsePacked(s string) (Packed, error) {
	var p Packed
	if len(s) != hex.EncodedLen(Cells) {
		return p, fmt.Errorf("%w: packed position must be %d hex digits, got %d", ErrMalformedInput, Cells*2, len(s))
	}
	if _, err := hex.Decode(p[:], []byte(s)); err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return p, nil
}

// MarshalText implements encoding.TextMarshaler using the hex form.
func (p Packed) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Packed) UnmarshalText(text []byte) error {
	parsed, err := ParsePacked(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
