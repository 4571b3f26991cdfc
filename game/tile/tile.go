package tile

import (
	"errors"
	"fmt"
	"math/bits"
)

// MaxExponent is the largest exponent a 4x4 grid can reach: 2^17 = 131072.
const MaxExponent = 17

var (
	ErrInvalidTile     = errors.New("invalid tile")
	ErrInvalidExponent = errors.New("invalid exponent")
)

// Value is a tile as displayed: 0 or a power of two.
type Value uint32

// Exponent is the packed form of a tile. Only the low five bits are ever set.
type Exponent uint8

// Encode returns the exponent of v. Zero encodes to zero.
func Encode(v Value) (Exponent, error) {
	if v == 0 {
		return 0, nil
	}
	if bits.OnesCount32(uint32(v)) != 1 {
		return 0, fmt.Errorf("%w: %d is not a power of two", ErrInvalidTile, v)
	}

	k := bits.TrailingZeros32(uint32(v))
	if k < 1 || k > MaxExponent {
		return 0, fmt.Errorf("%w: %d is outside 2..%d", ErrInvalidTile, v, uint32(1)<<MaxExponent)
	}
	return Exponent(k), nil
}

// Decode returns the tile value for e.
func Decode(e Exponent) (Value, error) {
	if e > MaxExponent {
		return 0, fmt.Errorf("%w: %d exceeds %d", ErrInvalidExponent, e, MaxExponent)
	}
	if e == 0 {
		return 0, nil
	}
	return Value(1) << e, nil
}

// IsValidTile reports whether v can be encoded.
func IsValidTile(v Value) bool {
	_, err := Encode(v)
	return err == nil
}

// IsValidExponent reports whether e can be decoded.
func IsValidExponent(e Exponent) bool {
	return e <= MaxExponent
}
