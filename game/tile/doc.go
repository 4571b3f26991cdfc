// Package tile converts between a tile's displayed value and the packed
// exponent stored for it in a position.
//
// A tile is either empty (0) or a power of two 2^k with 1 <= k <= MaxExponent.
// The exponent of an empty tile is 0, the exponent of the 2 tile is 1, and so
// on. Conversions are strict in both directions: values that are not exact
// powers of two, and exponents beyond MaxExponent, are rejected rather than
// rounded to a nearby tile.
//
// Usage:
//
//	e, err := tile.Encode(2048) // e == 11
//	v, err := tile.Decode(e)    // v == 2048
package tile
