package service

import (
	"fmt"

	"github.com/wricardo/packed2048/game/position"
)

// PositionView shows one position in every form callers use
type PositionView struct {
	Grid      position.Grid         `json:"grid"`
	Packed    position.Packed       `json:"packed"`
	Lanes     [2]string             `json:"lanes"`
	Exponents [position.Cells]uint8 `json:"exponents"`
	Text      string                `json:"text"`
	Display   string                `json:"display"`
}

// RotationResult is the outcome of a single rotation
type RotationResult struct {
	RequestedTurns  int           `json:"requested_turns"`
	NormalizedTurns int           `json:"normalized_turns"`
	From            *PositionView `json:"from"`
	To              *PositionView `json:"to"`
}

// RotationSet holds a position under all four quarter turns
type RotationSet struct {
	Rotations [4]*PositionView `json:"rotations"`
	// Distinct counts the different packed values among the four rotations:
	// 1 for a fully symmetric grid, 2 for half-turn symmetry, otherwise 4.
	Distinct int `json:"distinct"`
}

// Fixture is a named grid stored as a JSON file
type Fixture struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Tiles       string `json:"tiles"`           // sixteen whitespace-separated tiles, row-major
	Turns       int    `json:"turns,omitempty"` // quarter turns applied when the fixture is loaded
}

// FixtureInfo provides information about a fixture file
type FixtureInfo struct {
	Filename    string `json:"filename"`
	FixtureID   string `json:"fixture_id"` // The identifier to use for loading
	Name        string `json:"name"`
	Description string `json:"description"`
	Packed      string `json:"packed"`
}

// FixtureResult is a loaded fixture with its packed and rotated forms
type FixtureResult struct {
	FixtureID string          `json:"fixture_id"`
	Fixture   *Fixture        `json:"fixture"`
	Position  *PositionView   `json:"position"`
	Rotated   *RotationResult `json:"rotated,omitempty"`
}

// NewPositionView builds the view of an already validated packed position.
func NewPositionView(p position.Packed) (*PositionView, error) {
	grid, err := position.Unpack(p)
	if err != nil {
		return nil, err
	}

	lo, hi := p.Lanes()
	return &PositionView{
		Grid:      grid,
		Packed:    p,
		Lanes:     [2]string{fmt.Sprintf("%016x", lo), fmt.Sprintf("%016x", hi)},
		Exponents: p.Exponents(),
		Text:      grid.Text(),
		Display:   grid.String(),
	}, nil
}
