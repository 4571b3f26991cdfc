package service

import (
	"context"
	"errors"

	"github.com/wricardo/packed2048/game/position"
)

// ErrFixtureNotFound is returned by a FixtureManager for an unknown fixture name
var ErrFixtureNotFound = errors.New("fixture not found")

// CodecService defines the position operations exposed to transports
type CodecService interface {
	// Conversions
	Pack(ctx context.Context, grid position.Grid) (*PositionView, error)
	Parse(ctx context.Context, text string) (*PositionView, error)
	Unpack(ctx context.Context, packed position.Packed) (*PositionView, error)

	// Transforms
	Rotate(ctx context.Context, packed position.Packed, turns int) (*RotationResult, error)
	Rotations(ctx context.Context, packed position.Packed) (*RotationSet, error)

	// Fixtures
	ListFixtures(ctx context.Context) ([]*FixtureInfo, error)
	LoadFixture(ctx context.Context, name string) (*FixtureResult, error)
	SaveFixture(ctx context.Context, name string, fixture *Fixture) error
}

// FixtureManager handles named grid loading
type FixtureManager interface {
	LoadFixture(name string) (*Fixture, error)
	ListFixtures() ([]*FixtureInfo, error)
	GetDefault() *Fixture
	SaveFixture(name string, fixture *Fixture) error
}
