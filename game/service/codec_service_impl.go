package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/wricardo/packed2048/game/position"
)

var (
	// codecOperationsTotal counts codec operations by operation and result
	codecOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "packed2048_codec_operations_total",
		Help: "Total codec operations by operation and result",
	}, []string{"operation", "result"})

	// rotationTurnsTotal counts rotations by normalized quarter turns
	rotationTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "packed2048_rotation_turns_total",
		Help: "Total rotations by normalized quarter turns",
	}, []string{"turns"})
)

// codecServiceImpl implements the CodecService interface
type codecServiceImpl struct {
	fixtures FixtureManager
}

// NewCodecService creates a new codec service instance
func NewCodecService(fixtures FixtureManager) CodecService {
	return &codecServiceImpl{
		fixtures: fixtures,
	}
}

// observe records the outcome of an operation and passes err through
func observe(operation string, err error) error {
	result := "ok"
	if err != nil {
		result = "error"
	}
	codecOperationsTotal.WithLabelValues(operation, result).Inc()
	return err
}

// Pack encodes a logical grid
func (s *codecServiceImpl) Pack(ctx context.Context, grid position.Grid) (*PositionView, error) {
	packed, err := position.Pack(grid)
	if err != nil {
		return nil, observe("pack", fmt.Errorf("failed to pack grid: %w", err))
	}

	view, err := NewPositionView(packed)
	return view, observe("pack", err)
}

// Parse reads the sixteen-tile text form and packs it
func (s *codecServiceImpl) Parse(ctx context.Context, text string) (*PositionView, error) {
	grid, err := position.ParseGrid(text)
	if err != nil {
		return nil, observe("parse", fmt.Errorf("failed to parse grid: %w", err))
	}

	packed, err := position.Pack(grid)
	if err != nil {
		return nil, observe("parse", fmt.Errorf("failed to pack grid: %w", err))
	}

	view, err := NewPositionView(packed)
	return view, observe("parse", err)
}

// Unpack decodes a packed position
func (s *codecServiceImpl) Unpack(ctx context.Context, packed position.Packed) (*PositionView, error) {
	view, err := NewPositionView(packed)
	if err != nil {
		return nil, observe("unpack", fmt.Errorf("failed to unpack position: %w", err))
	}
	return view, observe("unpack", nil)
}

// Rotate turns a packed position clockwise by the requested quarter turns
func (s *codecServiceImpl) Rotate(ctx context.Context, packed position.Packed, turns int) (*RotationResult, error) {
	// position.Rotate does not validate
	if err := packed.Validate(); err != nil {
		return nil, observe("rotate", fmt.Errorf("failed to rotate position: %w", err))
	}

	result, err := rotate(packed, turns)
	return result, observe("rotate", err)
}

// Rotations returns the position under all four quarter turns
func (s *codecServiceImpl) Rotations(ctx context.Context, packed position.Packed) (*RotationSet, error) {
	if err := packed.Validate(); err != nil {
		return nil, observe("rotations", fmt.Errorf("failed to rotate position: %w", err))
	}

	set := &RotationSet{}
	seen := make(map[position.Packed]bool, 4)
	for turns := 0; turns < 4; turns++ {
		rotated := position.Rotate(packed, turns)
		view, err := NewPositionView(rotated)
		if err != nil {
			return nil, observe("rotations", err)
		}
		set.Rotations[turns] = view
		seen[rotated] = true
	}
	set.Distinct = len(seen)

	return set, observe("rotations", nil)
}

// ListFixtures returns available fixtures
func (s *codecServiceImpl) ListFixtures(ctx context.Context) ([]*FixtureInfo, error) {
	return s.fixtures.ListFixtures()
}

// LoadFixture loads a fixture, packs it and applies its turns
func (s *codecServiceImpl) LoadFixture(ctx context.Context, name string) (*FixtureResult, error) {
	var fixture *Fixture
	var err error
	if name != "" {
		fixture, err = s.fixtures.LoadFixture(name)
		if err != nil {
			// Provide helpful error message with available options
			if errors.Is(err, ErrFixtureNotFound) {
				available, listErr := s.fixtures.ListFixtures()
				if listErr == nil && len(available) > 0 {
					var ids []string
					for _, f := range available {
						ids = append(ids, f.FixtureID)
					}
					return nil, fmt.Errorf("fixture '%s' not found. Available fixtures: %v: %w", name, ids, err)
				}
			}
			return nil, fmt.Errorf("failed to load fixture %s: %w", name, err)
		}
	} else {
		fixture = s.fixtures.GetDefault()
		name = "default"
	}
	if fixture == nil {
		return nil, errors.New("no fixture available")
	}

	view, err := s.Parse(ctx, fixture.Tiles)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", name, err)
	}

	result := &FixtureResult{
		FixtureID: name,
		Fixture:   fixture,
		Position:  view,
	}

	if fixture.Turns != 0 {
		rotated, err := rotate(view.Packed, fixture.Turns)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", name, err)
		}
		result.Rotated = rotated
	}

	return result, nil
}

// SaveFixture saves a fixture to disk
func (s *codecServiceImpl) SaveFixture(ctx context.Context, name string, fixture *Fixture) error {
	return s.fixtures.SaveFixture(name, fixture)
}

// rotate builds a RotationResult for an already validated position
func rotate(packed position.Packed, turns int) (*RotationResult, error) {
	normalized := position.NormalizeTurns(turns)
	rotationTurnsTotal.WithLabelValues(fmt.Sprint(normalized)).Inc()

	from, err := NewPositionView(packed)
	if err != nil {
		return nil, err
	}
	to, err := NewPositionView(position.Rotate(packed, turns))
	if err != nil {
		return nil, err
	}

	return &RotationResult{
		RequestedTurns:  turns,
		NormalizedTurns: normalized,
		From:            from,
		To:              to,
	}, nil
}
