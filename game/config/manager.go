package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wricardo/packed2048/game/position"
	"github.com/wricardo/packed2048/game/service"
)

var (
	ErrFixtureNotFound = service.ErrFixtureNotFound
	ErrInvalidFixture  = errors.New("invalid fixture")
)

// DefaultFixtureName is loaded as the default when present in the directory
const DefaultFixtureName = "scenario"

// Manager handles fixture loading and caching
type Manager struct {
	fixtureDir     string
	defaultFixture *service.Fixture
	fixtures       map[string]*service.Fixture
	mu             sync.RWMutex
}

// NewManager creates a new fixture manager
func NewManager(fixtureDir string) (*Manager, error) {
	// Ensure fixture directory exists
	if _, err := os.Stat(fixtureDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("fixture directory does not exist: %s", fixtureDir)
	}

	m := &Manager{
		fixtureDir: fixtureDir,
		fixtures:   make(map[string]*service.Fixture),
	}

	// Load default fixture
	if err := m.loadDefaultFixture(); err != nil {
		return nil, fmt.Errorf("failed to load default fixture: %w", err)
	}

	return m, nil
}

// ValidateFixture checks that a fixture is named and that its tiles pack
func ValidateFixture(fixture *service.Fixture) error {
	if fixture.Name == "" {
		return fmt.Errorf("fixture validation: name is required")
	}

	grid, err := position.ParseGrid(fixture.Tiles)
	if err != nil {
		return fmt.Errorf("fixture validation: tiles: %w", err)
	}
	if _, err := position.Pack(grid); err != nil {
		return fmt.Errorf("fixture validation: tiles: %w", err)
	}

	return nil
}

// LoadFixture loads a fixture by name
func (m *Manager) LoadFixture(name string) (*service.Fixture, error) {
	name = fixtureID(name)

	m.mu.RLock()
	// Check cache first
	if fixture, exists := m.fixtures[name]; exists {
		m.mu.RUnlock()
		return fixture, nil
	}
	m.mu.RUnlock()

	// Load from file
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if fixture, exists := m.fixtures[name]; exists {
		return fixture, nil
	}

	data, err := os.ReadFile(m.fixturePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFixtureNotFound
		}
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	var fixture service.Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	if err := ValidateFixture(&fixture); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}

	// Cache the fixture
	m.fixtures[name] = &fixture
	return &fixture, nil
}

// ListFixtures returns information about all available fixtures
func (m *Manager) ListFixtures() ([]*service.FixtureInfo, error) {
	entries, err := os.ReadDir(m.fixtureDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture directory: %w", err)
	}

	var fixtures []*service.FixtureInfo

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")

		fixture, err := m.LoadFixture(name)
		if err != nil {
			// Skip invalid fixtures
			continue
		}

		// Validated on load, so these cannot fail
		grid, _ := position.ParseGrid(fixture.Tiles)
		packed, _ := position.Pack(grid)

		fixtures = append(fixtures, &service.FixtureInfo{
			Filename:    entry.Name(),
			FixtureID:   name,
			Name:        fixture.Name,
			Description: fixture.Description,
			Packed:      packed.String(),
		})
	}

	return fixtures, nil
}

// GetDefault returns the default fixture
func (m *Manager) GetDefault() *service.Fixture {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultFixture
}

// SetDefault sets the default fixture by name
func (m *Manager) SetDefault(name string) error {
	fixture, err := m.LoadFixture(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultFixture = fixture
	return nil
}

// RefreshCache reloads all cached fixtures from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.fixtures = make(map[string]*service.Fixture)
	m.mu.Unlock()

	return m.loadDefaultFixture()
}

// SaveFixture saves a fixture to disk
func (m *Manager) SaveFixture(name string, fixture *service.Fixture) error {
	if err := ValidateFixture(fixture); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}

	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fixture: %w", err)
	}

	if err := os.WriteFile(m.fixturePath(name), data, 0644); err != nil {
		return fmt.Errorf("failed to write fixture file: %w", err)
	}

	// Update cache
	m.mu.Lock()
	m.fixtures[fixtureID(name)] = fixture
	m.mu.Unlock()

	return nil
}

// fixtureID reduces a fixture name or path to the ID used for its file and cache entry
func fixtureID(name string) string {
	return strings.TrimSuffix(filepath.Base(name), ".json")
}

// fixturePath is the file a fixture ID is stored in
func (m *Manager) fixturePath(name string) string {
	return filepath.Join(m.fixtureDir, fixtureID(name)+".json")
}

// loadDefaultFixture loads the default fixture
func (m *Manager) loadDefaultFixture() error {
	fixture, err := m.LoadFixture(DefaultFixtureName)
	if err != nil {
		// Try to load the first available fixture
		fixtures, listErr := m.ListFixtures()
		if listErr != nil || len(fixtures) == 0 {
			m.setDefault(createBuiltinFixture())
			return nil
		}

		fixture, err = m.LoadFixture(fixtures[0].FixtureID)
		if err != nil {
			m.setDefault(createBuiltinFixture())
			return nil
		}
	}

	m.setDefault(fixture)
	return nil
}

func (m *Manager) setDefault(fixture *service.Fixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultFixture = fixture
}

// createBuiltinFixture returns the fixture used when the directory has none
func createBuiltinFixture() *service.Fixture {
	return &service.Fixture{
		Name:        "builtin",
		Description: "Mid-game position used when no fixture files are available",
		Tiles:       "16 8 8 4  4 2 0 0  2 0 0 0  0 0 2 0",
	}
}
