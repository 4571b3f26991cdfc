// Package config loads the named grids ("fixtures") used by the API, the
// MCP tools and the command line.
//
// The config package handles:
//   - Loading fixtures from JSON files
//   - Fixture validation (every fixture must pack)
//   - Default fixture management
//   - Fixture discovery and listing
//
// Fixture Format:
//
// Fixtures are stored as JSON files in the fixture directory:
//
//	{
//	  "name": "Scenario",
//	  "description": "Mid-game position",
//	  "tiles": "16 8 8 4  4 2 0 0  2 0 0 0  0 0 2 0",
//	  "turns": 1
//	}
//
// tiles uses the sixteen-tile text form read by position.ParseGrid. turns is
// optional and names the quarter turns applied when the fixture is loaded
// through the service.
//
// Usage:
//
//	manager, err := config.NewManager("fixtures")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fixture, err := manager.LoadFixture("scenario")
//	defaultFixture := manager.GetDefault()
//	fixtures, err := manager.ListFixtures()
//
// When the directory holds no valid fixture, GetDefault returns a built-in
// mid-game position.
package config
