// Package api provides HTTP REST API handlers for the packed position codec.
//
// The api package implements:
//   - Pack, parse, unpack and rotate endpoints
//   - Fixture listing, loading and saving
//   - WebSocket upgrade handling for position events
//   - Prometheus metrics exposure
//
// Endpoints:
//
// Codec Operations:
//   - POST /api/pack - Pack a grid ({"grid": [[...]]} or {"tiles": "..."})
//   - POST /api/parse - Parse the sixteen-tile text form
//   - POST /api/unpack - Unpack a hex encoded position
//   - POST /api/rotate - Rotate a position by quarter turns
//   - POST /api/rotations - All four rotations of a position
//
// Fixtures:
//   - GET /api/fixtures - List fixtures
//   - POST /api/fixtures - Save a fixture
//   - GET /api/fixtures/{name} - Load a fixture
//   - GET /api/fixtures/{name}/rotations - All four rotations of a fixture
//
// Pack, unpack and rotate broadcast their result to the WebSocket channel
// named by the optional channel query parameter ("positions" by default).
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//	server := api.NewServer(codecService, hub)
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Errors are returned as JSON. Invalid tiles, exponents and malformed input
// map to 400, unknown fixtures to 404:
//
//	{
//	  "error": "error message"
//	}
package api
