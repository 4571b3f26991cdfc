// Package service provides the layer between the transports and the position
// codec.
//
// The service package implements:
//   - Packing grids given as arrays or as sixteen-tile text
//   - Unpacking and validating packed positions
//   - Quarter-turn rotation, single and all four at once
//   - Named fixture loading through a FixtureManager
//   - Prometheus counters for every codec operation
//
// Core Interfaces:
//
// CodecService is the main service interface used by the REST API and, via
// the API, by the MCP tools. FixtureManager loads and lists the named grids
// kept in the fixture directory.
//
// Views:
//
// Every operation answers with PositionView values, which carry the logical
// grid, the hex form of the packed bytes, both 64-bit lanes, the exponent
// bytes, the text form accepted by position.ParseGrid and the aligned display
// block.
//
// Usage:
//
//	fixtures, err := config.NewManager("fixtures")
//	if err != nil {
//		log.Fatal(err)
//	}
//	codec := service.NewCodecService(fixtures)
//
//	view, err := codec.Parse(ctx, "16 8 8 4 4 2 0 0 2 0 0 0 0 0 2 0")
//	rotated, err := codec.Rotate(ctx, view.Packed, 1)
package service
