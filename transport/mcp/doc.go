// Package mcp provides a Model Context Protocol server for the packed
// position codec.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions for codec operations
//   - A thin client that proxies every tool to the REST API
//
// MCP Tools:
//   - pack_grid: Pack sixteen tiles into the 16 byte form
//   - parse_grid: Parse the whitespace-separated text form
//   - unpack_position: Unpack a hex position into its grid
//   - rotate_position: Rotate a position by quarter turns
//   - all_rotations: A position under all four rotations
//   - describe_cell: Exponent, tile and byte offset of one cell
//   - list_fixtures: List stored fixture grids
//   - get_fixture: Load a fixture with its packed and rotated forms
//   - codec_instructions: Layout and rules of the packed format
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: POST /mcp handled by client.GetMCPServer().HandleMessage
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
