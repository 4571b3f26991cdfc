package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/packed2048/game/position"
	"github.com/wricardo/packed2048/game/service"
	"github.com/wricardo/packed2048/game/tile"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Packed 2048 Codec",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(`Packed 2048 Codec - MCP Interface

This is a thin client that proxies all requests to the REST API server.

A 4x4 grid of 2048 tiles packs into 16 bytes, one exponent per cell,
row-major. Tiles are 0 or powers of two from 2 to 131072.

AVAILABLE TOOLS:
- pack_grid: Pack sixteen tiles into the 32 hex character form
- parse_grid: Parse sixteen whitespace-separated tiles
- unpack_position: Unpack a hex position into a grid
- rotate_position: Rotate a position clockwise by quarter turns
- all_rotations: Show a position under all four rotations
- describe_cell: Exponent and tile of one cell of a position
- list_fixtures: List stored fixture grids
- get_fixture: Load a stored fixture
- codec_instructions: Layout and rules of the packed format`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	packedProperty := map[string]interface{}{
		"type":        "string",
		"description": "Packed position as 32 hex characters",
	}

	// Conversions
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "pack_grid",
		Description: "Pack a 4x4 grid of tiles into its 16 byte form",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"tiles": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "integer"},
					"description": "Sixteen tiles, row-major",
				},
			},
			Required: []string{"tiles"},
		},
	}, c.handlePackGrid)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "parse_grid",
		Description: "Parse sixteen whitespace-separated tiles and pack them",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Sixteen non-negative integers, row-major",
				},
			},
			Required: []string{"text"},
		},
	}, c.handleParseGrid)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "unpack_position",
		Description: "Unpack a packed position into its grid",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"packed": packedProperty,
			},
			Required: []string{"packed"},
		},
	}, c.handleUnpackPosition)

	// Transforms
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "rotate_position",
		Description: "Rotate a packed position clockwise by quarter turns (negative turns rotate counter-clockwise)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"packed": packedProperty,
				"turns": map[string]interface{}{
					"type":        "integer",
					"description": "Quarter turns, any integer",
				},
			},
			Required: []string{"packed", "turns"},
		},
	}, c.handleRotatePosition)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "all_rotations",
		Description: "Show a packed position under all four quarter turns",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"packed": packedProperty,
			},
			Required: []string{"packed"},
		},
	}, c.handleAllRotations)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Get the exponent, tile and byte offset of one cell in a packed position",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"packed": packedProperty,
				"row": map[string]interface{}{
					"type":        "integer",
					"description": "Row of the cell (0-3)",
				},
				"col": map[string]interface{}{
					"type":        "integer",
					"description": "Column of the cell (0-3)",
				},
			},
			Required: []string{"packed", "row", "col"},
		},
	}, c.handleDescribeCell)

	// Fixtures
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_fixtures",
		Description: "List stored fixture grids",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListFixtures)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_fixture",
		Description: "Load a stored fixture with its packed and rotated forms",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Fixture ID from list_fixtures",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleGetFixture)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "codec_instructions",
		Description: "Get the layout and rules of the packed position format",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleCodecInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// intArg reads a whole JSON number argument
func intArg(args map[string]interface{}, name string) (int, error) {
	raw, present := args[name]
	if !present {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, ok := raw.(float64)
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be an integer, got %v", name, raw)
	}
	return int(v), nil
}

// Tool handlers

func (c *Client) handlePackGrid(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	tilesRaw, _ := args["tiles"].([]interface{})

	if len(tilesRaw) != position.Cells {
		return mcp.NewToolResultError(fmt.Sprintf("tiles must hold %d values, got %d", position.Cells, len(tilesRaw))), nil
	}

	var grid position.Grid
	for i, raw := range tilesRaw {
		v, ok := raw.(float64)
		if !ok || v < 0 || v != float64(uint32(v)) {
			return mcp.NewToolResultError(fmt.Sprintf("tile %d is not a non-negative integer: %v", i, raw)), nil
		}
		grid[i/position.Size][i%position.Size] = uint32(v)
	}

	var view service.PositionView
	err := c.apiCall("POST", "/api/pack", map[string]interface{}{"grid": grid}, &view)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPositionView(&view)), nil
}

func (c *Client) handleParseGrid(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	text, _ := args["text"].(string)

	var view service.PositionView
	err := c.apiCall("POST", "/api/parse", map[string]string{"text": text}, &view)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPositionView(&view)), nil
}

func (c *Client) handleUnpackPosition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	packed, _ := args["packed"].(string)

	var view service.PositionView
	err := c.apiCall("POST", "/api/unpack", map[string]string{"packed": packed}, &view)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPositionView(&view)), nil
}

func (c *Client) handleRotatePosition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	packed, _ := args["packed"].(string)
	turns, err := intArg(args, "turns")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]interface{}{
		"packed": packed,
		"turns":  turns,
	}

	var result service.RotationResult
	err = c.apiCall("POST", "/api/rotate", body, &result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRotationResult(&result)), nil
}

func (c *Client) handleAllRotations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	packed, _ := args["packed"].(string)

	var set service.RotationSet
	err := c.apiCall("POST", "/api/rotations", map[string]string{"packed": packed}, &set)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRotationSet(&set)), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	packed, _ := args["packed"].(string)
	row, err := intArg(args, "row")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	col, err := intArg(args, "col")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if row < 0 || row >= position.Size || col < 0 || col >= position.Size {
		return mcp.NewToolResultError(fmt.Sprintf("cell (%d,%d) is outside the 4x4 grid", row, col)), nil
	}

	var view service.PositionView
	err = c.apiCall("POST", "/api/unpack", map[string]string{"packed": packed}, &view)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCell(&view, row, col)), nil
}

func (c *Client) handleListFixtures(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Fixtures []service.FixtureInfo `json:"fixtures"`
	}

	err := c.apiCall("GET", "/api/fixtures", nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Available Fixtures (%d):\n\n", response.Count)
	for _, f := range response.Fixtures {
		result += fmt.Sprintf("• %s (%s)\n  %s\n  Packed: %s\n\n",
			f.FixtureID, f.Name, f.Description, f.Packed)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetFixture(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	var result service.FixtureResult
	err := c.apiCall("GET", fmt.Sprintf("/api/fixtures/%s", name), nil, &result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFixtureResult(&result)), nil
}

func (c *Client) handleCodecInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := fmt.Sprintf(`Packed 2048 Codec - Format Reference

TILES:
• A tile is 0 (empty) or a power of two 2^k with 1 <= k <= %d
• The largest tile is %d
• 1, 3, 6 and any other non power of two are rejected

PACKED LAYOUT:
• 16 bytes, one per cell; byte i holds the exponent of cell (i/4, i%%4)
• Cells are row-major: bytes 0-3 are row 0, bytes 12-15 are row 3
• Lane 0 (bytes 0-7) holds rows 0-1, lane 1 (bytes 8-15) holds rows 2-3
• Lanes read as little-endian 64-bit integers: byte 0 is the low byte
• The hex form is the 16 bytes in order, 32 lowercase hex characters

ROTATION:
• rotate_position turns clockwise; turns are taken modulo 4
• -1 equals 3, 5 equals 1, 0 and 4 leave the position unchanged
• Rotation only moves bytes; it never changes an exponent

TEXT FORM:
• Sixteen non-negative integers separated by whitespace, row-major
• Example: 16 8 8 4 4 2 0 0 2 0 0 0 0 0 2 0
  packs to 04030302020100000100000000000100

ERRORS:
• invalid tile: a value that is not 0 or an allowed power of two
• invalid exponent: a byte above %d in a packed position
• malformed input: wrong token count or a token that is not a number`,
		tile.MaxExponent, uint32(1)<<tile.MaxExponent, tile.MaxExponent)

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatPositionView(view *service.PositionView) string {
	var b strings.Builder
	b.WriteString(view.Display)
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Packed: %s\n", view.Packed))
	b.WriteString(fmt.Sprintf("Lanes: lo=%s hi=%s\n", view.Lanes[0], view.Lanes[1]))
	b.WriteString(fmt.Sprintf("Exponents: %v\n", view.Exponents))
	b.WriteString(fmt.Sprintf("Tiles: %s\n", view.Text))
	return b.String()
}

func formatRotationResult(result *service.RotationResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Rotated %d quarter turn(s) clockwise (requested %d)\n\n",
		result.NormalizedTurns, result.RequestedTurns))
	if result.From != nil {
		b.WriteString("From:\n")
		b.WriteString(result.From.Display)
		b.WriteString(fmt.Sprintf("Packed: %s\n\n", result.From.Packed))
	}
	if result.To != nil {
		b.WriteString("To:\n")
		b.WriteString(formatPositionView(result.To))
	}
	return b.String()
}

func formatRotationSet(set *service.RotationSet) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Distinct rotations: %d\n", set.Distinct))
	for turns, view := range set.Rotations {
		if view == nil {
			continue
		}
		b.WriteString(fmt.Sprintf("\n%d quarter turn(s): %s\n", turns, view.Packed))
		b.WriteString(view.Display)
	}
	return b.String()
}

func formatCell(view *service.PositionView, row, col int) string {
	idx := row*position.Size + col
	exp := view.Exponents[idx]
	lane := idx / position.LaneBytes

	result := fmt.Sprintf("Cell (%d,%d)\n", row, col)
	result += fmt.Sprintf("Byte offset: %d (lane %d, bit shift %d)\n", idx, lane, 8*(idx%position.LaneBytes))
	result += fmt.Sprintf("Exponent: %d\n", exp)
	if exp == 0 {
		result += "Tile: empty\n"
	} else {
		result += fmt.Sprintf("Tile: %d\n", view.Grid[row][col])
	}
	return result
}

func formatFixtureResult(result *service.FixtureResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Fixture: %s\n", result.FixtureID))
	if result.Fixture != nil {
		b.WriteString(fmt.Sprintf("Name: %s\n", result.Fixture.Name))
		if result.Fixture.Description != "" {
			b.WriteString(fmt.Sprintf("Description: %s\n", result.Fixture.Description))
		}
	}
	b.WriteString("\n")
	if result.Position != nil {
		b.WriteString(formatPositionView(result.Position))
	}
	if result.Rotated != nil {
		b.WriteString("\n")
		b.WriteString(formatRotationResult(result.Rotated))
	}
	return b.String()
}
