// Command validate provides a small CLI that validates fixture JSON files in
// the ../fixtures directory (or the directory given as the first argument).
// It checks:
//   - JSON structure and required fields
//   - Exactly sixteen numeric tiles
//   - Every tile is 0 or a power of two up to 2^17
//   - Pack and unpack round trip to the same grid
//   - Four quarter turns return the original position
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wricardo/packed2048/game/position"
	"github.com/wricardo/packed2048/game/tile"
)

// Fixture mirrors the JSON schema for a fixture file.
type Fixture struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Tiles       string `json:"tiles"`
	Turns       int    `json:"turns"`
}

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateFixture loads and validates a single fixture JSON file.
func validateFixture(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	if fixture.Name == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "Missing required field: name")
	}

	// Check tiles one by one so every bad cell is reported
	fields := strings.Fields(fixture.Tiles)
	if len(fields) != position.Cells {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Expected %d tiles, got %d", position.Cells, len(fields)))
		return result
	}

	var grid position.Grid
	for i, field := range fields {
		row, col := i/position.Size, i%position.Size
		n, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Tile at [%d,%d] is not a non-negative integer: %q", row, col, field))
			continue
		}
		if !tile.IsValidTile(tile.Value(n)) {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Invalid tile %d at [%d,%d]", n, row, col))
			continue
		}
		grid[row][col] = uint32(n)
	}

	if !result.Valid {
		return result
	}

	// Round trip checks
	packed, err := position.Pack(grid)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Pack failed: %v", err))
		return result
	}

	unpacked, err := position.Unpack(packed)
	if err != nil || unpacked != grid {
		result.Valid = false
		result.Errors = append(result.Errors, "Unpack does not restore the grid")
		return result
	}

	if position.Rotate(packed, 4) != packed {
		result.Valid = false
		result.Errors = append(result.Errors, "Four quarter turns do not restore the position")
		return result
	}

	// Add informational data
	lo, hi := packed.Lanes()
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", fixture.Name))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Packed: %s", packed))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Lanes: %016x %016x", lo, hi))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Largest tile: %d", largestTile(grid)))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Empty cells: %d", emptyCells(grid)))
	if fixture.Turns != 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Turns on load: %d (normalized %d)", fixture.Turns, position.NormalizeTurns(fixture.Turns)))
	}

	return result
}

func largestTile(grid position.Grid) uint32 {
	var largest uint32
	for _, row := range grid {
		for _, v := range row {
			largest = max(largest, v)
		}
	}
	return largest
}

func emptyCells(grid position.Grid) int {
	count := 0
	for _, row := range grid {
		for _, v := range row {
			if v == 0 {
				count++
			}
		}
	}
	return count
}

// main scans the fixture directory for *.json files and validates each one,
// printing a concise report and exiting with non-zero status if any are invalid.
func main() {
	fixtureDir := "../fixtures"
	if len(os.Args) > 1 {
		fixtureDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(fixtureDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding fixture files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateFixture(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All fixtures are valid!")
	} else {
		fmt.Println("❌ Some fixtures have errors")
		os.Exit(1)
	}
}
