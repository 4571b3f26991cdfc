// Command analyze prints quick, human-readable facts about the fixture files
// in the project's fixtures directory: packed form, lanes, tile statistics and
// how the position behaves under rotation.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/wricardo/packed2048/game/position"
)

// AnalysisFixture is a light struct for reading fixture files used by analysis.
type AnalysisFixture struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Tiles       string `json:"tiles"`
	Turns       int    `json:"turns"`
}

// Symmetry names the rotational symmetry of a position.
type Symmetry string

const (
	SymmetryNone    Symmetry = "none"
	SymmetryHalf    Symmetry = "half-turn"
	SymmetryQuarter Symmetry = "quarter-turn"
)

// rotationSymmetry classifies p by the smallest turn count that maps it onto
// itself.
func rotationSymmetry(p position.Packed) Symmetry {
	switch {
	case position.Rotate(p, 1) == p:
		return SymmetryQuarter
	case position.Rotate(p, 2) == p:
		return SymmetryHalf
	default:
		return SymmetryNone
	}
}

func main() {
	fixtureDir := "fixtures"
	if len(os.Args) > 1 {
		fixtureDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(fixtureDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding fixture files: %v\n", err)
		os.Exit(1)
	}
	sort.Strings(files)

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		if err := analyzeFixture(os.Stdout, file); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func analyzeFixture(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var fixture AnalysisFixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	grid, err := position.ParseGrid(fixture.Tiles)
	if err != nil {
		return err
	}
	packed, err := position.Pack(grid)
	if err != nil {
		return err
	}

	lo, hi := packed.Lanes()
	fmt.Fprintf(w, "Name: %s\n", fixture.Name)
	fmt.Fprint(w, grid.String())
	fmt.Fprintf(w, "Packed: %s\n", packed)
	fmt.Fprintf(w, "Lanes: lo=%016x hi=%016x\n", lo, hi)

	// Tile histogram by exponent
	var counts [32]int
	for _, e := range packed.Exponents() {
		counts[e]++
	}
	fmt.Fprintf(w, "Empty cells: %d\n", counts[0])
	for e := 1; e < len(counts); e++ {
		if counts[e] > 0 {
			fmt.Fprintf(w, "  %d x %d\n", counts[e], uint32(1)<<e)
		}
	}

	// Rotations
	seen := make(map[position.Packed]bool, 4)
	for turns := 0; turns < 4; turns++ {
		rotated := position.Rotate(packed, turns)
		seen[rotated] = true
		fmt.Fprintf(w, "Rotation %d: %s\n", turns, rotated)
	}
	fmt.Fprintf(w, "Distinct rotations: %d\n", len(seen))
	fmt.Fprintf(w, "Symmetry: %s\n", rotationSymmetry(packed))

	if fixture.Turns != 0 {
		loaded := position.Rotate(packed, fixture.Turns)
		fmt.Fprintf(w, "Loaded with %d turn(s): %s\n", fixture.Turns, loaded)
	}

	return nil
}
