package processor

import (
	"fmt"

	"github.com/nci/terrain/utils"
)

// ElevationGrid is a decimated raster held in memory together with the
// extents of the raster it was sampled from.
type ElevationGrid struct {
	Width, Height int
	Samples       []float32
	Extents       utils.Extents
}

func NewElevationGrid(width, height int, ext utils.Extents) (*ElevationGrid, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid grid size %dx%d", width, height)
	}
	return &ElevationGrid{
		Width:   width,
		Height:  height,
		Samples: make([]float32, width*height),
		Extents: ext,
	}, nil
}

// At panics when (x, y) lies outside the grid.
func (g *ElevationGrid) At(x, y int) float32 {
	return g.Samples[g.index(x, y)]
}

func (g *ElevationGrid) Set(x, y int, v float32) {
	g.Samples[g.index(x, y)] = v
}

// Row returns the samples of row y, sharing storage with the grid.
func (g *ElevationGrid) Row(y int) []float32 {
	start := g.index(0, y)
	return g.Samples[start : start+g.Width]
}

func (g *ElevationGrid) index(x, y int) int {
	if x < 0 || x >= g.Width || y < 0 || y >= g.Height {
		panic(fmt.Sprintf("grid index (%d,%d) outside %dx%d", x, y, g.Width, g.Height))
	}
	return y*g.Width + x
}
