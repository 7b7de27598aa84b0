package processor

import (
	"fmt"

	"github.com/nci/terrain/utils"
)

// Vertex is (x, elevation, y): elevation is the up axis of the scene.
type Vertex [3]float64

// Face holds vertex indices in the order top-left, bottom-left,
// bottom-right, top-right of a 2x2 grid neighbourhood. Renderers rely
// on this winding.
type Face [4]int

type Mesh struct {
	Vertices []Vertex
	Faces    []Face
	// GridWidth and GridHeight are the dimensions of the source grid.
	GridWidth, GridHeight int
}

// BuildMesh lays the grid out evenly over [XMin,XMax]x[YMin,YMax] and
// normalises elevations to [0, Scale] using the raster's extents.
// Samples outside the extents, nodata included, are clamped.
func BuildMesh(grid *ElevationGrid, params utils.MeshConfig) (*Mesh, error) {
	sp, err := utils.NewScaleParams(grid.Extents, params.Scale)
	if err != nil {
		return nil, err
	}
	if grid.Width < 1 || grid.Height < 1 || len(grid.Samples) != grid.Width*grid.Height {
		return nil, fmt.Errorf("malformed grid %dx%d with %d samples", grid.Width, grid.Height, len(grid.Samples))
	}

	xStep := (params.XMax - params.XMin) / float64(grid.Width)
	yStep := (params.YMax - params.YMin) / float64(grid.Height)

	mesh := &Mesh{
		Vertices:   make([]Vertex, 0, grid.Width*grid.Height),
		Faces:      make([]Face, 0, (grid.Width-1)*(grid.Height-1)),
		GridWidth:  grid.Width,
		GridHeight: grid.Height,
	}

	for yb := 0; yb < grid.Height; yb++ {
		y := params.YMin + float64(yb)*yStep
		for xb := 0; xb < grid.Width; xb++ {
			x := params.XMin + float64(xb)*xStep
			z := sp.NormaliseClamped(float64(grid.At(xb, yb)))
			mesh.Vertices = append(mesh.Vertices, Vertex{x, z, y})
		}
	}

	w := grid.Width
	for i := 0; i < grid.Height-1; i++ {
		for j := 0; j < grid.Width-1; j++ {
			mesh.Faces = append(mesh.Faces, Face{
				i*w + j,
				(i+1)*w + j,
				(i+1)*w + j + 1,
				i*w + j + 1,
			})
		}
	}

	return mesh, nil
}
