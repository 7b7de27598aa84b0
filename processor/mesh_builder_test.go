package processor

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/nci/terrain/utils"
)

var defaultMesh = utils.MeshConfig{XMin: -100, XMax: 100, YMin: -100, YMax: 100, Scale: 25}

func filledGrid(t *testing.T, width, height int, ext utils.Extents) *ElevationGrid {
	grid, err := NewElevationGrid(width, height, ext)
	if err != nil {
		t.Fatal(err)
	}
	for i := range grid.Samples {
		grid.Samples[i] = float32(ext.Min + (ext.Max-ext.Min)*float64(i)/float64(len(grid.Samples)))
	}
	return grid
}

func TestBuildMeshExample(t *testing.T) {
	grid := filledGrid(t, 3, 3, utils.Extents{Min: 0, Max: 100})
	mesh, err := BuildMesh(grid, defaultMesh)
	if err != nil {
		t.Fatal(err)
	}

	if len(mesh.Vertices) != 9 || len(mesh.Faces) != 4 {
		t.Fatalf("expecting 9 vertices and 4 faces, actual %d and %d", len(mesh.Vertices), len(mesh.Faces))
	}

	expected := []Face{{0, 3, 4, 1}, {1, 4, 5, 2}, {3, 6, 7, 4}, {4, 7, 8, 5}}
	for i, f := range expected {
		if mesh.Faces[i] != f {
			t.Errorf("face %d: expecting %v, actual %v", i, f, mesh.Faces[i])
		}
	}
}

func TestBuildMeshTopology(t *testing.T) {
	for w := 1; w <= 6; w++ {
		for h := 1; h <= 6; h++ {
			mesh, err := BuildMesh(filledGrid(t, w, h, utils.Extents{Min: -10, Max: 10}), defaultMesh)
			if err != nil {
				t.Fatal(err)
			}
			if len(mesh.Vertices) != w*h {
				t.Errorf("%dx%d: expecting %d vertices, actual %d", w, h, w*h, len(mesh.Vertices))
			}
			if len(mesh.Faces) != (w-1)*(h-1) {
				t.Errorf("%dx%d: expecting %d faces, actual %d", w, h, (w-1)*(h-1), len(mesh.Faces))
			}

			for _, f := range mesh.Faces {
				seen := map[int]bool{}
				for _, idx := range f {
					if idx < 0 || idx >= len(mesh.Vertices) {
						t.Fatalf("%dx%d: index %d out of range", w, h, idx)
					}
					seen[idx] = true
				}
				if len(seen) != 4 {
					t.Errorf("%dx%d: duplicate index in face %v", w, h, f)
				}

				// unit quad in grid adjacency
				tl := f[0]
				if f[1] != tl+w || f[2] != tl+w+1 || f[3] != tl+1 || tl%w == w-1 {
					t.Errorf("%dx%d: face %v is not a unit quad", w, h, f)
				}
			}
		}
	}
}

func TestBuildMeshCoordinates(t *testing.T) {
	ext := utils.Extents{Min: 200, Max: 1800}
	grid, _ := NewElevationGrid(4, 2, ext)
	grid.Set(0, 0, 200)
	grid.Set(3, 1, 1800)
	grid.Set(1, 0, 1000)
	for _, x := range []int{2, 3} {
		grid.Set(x, 0, 200)
	}
	for _, x := range []int{0, 1, 2} {
		grid.Set(x, 1, 200)
	}

	mesh, err := BuildMesh(grid, defaultMesh)
	if err != nil {
		t.Fatal(err)
	}

	xStep, yStep := 200.0/4, 200.0/2
	for yb := 0; yb < 2; yb++ {
		for xb := 0; xb < 4; xb++ {
			v := mesh.Vertices[yb*4+xb]
			if v[0] != -100+float64(xb)*xStep || v[2] != -100+float64(yb)*yStep {
				t.Errorf("vertex (%d,%d): unexpected planar position %v", xb, yb, v)
			}
		}
	}

	if z := mesh.Vertices[0][1]; z != 0 {
		t.Errorf("sample at min should have z 0, actual %v", z)
	}
	if z := mesh.Vertices[7][1]; z != 25 {
		t.Errorf("sample at max should have z 25, actual %v", z)
	}
	if z := mesh.Vertices[1][1]; math.Abs(z-12.5) > 1e-9 {
		t.Errorf("midpoint sample should have z 12.5, actual %v", z)
	}
}

func TestBuildMeshDegenerate(t *testing.T) {
	grid := filledGrid(t, 3, 3, utils.Extents{Min: 42, Max: 42})
	mesh, err := BuildMesh(grid, defaultMesh)
	if mesh != nil || !errors.Is(err, utils.ErrDegenerateRange) {
		t.Errorf("expecting ErrDegenerateRange, actual %v", err)
	}
}

func TestBuildMeshOutOfRangeSamples(t *testing.T) {
	grid := filledGrid(t, 3, 3, utils.Extents{Min: 10, Max: 90})
	grid.Set(1, 1, -9999)
	grid.Set(2, 0, float32(math.NaN()))
	grid.Set(0, 2, 5000)

	mesh, err := BuildMesh(grid, defaultMesh)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range mesh.Vertices {
		if v[1] < 0 || v[1] > defaultMesh.Scale {
			t.Errorf("vertex %d: z %v outside [0, %v]", i, v[1], defaultMesh.Scale)
		}
	}
	if z := mesh.Vertices[4][1]; z != 0 {
		t.Errorf("nodata sample should sit at z 0, actual %v", z)
	}
	if z := mesh.Vertices[2][1]; z != 0 {
		t.Errorf("NaN sample should sit at z 0, actual %v", z)
	}
	if z := mesh.Vertices[6][1]; z != defaultMesh.Scale {
		t.Errorf("sample above max should sit at z %v, actual %v", defaultMesh.Scale, z)
	}
}

func TestBuildMeshASCIIGridNoData(t *testing.T) {
	asc := "ncols 3\nnrows 3\ncellsize 1\nNODATA_value -9999\n10 20 30\n40 -9999 60\n70 80 90\n"
	raster, err := utils.ReadASCIIGrid("dem.asc", strings.NewReader(asc))
	if err != nil {
		t.Fatal(err)
	}
	grid, err := NewDecimator(context.Background(), 1, 1, false).Run(raster)
	if err != nil {
		t.Fatal(err)
	}

	mesh, err := BuildMesh(grid, defaultMesh)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range mesh.Vertices {
		if v[1] < 0 || v[1] > defaultMesh.Scale {
			t.Errorf("vertex %d: z %v outside [0, %v]", i, v[1], defaultMesh.Scale)
		}
	}
}
