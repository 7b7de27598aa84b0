package processor

import (
	"fmt"

	"github.com/nci/terrain/utils"
)

// TileWindow is one block of the raster partition. Width and Height are
// the clipped block size and only differ from the nominal tile size on
// the last column and row of blocks.
type TileWindow struct {
	XBlock, YBlock int
	OffX, OffY     int
	Width, Height  int
}

// Name is the deterministic output file name of the tile.
func (w TileWindow) Name() string {
	return fmt.Sprintf("tile%04dx%04d.png", w.XBlock, w.YBlock)
}

type TileRaster struct {
	Window TileWindow
	Raster *utils.Float32Raster
}

type TileByteRaster struct {
	Window TileWindow
	Raster *utils.ByteRaster

	// Elevation range of the valid samples before scaling.
	MinElevation, MaxElevation float64
}

// TileResult reports the outcome of encoding a single tile. Err is set
// when the tile was skipped.
type TileResult struct {
	Window                     TileWindow
	Path                       string
	MinElevation, MaxElevation float64
	Err                        error
}

type TileReport struct {
	Written []TileResult
	Failed  []TileResult
}
