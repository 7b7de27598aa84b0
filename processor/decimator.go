package processor

import (
	"context"
	"fmt"
	"log"

	"github.com/nci/terrain/utils"
	"golang.org/x/sync/errgroup"
)

// Decimator samples every Stride-th scanline and every Stride-th sample
// of a raster into an ElevationGrid.
type Decimator struct {
	Context     context.Context
	Stride      int
	Concurrency int
	Verbose     bool

	// Cache is optional.
	Cache *GridCache
}

func NewDecimator(ctx context.Context, stride int, concurrency int, verbose bool) *Decimator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Decimator{
		Context:     ctx,
		Stride:      stride,
		Concurrency: concurrency,
		Verbose:     verbose,
	}
}

// GridSize returns floor(width/stride)+1 by floor(height/stride)+1.
func GridSize(width, height, stride int) (int, int) {
	return width/stride + 1, height/stride + 1
}

// samplePos maps grid index i to a raster coordinate. When the raster
// dimension is a multiple of the stride the last grid index lands one
// stride past the edge and is clamped to the last valid pixel.
func samplePos(i, stride, size int) int {
	pos := i * stride
	if pos > size-1 {
		pos = size - 1
	}
	return pos
}

// Run fails without returning a partial grid if any scanline cannot be
// read or the raster does not know its elevation extents.
func (d *Decimator) Run(raster utils.RasterHandle) (*ElevationGrid, error) {
	if d.Stride < 1 {
		return nil, fmt.Errorf("decimate %s: invalid stride %d", raster.Path(), d.Stride)
	}

	if d.Cache != nil {
		if grid, ok := d.Cache.Get(raster.Path(), d.Stride); ok {
			return grid, nil
		}
	}

	ext, err := raster.ElevationExtents()
	if err != nil {
		return nil, err
	}

	rWidth, rHeight := raster.Dimensions()
	gWidth, gHeight := GridSize(rWidth, rHeight, d.Stride)
	grid, err := NewElevationGrid(gWidth, gHeight, ext)
	if err != nil {
		return nil, utils.NewRasterError(utils.ErrRasterRead, raster.Path(), "decimate", err)
	}

	if d.Verbose {
		log.Printf("decimate %s: %dx%d stride %d -> %dx%d", raster.Path(), rWidth, rHeight, d.Stride, gWidth, gHeight)
	}

	ctx := d.Context
	if ctx == nil {
		ctx = context.Background()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Concurrency)

	for yb := 0; yb < gHeight; yb++ {
		yb := yb
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			scanline, err := raster.ReadWindow(0, samplePos(yb, d.Stride, rHeight), rWidth, 1)
			if err != nil {
				return err
			}

			row := grid.Row(yb)
			for xb := range row {
				row[xb] = scanline[samplePos(xb, d.Stride, rWidth)]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if d.Cache != nil {
		d.Cache.Put(raster.Path(), d.Stride, grid)
	}
	return grid, nil
}
