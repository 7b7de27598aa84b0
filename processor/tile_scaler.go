package processor

import (
	"context"
	"math"

	"github.com/nci/terrain/utils"
)

// TileScaler converts float samples to 8-bit using the extents of the
// whole raster so neighbouring tiles share one scale.
type TileScaler struct {
	Context context.Context
	In      chan *TileRaster
	Out     chan *TileByteRaster
	Params  utils.ScaleParams
}

func NewTileScaler(ctx context.Context, params utils.ScaleParams) *TileScaler {
	return &TileScaler{
		Context: ctx,
		In:      make(chan *TileRaster, 100),
		Out:     make(chan *TileByteRaster, 100),
		Params:  params,
	}
}

func (scl *TileScaler) Run() {
	defer close(scl.Out)

	for t := range scl.In {
		if scl.Context.Err() != nil {
			continue
		}

		// NoData is NaN when the raster declares none.
		noData := float32(t.Raster.NoData)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range t.Raster.Data {
			if f := float64(v); !math.IsNaN(f) && v != noData {
				lo = math.Min(lo, f)
				hi = math.Max(hi, f)
			}
		}
		if lo > hi {
			lo, hi = math.NaN(), math.NaN()
		}

		out := &TileByteRaster{
			Window:       t.Window,
			Raster:       utils.Scale(t.Raster, scl.Params),
			MinElevation: lo,
			MaxElevation: hi,
		}
		select {
		case scl.Out <- out:
		case <-scl.Context.Done():
		}
	}
}
