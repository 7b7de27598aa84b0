package processor

import (
	"context"
	"log"

	"github.com/nci/terrain/utils"
)

// TileReader reads the samples of each tile window. A read failure
// cancels the pipeline.
type TileReader struct {
	Context     context.Context
	Cancel      context.CancelFunc
	In          chan TileWindow
	Out         chan *TileRaster
	Error       chan error
	Raster      utils.RasterHandle
	Concurrency int
	Verbose     bool
}

func NewTileReader(ctx context.Context, cancel context.CancelFunc, raster utils.RasterHandle, concurrency int, errChan chan error, verbose bool) *TileReader {
	return &TileReader{
		Context:     ctx,
		Cancel:      cancel,
		In:          make(chan TileWindow, 100),
		Out:         make(chan *TileRaster, 100),
		Error:       errChan,
		Raster:      raster,
		Concurrency: concurrency,
		Verbose:     verbose,
	}
}

func (r *TileReader) Run() {
	defer close(r.Out)

	noData := utils.NoDataOf(r.Raster)
	cLimiter := NewConcLimiter(r.Concurrency)
	for win := range r.In {
		if r.Context.Err() != nil {
			continue
		}

		win := win
		cLimiter.Go(func() {
			if r.Context.Err() != nil {
				return
			}

			data, err := r.Raster.ReadWindow(win.OffX, win.OffY, win.Width, win.Height)
			if err != nil {
				r.fail(err)
				return
			}
			if r.Verbose {
				log.Printf("tile reader: %s read at (%d,%d)", win.Name(), win.OffX, win.OffY)
			}

			select {
			case r.Out <- &TileRaster{Window: win, Raster: &utils.Float32Raster{
				Data:   data,
				Width:  win.Width,
				Height: win.Height,
				OffX:   win.OffX,
				OffY:   win.OffY,
				NoData: noData,
			}}:
			case <-r.Context.Done():
			}
		})
	}
	cLimiter.Wait()
}

// fail records the first error only.
func (r *TileReader) fail(err error) {
	select {
	case r.Error <- err:
	default:
	}
	r.Cancel()
}
