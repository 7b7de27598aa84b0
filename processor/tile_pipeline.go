package processor

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/nci/terrain/utils"
)

// TilePipeline splits a raster into fixed size blocks and writes each
// block as a grayscale PNG scaled by the elevation extents of the whole
// raster:
//
//	splitter -> reader -> scaler -> encoder
type TilePipeline struct {
	Context     context.Context
	Config      utils.TilerConfig
	OutputDir   string
	Writer      utils.ImageWriter
	Concurrency int
	Verbose     bool
}

func InitTilePipeline(ctx context.Context, config utils.TilerConfig, outputDir string, verbose bool) *TilePipeline {
	return &TilePipeline{
		Context:     ctx,
		Config:      config,
		OutputDir:   outputDir,
		Writer:      utils.PNGWriter{},
		Concurrency: config.Concurrency,
		Verbose:     verbose,
	}
}

// Process returns the tiles written and the tiles that failed to
// encode. Opening statistics and read failures abort the whole run and
// are returned as the error.
func (tp *TilePipeline) Process(raster utils.RasterHandle) (*TileReport, error) {
	ext, err := raster.ElevationExtents()
	if err != nil {
		return nil, err
	}
	params, err := utils.NewScaleParams(ext, 255)
	if err != nil {
		return nil, utils.NewRasterError(utils.ErrDegenerateRange, raster.Path(), "tile", fmt.Errorf("min=%v max=%v", ext.Min, ext.Max))
	}

	width, height := raster.Dimensions()
	windows, err := SplitTiles(width, height, tp.Config.TileWidth, tp.Config.TileHeight)
	if err != nil {
		return nil, utils.NewRasterError(utils.ErrRasterRead, raster.Path(), "tile", err)
	}

	start := time.Now()
	ctx, cancel := context.WithCancel(tp.Context)
	defer cancel()

	errChan := make(chan error, 1)
	s := NewTileSplitter(ctx, windows)
	r := NewTileReader(ctx, cancel, raster, tp.Concurrency, errChan, tp.Verbose)
	scl := NewTileScaler(ctx, params)
	enc := NewTilePNGEncoder(ctx, tp.Writer, tp.OutputDir, tp.Concurrency, tp.Verbose)

	r.In = s.Out
	scl.In = r.Out
	enc.In = scl.Out

	go s.Run()
	go r.Run()
	go scl.Run()
	go enc.Run()

	report := &TileReport{}
	for res := range enc.Out {
		if res.Err != nil {
			report.Failed = append(report.Failed, res)
		} else {
			report.Written = append(report.Written, res)
		}
	}
	sortTileResults(report.Written)
	sortTileResults(report.Failed)

	select {
	case err := <-errChan:
		return report, err
	default:
	}
	if err := tp.Context.Err(); err != nil {
		return report, err
	}

	if tp.Verbose {
		log.Printf("tile pipeline %s: %d tiles written, %d failed in %v", raster.Path(), len(report.Written), len(report.Failed), time.Since(start))
	}
	return report, nil
}

func sortTileResults(res []TileResult) {
	sort.Slice(res, func(i, j int) bool {
		if res[i].Window.YBlock != res[j].Window.YBlock {
			return res[i].Window.YBlock < res[j].Window.YBlock
		}
		return res[i].Window.XBlock < res[j].Window.XBlock
	})
}
