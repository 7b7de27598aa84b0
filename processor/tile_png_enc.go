package processor

import (
	"context"
	"log"
	"path/filepath"

	"github.com/nci/terrain/utils"
)

// TilePNGEncoder writes each tile as an 8-bit grayscale PNG named after
// its block position. A tile that fails to encode is reported and
// skipped; the remaining tiles are still written.
type TilePNGEncoder struct {
	Context     context.Context
	In          chan *TileByteRaster
	Out         chan TileResult
	Writer      utils.ImageWriter
	OutputDir   string
	Concurrency int
	Verbose     bool
}

func NewTilePNGEncoder(ctx context.Context, writer utils.ImageWriter, outputDir string, concurrency int, verbose bool) *TilePNGEncoder {
	return &TilePNGEncoder{
		Context:     ctx,
		In:          make(chan *TileByteRaster, 100),
		Out:         make(chan TileResult, 100),
		Writer:      writer,
		OutputDir:   outputDir,
		Concurrency: concurrency,
		Verbose:     verbose,
	}
}

func (enc *TilePNGEncoder) Run() {
	defer close(enc.Out)

	cLimiter := NewConcLimiter(enc.Concurrency)
	for t := range enc.In {
		if enc.Context.Err() != nil {
			continue
		}

		t := t
		cLimiter.Go(func() {
			res := TileResult{
				Window:       t.Window,
				Path:         filepath.Join(enc.OutputDir, t.Window.Name()),
				MinElevation: t.MinElevation,
				MaxElevation: t.MaxElevation,
			}

			r := t.Raster
			res.Err = enc.Writer.WriteGrayscaleImage(res.Path, r.Width, r.Height, 8, r.Data)
			if res.Err != nil {
				log.Printf("tile encoder: skipping %s: %v", t.Window.Name(), res.Err)
			} else if enc.Verbose {
				log.Printf("tile encoder: wrote %s", res.Path)
			}
			enc.Out <- res
		})
	}
	cLimiter.Wait()
}
