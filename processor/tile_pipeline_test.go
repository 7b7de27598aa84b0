package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nci/terrain/utils"
)

// columnRaster holds the column index in every sample.
func columnRaster(t *testing.T, width, height int) *utils.MemRaster {
	data := make([]float32, width*height)
	for i := range data {
		data[i] = float32(i % width)
	}
	r, err := utils.NewMemRaster("columns", width, height, data, &utils.Extents{Min: 0, Max: float64(width - 1)})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

type flakyWriter struct {
	utils.PNGWriter
	mu    sync.Mutex
	fail  string
	calls int
}

func (w *flakyWriter) WriteGrayscaleImage(path string, width, height, bitDepth int, data []byte) error {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()
	if strings.HasSuffix(path, w.fail) {
		return utils.NewRasterError(utils.ErrEncode, path, "png", fmt.Errorf("disk full"))
	}
	return w.PNGWriter.WriteGrayscaleImage(path, width, height, bitDepth, data)
}

func testTiler(dir string) *TilePipeline {
	cfg := utils.TilerConfig{TileWidth: 512, TileHeight: 512, Concurrency: 3}
	return InitTilePipeline(context.Background(), cfg, dir, false)
}

func decodeTile(t *testing.T, path string) *image.Gray {
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("%s: expecting 8-bit grayscale, actual %T", path, img)
	}
	return gray
}

func TestTilePipelineExample(t *testing.T) {
	dir := t.TempDir()
	report, err := testTiler(dir).Process(columnRaster(t, 1000, 1000))
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Written) != 4 || len(report.Failed) != 0 {
		t.Fatalf("expecting 4 tiles written, actual %d written %d failed", len(report.Written), len(report.Failed))
	}

	sizes := map[string][2]int{
		"tile0000x0000.png": {512, 512},
		"tile0001x0000.png": {488, 512},
		"tile0000x0001.png": {512, 488},
		"tile0001x0001.png": {488, 488},
	}
	for i, name := range []string{"tile0000x0000.png", "tile0001x0000.png", "tile0000x0001.png", "tile0001x0001.png"} {
		if report.Written[i].Window.Name() != name {
			t.Errorf("report out of order at %d: %s", i, report.Written[i].Window.Name())
		}
		img := decodeTile(t, filepath.Join(dir, name))
		if b := img.Bounds(); b.Dx() != sizes[name][0] || b.Dy() != sizes[name][1] {
			t.Errorf("%s: unexpected size %v", name, b)
		}
	}

	// scaled by the whole raster, not per tile
	img := decodeTile(t, filepath.Join(dir, "tile0001x0000.png"))
	if v := img.GrayAt(0, 0).Y; v != 131 {
		t.Errorf("column 512 should scale to 131, actual %d", v)
	}
	if v := img.GrayAt(487, 10).Y; v != 255 {
		t.Errorf("last column should scale to 255, actual %d", v)
	}
	if v := decodeTile(t, filepath.Join(dir, "tile0000x0001.png")).GrayAt(0, 0).Y; v != 0 {
		t.Errorf("first column should scale to 0, actual %d", v)
	}

	if r := report.Written[1]; r.MinElevation != 512 || r.MaxElevation != 999 {
		t.Errorf("unexpected tile elevation range %v..%v", r.MinElevation, r.MaxElevation)
	}
}

func TestTilePipelineEncodeFailure(t *testing.T) {
	dir := t.TempDir()
	tp := testTiler(dir)
	writer := &flakyWriter{fail: "tile0001x0000.png"}
	tp.Writer = writer

	report, err := tp.Process(columnRaster(t, 1000, 1000))
	if err != nil {
		t.Fatalf("encode failures should not abort the run: %v", err)
	}
	if writer.calls != 4 {
		t.Errorf("every tile should be attempted, actual %d", writer.calls)
	}
	if len(report.Written) != 3 || len(report.Failed) != 1 {
		t.Fatalf("expecting 3 written 1 failed, actual %d and %d", len(report.Written), len(report.Failed))
	}
	if !errors.Is(report.Failed[0].Err, utils.ErrEncode) {
		t.Errorf("expecting ErrEncode, actual %v", report.Failed[0].Err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tile0001x0000.png")); !os.IsNotExist(err) {
		t.Error("failed tile should not exist")
	}
	if _, err := os.Stat(filepath.Join(dir, "tile0001x0001.png")); err != nil {
		t.Error(err)
	}
}

func TestTilePipelineReadError(t *testing.T) {
	raster := &failingRaster{RasterHandle: columnRaster(t, 1000, 1000), failRow: 600}
	_, err := testTiler(t.TempDir()).Process(raster)
	if !errors.Is(err, utils.ErrRasterRead) {
		t.Errorf("expecting ErrRasterRead, actual %v", err)
	}
}

func TestTilePipelineStatistics(t *testing.T) {
	noExt, _ := utils.NewMemRaster("noext", 4, 4, make([]float32, 16), nil)
	if _, err := testTiler(t.TempDir()).Process(noExt); !errors.Is(err, utils.ErrMissingStatistic) {
		t.Errorf("expecting ErrMissingStatistic, actual %v", err)
	}

	flat, _ := utils.NewMemRaster("flat", 4, 4, make([]float32, 16), &utils.Extents{Min: 3, Max: 3})
	dir := t.TempDir()
	if _, err := testTiler(dir).Process(flat); !errors.Is(err, utils.ErrDegenerateRange) {
		t.Errorf("expecting ErrDegenerateRange, actual %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("no tiles should be written, found %d", len(entries))
	}
}

func TestTilePipelineNoDataStatistics(t *testing.T) {
	grid := "ncols 4\nnrows 2\ncellsize 1\nNODATA_value -9999\n1 2 -9999 4\n5 6 7 8\n"
	raster, err := utils.ReadASCIIGrid("nodata.asc", strings.NewReader(grid))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	report, err := testTiler(dir).Process(raster)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Written) != 1 {
		t.Fatalf("expecting 1 tile written, actual %d", len(report.Written))
	}
	if r := report.Written[0]; r.MinElevation != 1 || r.MaxElevation != 8 {
		t.Errorf("nodata should not count towards the tile range, actual %v..%v", r.MinElevation, r.MaxElevation)
	}
	if v := decodeTile(t, filepath.Join(dir, "tile0000x0000.png")).GrayAt(2, 0).Y; v != 0 {
		t.Errorf("nodata sample should scale to 0, actual %d", v)
	}
}
