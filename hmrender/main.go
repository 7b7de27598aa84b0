package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nci/terrain/metrics"
	"github.com/nci/terrain/processor"
	"github.com/nci/terrain/utils"
	"github.com/nci/terrain/worker"
)

func main() {
	confFile := flag.String("conf", "", "Configuration file (.yaml, .toml or .json)")
	stride := flag.Int("stride", 0, "Decimation stride, overrides the configuration")
	frames := flag.Int("frames", 0, "Number of frames, overrides the configuration")
	outDir := flag.String("out", "", "Frame output directory, overrides the configuration")
	emitter := flag.String("emitter", "", "Scene emitter: rib or preview")
	renderer := flag.String("renderer", "", "RenderMan renderer run on the scene file")
	provider := flag.String("provider", "", "Raster provider: gdal, ascii or remote")
	memcache := flag.String("memcache", "", "memcache uri host:port for decimated grids")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [options] <outputPrefix> <inputRasterPath>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	prefix, input := flag.Arg(0), flag.Arg(1)

	cfg, err := utils.LoadConfig(*confFile)
	if err != nil {
		log.Fatal(err)
	}
	if *stride > 0 {
		cfg.Decimate.Stride = *stride
	}
	if *frames > 0 {
		cfg.Animation.Frames = *frames
	}
	if len(*outDir) > 0 {
		cfg.Animation.OutputDir = *outDir
	}
	if len(*emitter) > 0 {
		cfg.Animation.Emitter = *emitter
	}
	if len(*renderer) > 0 {
		cfg.Animation.Renderer = *renderer
	}
	if len(*provider) > 0 {
		cfg.Raster.Provider = *provider
	}
	if len(*memcache) > 0 {
		cfg.Cache.Memcache = *memcache
	}
	cfg.Verbose = cfg.Verbose || *debug
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := metrics.NewLogger(cfg.Metrics, cfg.Verbose)
	if err != nil {
		log.Printf("metrics disabled: %v", err)
	}
	m := metrics.NewMetricsCollector("hmrender", logger)

	err = render(cfg, prefix, input, m)
	m.Finish(err)
	if logger != nil {
		logger.Close()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", utils.InRed("Failed"), err)
		os.Exit(1)
	}
	fmt.Printf("%s %d frames in %s (%v)\n", utils.InGreen("Rendered"), cfg.Animation.Frames, cfg.Animation.OutputDir, m.Info.Duration)
}

func render(cfg *utils.Config, prefix, input string, m *metrics.MetricsCollector) error {
	opener, closer, err := worker.NewOpener(cfg.Raster)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	raster, err := opener.Open(input)
	if err != nil {
		return err
	}
	defer raster.Close()

	width, height := raster.Dimensions()
	m.Info.Raster = metrics.RasterInfo{Path: input, Provider: cfg.Raster.Provider, Width: width, Height: height}

	start := time.Now()
	d := processor.NewDecimator(context.Background(), cfg.Decimate.Stride, cfg.Decimate.Concurrency, cfg.Verbose)
	if len(cfg.Cache.Memcache) > 0 {
		d.Cache = processor.NewGridCache(cfg.Cache.Memcache, cfg.Cache.Expiration, cfg.Verbose)
	}
	grid, err := d.Run(cacheKeyed(raster, cfg.Raster.Provider))
	if err != nil {
		return err
	}
	m.Info.Raster.Min, m.Info.Raster.Max = grid.Extents.Min, grid.Extents.Max
	m.Info.Decimate = &metrics.DecimateInfo{Duration: time.Since(start), Stride: cfg.Decimate.Stride, GridWidth: grid.Width, GridHeight: grid.Height}

	start = time.Now()
	mesh, err := processor.BuildMesh(grid, cfg.Mesh)
	if errors.Is(err, utils.ErrDegenerateRange) {
		return utils.NewRasterError(utils.ErrDegenerateRange, input, "mesh", fmt.Errorf("min=%v max=%v", grid.Extents.Min, grid.Extents.Max))
	} else if err != nil {
		return err
	}
	m.Info.Mesh = &metrics.MeshInfo{Duration: time.Since(start), Vertices: len(mesh.Vertices), Faces: len(mesh.Faces)}

	if err := os.MkdirAll(cfg.Animation.OutputDir, 0755); err != nil {
		return utils.NewRasterError(utils.ErrEncode, cfg.Animation.OutputDir, "mkdir", err)
	}

	driver, err := processor.NewAnimationDriver(cfg.Animation, prefix, cfg.Verbose)
	if err != nil {
		return err
	}

	var emitter processor.SceneEmitter
	switch strings.ToLower(cfg.Animation.Emitter) {
	case "", "rib":
		ribPath := filepath.Join(cfg.Animation.OutputDir, prefix+".rib")
		emitter = processor.NewRIBEmitter(ribPath, cfg.Animation.Renderer, cfg.Verbose)
	case "preview":
		emitter = processor.NewPreviewEmitter(cfg.Verbose)
	default:
		return fmt.Errorf("unknown scene emitter: %s", cfg.Animation.Emitter)
	}

	start = time.Now()
	if err := driver.Run(mesh, emitter); err != nil {
		return err
	}
	m.Info.Animation = &metrics.AnimationInfo{Duration: time.Since(start), Emitter: cfg.Animation.Emitter, Frames: cfg.Animation.Frames}
	return nil
}

// absPathRaster reports an absolute path so cached grids are shared
// between working directories.
type absPathRaster struct {
	utils.RasterHandle
	path string
}

func (r absPathRaster) Path() string {
	return r.path
}

func cacheKeyed(raster utils.RasterHandle, provider string) utils.RasterHandle {
	if provider == "remote" {
		return raster
	}
	abs, err := filepath.Abs(raster.Path())
	if err != nil {
		return raster
	}
	return absPathRaster{RasterHandle: raster, path: abs}
}
