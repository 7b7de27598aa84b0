package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/nci/terrain/metrics"
	"github.com/nci/terrain/processor"
	"github.com/nci/terrain/utils"
	"github.com/nci/terrain/worker"
)

func main() {
	confFile := flag.String("conf", "", "Configuration file (.yaml, .toml or .json)")
	tileSize := flag.Int("size", 0, "Tile width and height, overrides the configuration")
	conc := flag.Int("n", 0, "Concurrency level, overrides the configuration")
	provider := flag.String("provider", "", "Raster provider: gdal, ascii or remote")
	indexDSN := flag.String("index", "", "Postgres connection string for the tile index")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [options] <outputDirectory> <inputRasterPath>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	outDir, input := flag.Arg(0), flag.Arg(1)

	cfg, err := utils.LoadConfig(*confFile)
	if err != nil {
		log.Fatal(err)
	}
	if *tileSize > 0 {
		cfg.Tiler.TileWidth, cfg.Tiler.TileHeight = *tileSize, *tileSize
	}
	if *conc > 0 {
		cfg.Tiler.Concurrency = *conc
	}
	if len(*provider) > 0 {
		cfg.Raster.Provider = *provider
	}
	if len(*indexDSN) > 0 {
		cfg.Tiler.IndexDSN = *indexDSN
	}
	cfg.Verbose = cfg.Verbose || *debug
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := metrics.NewLogger(cfg.Metrics, cfg.Verbose)
	if err != nil {
		log.Printf("metrics disabled: %v", err)
	}
	m := metrics.NewMetricsCollector("pngtiler", logger)

	report, err := tile(cfg, outDir, input, m)
	m.Finish(err)
	if logger != nil {
		logger.Close()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", utils.InRed("Failed"), err)
		os.Exit(1)
	}

	for _, res := range report.Failed {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", utils.InRed("Skipped"), res.Window.Name(), res.Err)
	}
	fmt.Printf("%s %d tiles in %s (%v)\n", utils.InGreen("Wrote"), len(report.Written), outDir, m.Info.Duration)
}

func tile(cfg *utils.Config, outDir, input string, m *metrics.MetricsCollector) (*processor.TileReport, error) {
	opener, closer, err := worker.NewOpener(cfg.Raster)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}

	raster, err := opener.Open(input)
	if err != nil {
		return nil, err
	}
	defer raster.Close()

	width, height := raster.Dimensions()
	m.Info.Raster = metrics.RasterInfo{Path: input, Provider: cfg.Raster.Provider, Width: width, Height: height}
	if ext, err := raster.ElevationExtents(); err == nil {
		m.Info.Raster.Min, m.Info.Raster.Max = ext.Min, ext.Max
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, utils.NewRasterError(utils.ErrEncode, outDir, "mkdir", err)
	}

	ctx := context.Background()
	start := time.Now()
	report, err := processor.InitTilePipeline(ctx, cfg.Tiler, outDir, cfg.Verbose).Process(raster)
	if err != nil {
		return nil, err
	}
	m.Info.Tiles = &metrics.TileInfo{Duration: time.Since(start), Written: len(report.Written), Failed: len(report.Failed)}

	if len(cfg.Tiler.IndexDSN) > 0 {
		index, db, err := processor.OpenTileIndex(cfg.Tiler.IndexDSN, cfg.Verbose)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		source := input
		if abs, err := filepath.Abs(input); err == nil && cfg.Raster.Provider != "remote" {
			source = abs
		}
		if err := index.Init(ctx); err != nil {
			return nil, fmt.Errorf("tile index: %v", err)
		}
		if err := index.Record(ctx, source, raster, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}
