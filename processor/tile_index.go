package processor

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/lib/pq"
	"github.com/nci/terrain/utils"
)

const createTileTable = `create table if not exists heightmap_tiles (
	source       text not null,
	path         text primary key,
	xblock       integer not null,
	yblock       integer not null,
	x_off        integer not null,
	y_off        integer not null,
	width        integer not null,
	height       integer not null,
	min_ele      double precision,
	max_ele      double precision,
	geotransform double precision[],
	created      timestamptz not null default now()
)`

const insertTile = `insert into heightmap_tiles
	(source, path, xblock, yblock, x_off, y_off, width, height, min_ele, max_ele, geotransform)
	values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	on conflict (path) do update set
		source = excluded.source,
		xblock = excluded.xblock,
		yblock = excluded.yblock,
		x_off = excluded.x_off,
		y_off = excluded.y_off,
		width = excluded.width,
		height = excluded.height,
		min_ele = excluded.min_ele,
		max_ele = excluded.max_ele,
		geotransform = excluded.geotransform,
		created = now()`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// TileIndex records written tiles in a Postgres table so they can be
// located by block position and elevation range.
type TileIndex struct {
	DB      execer
	Verbose bool
}

func OpenTileIndex(dsn string, verbose bool) (*TileIndex, *sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, err
	}
	return &TileIndex{DB: db, Verbose: verbose}, db, nil
}

func (ti *TileIndex) Init(ctx context.Context) error {
	_, err := ti.DB.ExecContext(ctx, createTileTable)
	return err
}

// Record upserts every written tile of the report. Failed tiles are not
// indexed.
func (ti *TileIndex) Record(ctx context.Context, source string, raster utils.RasterHandle, report *TileReport) error {
	var geot *[6]float64
	if geo, ok := raster.(utils.GeoReferenced); ok {
		if gt, ok := geo.GeoTransform(); ok {
			geot = &gt
		}
	}

	for _, res := range report.Written {
		var gtArg interface{}
		if geot != nil {
			gt := TileGeoTransform(*geot, res.Window)
			gtArg = pq.Array(gt[:])
		}

		w := res.Window
		_, err := ti.DB.ExecContext(ctx, insertTile, source, res.Path, w.XBlock, w.YBlock, w.OffX, w.OffY,
			w.Width, w.Height, res.MinElevation, res.MaxElevation, gtArg)
		if err != nil {
			return fmt.Errorf("tile index: %s: %v", res.Path, err)
		}
	}

	if ti.Verbose {
		log.Printf("tile index: recorded %d tiles of %s", len(report.Written), source)
	}
	return nil
}

// TileGeoTransform shifts the raster origin to the top-left pixel of
// the tile.
func TileGeoTransform(gt [6]float64, w TileWindow) [6]float64 {
	x, y := float64(w.OffX), float64(w.OffY)
	return [6]float64{
		gt[0] + x*gt[1] + y*gt[2], gt[1], gt[2],
		gt[3] + x*gt[4] + y*gt[5], gt[4], gt[5],
	}
}
