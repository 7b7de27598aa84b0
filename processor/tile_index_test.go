package processor

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/nci/terrain/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	query string
	args  []interface{}
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (f *fakeExecer) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query, args})
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func TestTileGeoTransform(t *testing.T) {
	gt := [6]float64{140, 0.5, 0, -30, 0, -0.5}
	w := TileWindow{XBlock: 1, YBlock: 2, OffX: 512, OffY: 1024, Width: 512, Height: 512}
	assert.Equal(t, [6]float64{396, 0.5, 0, -542, 0, -0.5}, TileGeoTransform(gt, w))
}

func TestTileIndexRecord(t *testing.T) {
	raster := columnRaster(t, 10, 10)
	raster.Geot = &[6]float64{100, 1, 0, 50, 0, -1}

	report := &TileReport{
		Written: []TileResult{
			{Window: TileWindow{XBlock: 0, YBlock: 0, Width: 8, Height: 8}, Path: "out/tile0000x0000.png", MinElevation: 0, MaxElevation: 7},
			{Window: TileWindow{XBlock: 1, YBlock: 0, OffX: 8, Width: 2, Height: 8}, Path: "out/tile0001x0000.png", MinElevation: 8, MaxElevation: 9},
		},
		Failed: []TileResult{{Window: TileWindow{YBlock: 1}, Err: utils.ErrEncode}},
	}

	db := &fakeExecer{}
	ti := &TileIndex{DB: db}
	require.NoError(t, ti.Init(context.Background()))
	require.NoError(t, ti.Record(context.Background(), "dem.asc", raster, report))

	require.Len(t, db.calls, 3)
	assert.True(t, strings.Contains(db.calls[0].query, "create table if not exists heightmap_tiles"))

	args := db.calls[2].args
	assert.Equal(t, "dem.asc", args[0])
	assert.Equal(t, "out/tile0001x0000.png", args[1])
	assert.Equal(t, 8, args[4])
	assert.Equal(t, 9.0, args[9])
	gt, ok := args[10].(*pq.Float64Array)
	require.True(t, ok, "geotransform should be a postgres array, actual %T", args[10])
	assert.Equal(t, pq.Float64Array{108, 1, 0, 50, 0, -1}, *gt)
}

func TestTileIndexError(t *testing.T) {
	db := &fakeExecer{err: errors.New("relation does not exist")}
	report := &TileReport{Written: []TileResult{{Path: "a.png"}}}
	err := (&TileIndex{DB: db}).Record(context.Background(), "dem", columnRaster(t, 2, 2), report)
	assert.Error(t, err)
}
