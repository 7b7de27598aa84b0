package utils

import (
	"errors"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGrid = `ncols 4
nrows 3
xllcorner 100.0
yllcorner -30.0
cellsize 0.5
NODATA_value -9999
1 2 3 4
5 -9999 7 8
9 10 11 12.5
`

func TestReadASCIIGrid(t *testing.T) {
	raster, err := ReadASCIIGrid("sample.asc", strings.NewReader(sampleGrid))
	require.NoError(t, err)

	w, h := raster.Dimensions()
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, h)

	ext, err := raster.ElevationExtents()
	require.NoError(t, err)
	assert.Equal(t, Extents{Min: 1, Max: 12.5}, ext)

	window, err := raster.ReadWindow(1, 1, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{-9999, 7, 8, 10, 11, 12.5}, window)

	geot, ok := raster.GeoTransform()
	require.True(t, ok)
	assert.Equal(t, [6]float64{100, 0.5, 0, -28.5, 0, -0.5}, geot)
	noData, ok := raster.NoDataValue()
	assert.True(t, ok)
	assert.Equal(t, -9999.0, noData)
}

func TestReadASCIIGridAllNoData(t *testing.T) {
	raster, err := ReadASCIIGrid("nodata.asc", strings.NewReader("ncols 2\nnrows 1\ncellsize 1\nnodata_value 0\n0 0\n"))
	require.NoError(t, err)

	_, err = raster.ElevationExtents()
	assert.True(t, errors.Is(err, ErrMissingStatistic))
}

func TestReadASCIIGridMalformed(t *testing.T) {
	cases := map[string]string{
		"short":    "ncols 2\nnrows 2\ncellsize 1\n1 2 3\n",
		"no size":  "nrows 2\ncellsize 1\n1 2\n",
		"bad key":  "ncols 1\nnrows 1\ncellsize 1\nbogus 3\n1\n",
		"bad data": "ncols 2\nnrows 1\ncellsize 1\n1 x\n",
		"empty":    "",
	}
	for name, content := range cases {
		_, err := ReadASCIIGrid(name, strings.NewReader(content))
		assert.True(t, errors.Is(err, ErrRasterOpen), "%s: %v", name, err)
	}
}

func TestASCIIGridOpener(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.asc")
	require.NoError(t, ioutil.WriteFile(path, []byte(sampleGrid), 0644))

	raster, err := ASCIIGridOpener{}.Open(path)
	require.NoError(t, err)
	defer raster.Close()
	assert.Equal(t, path, raster.Path())

	_, err = ASCIIGridOpener{}.Open(filepath.Join(dir, "missing.asc"))
	assert.True(t, errors.Is(err, ErrRasterOpen))
}

func TestMemRasterReadOutside(t *testing.T) {
	raster, err := NewMemRaster("mem", 2, 2, []float32{1, 2, 3, 4}, nil)
	require.NoError(t, err)

	for _, win := range [][4]int{{0, 0, 3, 1}, {1, 1, 1, 2}, {-1, 0, 1, 1}, {0, 0, 0, 1}} {
		_, err := raster.ReadWindow(win[0], win[1], win[2], win[3])
		assert.True(t, errors.Is(err, ErrRasterRead), "window %v", win)
	}

	require.NoError(t, raster.Close())
	_, err = raster.ReadWindow(0, 0, 1, 1)
	assert.True(t, errors.Is(err, ErrRasterRead))
}
