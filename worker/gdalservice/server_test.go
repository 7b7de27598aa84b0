package gdalservice

import (
	"context"
	"errors"
	"io/ioutil"
	"net"
	"path/filepath"
	"testing"

	"github.com/nci/terrain/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const sampleGrid = `ncols 4
nrows 3
xllcorner 100.0
yllcorner -30.0
cellsize 0.5
NODATA_value -9999
1 2 3 4
5 6 7 8
9 10 11 12.5
`

const noDataGrid = "ncols 2\nnrows 1\ncellsize 1\nnodata_value 0\n0 0\n"

func startServer(t *testing.T) (*RemoteOpener, string) {
	root := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(root, "dem.asc"), []byte(sampleGrid), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(root, "nodata.asc"), []byte(noDataGrid), 0644))

	lis := bufconn.Listen(1 << 20)
	srv := NewRasterServer(root, utils.ASCIIGridOpener{}, 2, false)
	s := grpc.NewServer()
	RegisterRasterServiceServer(s, srv)
	go s.Serve(lis)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithInsecure())
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		s.Stop()
		srv.Close()
	})
	return &RemoteOpener{Conn: conn}, root
}

func TestRemoteRaster(t *testing.T) {
	opener, _ := startServer(t)

	raster, err := opener.Open("dem.asc")
	require.NoError(t, err)
	defer raster.Close()

	w, h := raster.Dimensions()
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, h)

	ext, err := raster.ElevationExtents()
	require.NoError(t, err)
	assert.Equal(t, utils.Extents{Min: 1, Max: 12.5}, ext)

	window, err := raster.ReadWindow(1, 1, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{6, 7, 8, 10, 11, 12.5}, window)

	geo, ok := raster.(utils.GeoReferenced)
	require.True(t, ok)
	gt, ok := geo.GeoTransform()
	require.True(t, ok)
	assert.Equal(t, [6]float64{100, 0.5, 0, -28.5, 0, -0.5}, gt)

	_, err = raster.ReadWindow(3, 0, 2, 1)
	assert.True(t, errors.Is(err, utils.ErrRasterRead), "%v", err)
}

func TestRemoteRasterErrors(t *testing.T) {
	opener, _ := startServer(t)

	_, err := opener.Open("missing.asc")
	assert.True(t, errors.Is(err, utils.ErrRasterOpen), "%v", err)

	raster, err := opener.Open("nodata.asc")
	require.NoError(t, err)
	_, err = raster.ElevationExtents()
	assert.True(t, errors.Is(err, utils.ErrMissingStatistic), "%v", err)
}

func TestRasterServerStaysInRoot(t *testing.T) {
	srv := NewRasterServer("/srv/dem", utils.ASCIIGridOpener{}, 1, false)
	assert.Equal(t, "/srv/dem/etc/passwd", srv.resolve("../../etc/passwd"))
	assert.Equal(t, "/srv/dem/a/b.tif", srv.resolve("a/./b.tif"))
	assert.Equal(t, "/srv/dem/a/b.tif", srv.resolve("/a/b.tif"))
}
