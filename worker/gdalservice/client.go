package gdalservice

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/golang/protobuf/ptypes/wrappers"
	"github.com/nci/terrain/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultCallTimeout = 5 * time.Minute

// RemoteOpener opens rasters served by a raster server.
type RemoteOpener struct {
	Conn    *grpc.ClientConn
	Timeout time.Duration
}

func NewRemoteOpener(address string, maxRecvMsgSize int) (*RemoteOpener, error) {
	if maxRecvMsgSize <= 0 {
		maxRecvMsgSize = utils.DefaultRecvMsgSize
	}
	opts := []grpc.DialOption{
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)),
	}
	conn, err := grpc.Dial(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("dialing raster server %s: %v", address, err)
	}
	return &RemoteOpener{Conn: conn, Timeout: defaultCallTimeout}, nil
}

func (o *RemoteOpener) call(method string, in, out interface{}) error {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return o.Conn.Invoke(ctx, method, in, out)
}

func (o *RemoteOpener) Open(path string) (utils.RasterHandle, error) {
	info := new(structpb.Struct)
	if err := o.call(infoMethod, &wrappers.StringValue{Value: path}, info); err != nil {
		return nil, utils.NewRasterError(utils.ErrRasterOpen, path, "open", statusError(err))
	}

	f := info.GetFields()
	r := &RemoteRaster{
		opener: o,
		path:   path,
		width:  int(f["width"].GetNumberValue()),
		height: int(f["height"].GetNumberValue()),
	}
	if f["has_extents"].GetBoolValue() {
		r.extents = &utils.Extents{Min: f["min"].GetNumberValue(), Max: f["max"].GetNumberValue()}
	}
	if gt := f["geotransform"].GetListValue().GetValues(); len(gt) == 6 {
		r.geot = new([6]float64)
		for i, v := range gt {
			r.geot[i] = v.GetNumberValue()
		}
	}
	return r, nil
}

func (o *RemoteOpener) Close() error {
	return o.Conn.Close()
}

// RemoteRaster reads windows over gRPC. It is safe for concurrent use.
type RemoteRaster struct {
	opener        *RemoteOpener
	path          string
	width, height int
	extents       *utils.Extents
	geot          *[6]float64
}

func (r *RemoteRaster) Path() string {
	return r.path
}

func (r *RemoteRaster) Dimensions() (int, int) {
	return r.width, r.height
}

func (r *RemoteRaster) ElevationExtents() (utils.Extents, error) {
	if r.extents == nil {
		return utils.Extents{}, utils.NewRasterError(utils.ErrMissingStatistic, r.path, "extents", nil)
	}
	return *r.extents, nil
}

func (r *RemoteRaster) ReadWindow(x, y, w, h int) ([]float32, error) {
	if err := utils.CheckWindow(r.width, r.height, x, y, w, h); err != nil {
		return nil, utils.NewRasterError(utils.ErrRasterRead, r.path, "read", err)
	}

	req, err := structpb.NewStruct(map[string]interface{}{
		"path":   r.path,
		"x":      x,
		"y":      y,
		"width":  w,
		"height": h,
	})
	if err != nil {
		return nil, utils.NewRasterError(utils.ErrRasterRead, r.path, "read", err)
	}

	out := new(wrappers.BytesValue)
	if err := r.opener.call(readWindowMethod, req, out); err != nil {
		return nil, utils.NewRasterError(utils.ErrRasterRead, r.path, "read", statusError(err))
	}
	if len(out.Value) != 4*w*h {
		return nil, utils.NewRasterError(utils.ErrRasterRead, r.path, "read", fmt.Errorf("expected %d bytes, got %d", 4*w*h, len(out.Value)))
	}

	data := make([]float32, w*h)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(out.Value[4*i:]))
	}
	return data, nil
}

func (r *RemoteRaster) GeoTransform() ([6]float64, bool) {
	if r.geot == nil {
		return [6]float64{}, false
	}
	return *r.geot, true
}

// Close does nothing; the server owns the dataset.
func (r *RemoteRaster) Close() error {
	return nil
}

func statusError(err error) error {
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return fmt.Errorf("%s: %s", s.Code(), s.Message())
	}
	return err
}
