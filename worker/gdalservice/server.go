package gdalservice

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"sync"

	"github.com/golang/protobuf/ptypes/wrappers"
	"github.com/nci/terrain/utils"
	"golang.org/x/net/context"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// RasterServer serves rasters below Root. Opened rasters stay open
// until Close so repeated window reads do not reopen the dataset.
type RasterServer struct {
	Root    string
	Opener  utils.RasterOpener
	Verbose bool

	slots   chan struct{}
	mu      sync.Mutex
	handles map[string]utils.RasterHandle
}

// NewRasterServer serves at most poolSize requests concurrently.
func NewRasterServer(root string, opener utils.RasterOpener, poolSize int, verbose bool) *RasterServer {
	if poolSize < 1 {
		poolSize = 1
	}
	return &RasterServer{
		Root:    root,
		Opener:  opener,
		Verbose: verbose,
		slots:   make(chan struct{}, poolSize),
		handles: map[string]utils.RasterHandle{},
	}
}

// resolve keeps requested paths inside Root.
func (s *RasterServer) resolve(path string) string {
	return filepath.Join(s.Root, filepath.Clean("/"+path))
}

func (s *RasterServer) handle(path string) (utils.RasterHandle, error) {
	full := s.resolve(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[full]; ok {
		return h, nil
	}

	h, err := s.Opener.Open(full)
	if err != nil {
		return nil, err
	}
	s.handles[full] = h
	if s.Verbose {
		log.Printf("raster server: opened %s", full)
	}
	return h, nil
}

func (s *RasterServer) acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return status.Error(codes.Canceled, ctx.Err().Error())
	}
}

func (s *RasterServer) release() {
	<-s.slots
}

func (s *RasterServer) Info(ctx context.Context, in *wrappers.StringValue) (*structpb.Struct, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	h, err := s.handle(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	width, height := h.Dimensions()
	fields := map[string]interface{}{
		"width":       width,
		"height":      height,
		"has_extents": false,
	}

	ext, err := h.ElevationExtents()
	switch {
	case err == nil:
		fields["has_extents"] = true
		fields["min"] = ext.Min
		fields["max"] = ext.Max
	case !errors.Is(err, utils.ErrMissingStatistic):
		return nil, toStatus(err)
	}

	if geo, ok := h.(utils.GeoReferenced); ok {
		if gt, ok := geo.GeoTransform(); ok {
			list := make([]interface{}, len(gt))
			for i, v := range gt {
				list[i] = v
			}
			fields["geotransform"] = list
		}
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *RasterServer) ReadWindow(ctx context.Context, in *structpb.Struct) (*wrappers.BytesValue, error) {
	f := in.GetFields()
	path := f["path"].GetStringValue()
	x := int(f["x"].GetNumberValue())
	y := int(f["y"].GetNumberValue())
	w := int(f["width"].GetNumberValue())
	h := int(f["height"].GetNumberValue())
	if len(path) == 0 {
		return nil, status.Error(codes.InvalidArgument, "path is required")
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	raster, err := s.handle(path)
	if err != nil {
		return nil, toStatus(err)
	}

	data, err := raster.ReadWindow(x, y, w, h)
	if err != nil {
		return nil, toStatus(err)
	}

	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return &wrappers.BytesValue{Value: buf}, nil
}

func (s *RasterServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, h := range s.handles {
		if err := h.Close(); err != nil {
			log.Printf("raster server: closing %s: %v", path, err)
		}
	}
	s.handles = map[string]utils.RasterHandle{}
	return nil
}

func toStatus(err error) error {
	code := codes.Internal
	switch utils.ErrorKind(err) {
	case utils.ErrRasterOpen:
		code = codes.NotFound
	case utils.ErrMissingStatistic:
		code = codes.FailedPrecondition
	case utils.ErrRasterRead:
		code = codes.DataLoss
	}
	return status.Error(code, fmt.Sprintf("%v", err))
}
