package utils

import (
	"fmt"
	"math"
	"sync"
)

// Extents holds the known minimum and maximum elevation of a whole
// raster, in the raster's native units.
type Extents struct {
	Min float64
	Max float64
}

// Range returns Max-Min, failing when the range cannot be used as a
// normalisation divisor.
func (e Extents) Range() (float64, error) {
	r := e.Max - e.Min
	if !(r > 0) {
		return 0, NewRasterError(ErrDegenerateRange, "", "", fmt.Errorf("min=%v max=%v", e.Min, e.Max))
	}
	return r, nil
}

// RasterHandle is an open single band elevation raster. Implementations
// must allow concurrent ReadWindow calls.
type RasterHandle interface {
	// Path identifies the raster in error messages.
	Path() string
	Dimensions() (width, height int)
	// ElevationExtents fails with ErrMissingStatistic when the source
	// does not know its minimum or maximum.
	ElevationExtents() (Extents, error)
	// ReadWindow returns w*h samples in row-major order.
	ReadWindow(x, y, w, h int) ([]float32, error)
	Close() error
}

// RasterOpener opens raster handles. The caller closes them.
type RasterOpener interface {
	Open(path string) (RasterHandle, error)
}

// GeoReferenced is implemented by handles that know the affine
// transform from pixel to georeferenced coordinates, in GDAL order.
type GeoReferenced interface {
	GeoTransform() ([6]float64, bool)
}

// NoDataSource is implemented by handles whose samples may carry a
// nodata marker. ok is false when the source declares none.
type NoDataSource interface {
	NoDataValue() (value float64, ok bool)
}

// NoDataOf returns the nodata marker of r, or NaN when it has none.
func NoDataOf(r RasterHandle) float64 {
	if src, ok := r.(NoDataSource); ok {
		if v, ok := src.NoDataValue(); ok {
			return v
		}
	}
	return math.NaN()
}

type Float32Raster struct {
	Data          []float32
	Height, Width int
	OffX, OffY    int
	NoData        float64
}

func (r *Float32Raster) GetNoData() float64 {
	return r.NoData
}

type ByteRaster struct {
	Data          []uint8
	Height, Width int
	OffX, OffY    int
	NoData        float64
}

func (r *ByteRaster) GetNoData() float64 {
	return r.NoData
}

// MemRaster is a RasterHandle over samples held in memory.
type MemRaster struct {
	Name          string
	Width, Height int
	Data          []float32
	Extents       *Extents
	Geot          *[6]float64
	NoData        float64
	HasNoData     bool

	mu     sync.RWMutex
	closed bool
}

func NewMemRaster(name string, width, height int, data []float32, ext *Extents) (*MemRaster, error) {
	if width <= 0 || height <= 0 {
		return nil, NewRasterError(ErrRasterOpen, name, "", fmt.Errorf("invalid dimensions %dx%d", width, height))
	}
	if len(data) != width*height {
		return nil, NewRasterError(ErrRasterOpen, name, "", fmt.Errorf("expected %d samples, got %d", width*height, len(data)))
	}
	return &MemRaster{Name: name, Width: width, Height: height, Data: data, Extents: ext}, nil
}

func (m *MemRaster) Path() string {
	return m.Name
}

func (m *MemRaster) Dimensions() (int, int) {
	return m.Width, m.Height
}

func (m *MemRaster) ElevationExtents() (Extents, error) {
	if m.Extents == nil {
		return Extents{}, NewRasterError(ErrMissingStatistic, m.Name, "extents", nil)
	}
	return *m.Extents, nil
}

func (m *MemRaster) ReadWindow(x, y, w, h int) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, NewRasterError(ErrRasterRead, m.Name, "read", fmt.Errorf("raster closed"))
	}
	if err := CheckWindow(m.Width, m.Height, x, y, w, h); err != nil {
		return nil, NewRasterError(ErrRasterRead, m.Name, "read", err)
	}

	out := make([]float32, w*h)
	for row := 0; row < h; row++ {
		src := (y+row)*m.Width + x
		copy(out[row*w:(row+1)*w], m.Data[src:src+w])
	}
	return out, nil
}

func (m *MemRaster) GeoTransform() ([6]float64, bool) {
	if m.Geot == nil {
		return [6]float64{}, false
	}
	return *m.Geot, true
}

func (m *MemRaster) NoDataValue() (float64, bool) {
	return m.NoData, m.HasNoData
}

func (m *MemRaster) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// CheckWindow reports whether the window lies inside a raster of the
// given dimensions.
func CheckWindow(width, height, x, y, w, h int) error {
	if w <= 0 || h <= 0 || x < 0 || y < 0 || x+w > width || y+h > height {
		return fmt.Errorf("window (%d,%d %dx%d) outside raster %dx%d", x, y, w, h, width, height)
	}
	return nil
}
