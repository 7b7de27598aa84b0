package gdalprocess

// #include <stdlib.h>
// #include "gdal.h"
// #include "cpl_error.h"
// #cgo pkg-config: gdal
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/nci/terrain/utils"
)

// GDALRaster reads band 1 of a GDAL dataset. GDAL dataset handles are
// not safe for concurrent use so reads are serialised.
type GDALRaster struct {
	path           string
	computeExtents bool

	mu     sync.Mutex
	ds     C.GDALDatasetH
	band   C.GDALRasterBandH
	width  int
	height int
}

// Opener opens rasters through GDAL. With ComputeExtents set, rasters
// without stored statistics get their extents computed from the data.
type Opener struct {
	ComputeExtents bool
}

func (o Opener) Open(path string) (utils.RasterHandle, error) {
	return OpenRaster(path, o.ComputeExtents)
}

func OpenRaster(path string, computeExtents bool) (*GDALRaster, error) {
	InitGdal()

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	ds := C.GDALOpen(cPath, C.GA_ReadOnly)
	if ds == nil {
		return nil, utils.NewRasterError(utils.ErrRasterOpen, path, "open", lastError())
	}

	if C.GDALGetRasterCount(ds) < 1 {
		C.GDALClose(ds)
		return nil, utils.NewRasterError(utils.ErrRasterOpen, path, "open", fmt.Errorf("dataset has no bands"))
	}

	return &GDALRaster{
		path:           path,
		computeExtents: computeExtents,
		ds:             ds,
		band:           C.GDALGetRasterBand(ds, 1),
		width:          int(C.GDALGetRasterXSize(ds)),
		height:         int(C.GDALGetRasterYSize(ds)),
	}, nil
}

func (r *GDALRaster) Path() string {
	return r.path
}

func (r *GDALRaster) Dimensions() (int, int) {
	return r.width, r.height
}

func (r *GDALRaster) ElevationExtents() (utils.Extents, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ds == nil {
		return utils.Extents{}, utils.NewRasterError(utils.ErrRasterRead, r.path, "extents", fmt.Errorf("raster closed"))
	}

	var gotMin, gotMax C.int
	min := float64(C.GDALGetRasterMinimum(r.band, &gotMin))
	max := float64(C.GDALGetRasterMaximum(r.band, &gotMax))
	if gotMin != 0 && gotMax != 0 {
		return utils.Extents{Min: min, Max: max}, nil
	}

	if !r.computeExtents {
		return utils.Extents{}, utils.NewRasterError(utils.ErrMissingStatistic, r.path, "extents", nil)
	}

	var minMax [2]C.double
	C.CPLErrorReset()
	C.GDALComputeRasterMinMax(r.band, C.int(0), &minMax[0])
	if C.CPLGetLastErrorType() >= C.CE_Failure {
		return utils.Extents{}, utils.NewRasterError(utils.ErrRasterRead, r.path, "compute extents", lastError())
	}
	return utils.Extents{Min: float64(minMax[0]), Max: float64(minMax[1])}, nil
}

func (r *GDALRaster) ReadWindow(x, y, w, h int) ([]float32, error) {
	if err := utils.CheckWindow(r.width, r.height, x, y, w, h); err != nil {
		return nil, utils.NewRasterError(utils.ErrRasterRead, r.path, "read", err)
	}

	out := make([]float32, w*h)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ds == nil {
		return nil, utils.NewRasterError(utils.ErrRasterRead, r.path, "read", fmt.Errorf("raster closed"))
	}

	cErr := C.GDALRasterIO(r.band, C.GF_Read, C.int(x), C.int(y), C.int(w), C.int(h),
		unsafe.Pointer(&out[0]), C.int(w), C.int(h), C.GDT_Float32, 0, 0)
	if cErr != C.CE_None {
		return nil, utils.NewRasterError(utils.ErrRasterRead, r.path, fmt.Sprintf("read (%d,%d %dx%d)", x, y, w, h), lastError())
	}
	return out, nil
}

func (r *GDALRaster) GeoTransform() ([6]float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var geot [6]float64
	if r.ds == nil {
		return geot, false
	}
	if C.GDALGetGeoTransform(r.ds, (*C.double)(&geot[0])) != C.CE_None {
		return geot, false
	}
	return geot, true
}

func (r *GDALRaster) NoDataValue() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ds == nil {
		return 0, false
	}
	var ok C.int
	v := float64(C.GDALGetRasterNoDataValue(r.band, &ok))
	return v, ok != 0
}

func (r *GDALRaster) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ds != nil {
		C.GDALClose(r.ds)
		r.ds = nil
	}
	return nil
}

func lastError() error {
	msg := C.GoString(C.CPLGetLastErrorMsg())
	if len(msg) == 0 {
		msg = "unknown GDAL error"
	}
	return fmt.Errorf("%s", msg)
}
