package gdalprocess

// #include "gdal.h"
// #include "gdal_frmts.h"
// #cgo pkg-config: gdal
import "C"

import (
	"os"
	"path/filepath"
	"sync"
)

var initOnce sync.Once

// InitGdal sets GDAL's environment defaults and registers the drivers.
// It is safe to call more than once.
func InitGdal() {
	initOnce.Do(func() {
		setDefaultEnv("GDAL_PAM_ENABLED", "NO")
		setDefaultEnv("GDAL_DISABLE_READDIR_ON_OPEN", "EMPTY_DIR")
		setDefaultEnv("GDAL_MAX_DATASET_POOL_SIZE", "10")

		exeFilePath, err := os.Executable()
		if err == nil {
			setDefaultEnv("GDAL_DRIVER_PATH", filepath.Dir(exeFilePath))
		}

		registerGDALDrivers()
	})
}

func setDefaultEnv(envVar string, defaultVal string) {
	if _, ok := os.LookupEnv(envVar); !ok {
		os.Setenv(envVar, defaultVal)
	}
}

// registerGDALDrivers puts the elevation formats we expect most often at
// the front of the driver list, since GDAL probes drivers in order when
// opening a file.
func registerGDALDrivers() {
	var haveGTiff, haveAAIGrid, haveHFA bool

	C.GDALAllRegister()
	for i := 0; i < int(C.GDALGetDriverCount()); i++ {
		driver := C.GDALGetDriver(C.int(i))
		switch C.GoString(C.GDALGetDriverShortName(driver)) {
		case "GTiff":
			haveGTiff = true
		case "AAIGrid":
			haveAAIGrid = true
		case "HFA":
			haveHFA = true
		}
	}

	for C.GDALGetDriverCount() > 0 {
		C.GDALDeregisterDriver(C.GDALGetDriver(0))
	}

	if haveGTiff {
		C.GDALRegister_GTiff()
	}
	if haveAAIGrid {
		C.GDALRegister_AAIGrid()
	}
	if haveHFA {
		C.GDALRegister_HFA()
	}
	C.GDALAllRegister()
}
