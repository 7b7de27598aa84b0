package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ASCIIGridOpener opens Esri ASCII grids (ArcInfo .asc) without GDAL.
// The whole grid is held in memory.
type ASCIIGridOpener struct{}

func (ASCIIGridOpener) Open(path string) (RasterHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewRasterError(ErrRasterOpen, path, "open", err)
	}
	defer f.Close()

	raster, err := ReadASCIIGrid(path, f)
	if err != nil {
		return nil, err
	}
	return raster, nil
}

type asciiGridHeader struct {
	ncols, nrows int
	xll, yll     float64
	center       bool
	cellSize     float64
	noData       float64
	hasNoData    bool
}

// ReadASCIIGrid parses an ASCII grid. Extents are computed from the
// samples that are not NODATA_value.
func ReadASCIIGrid(name string, r io.Reader) (*MemRaster, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	hdr, first, err := readASCIIGridHeader(scanner)
	if err != nil {
		return nil, NewRasterError(ErrRasterOpen, name, "header", err)
	}

	total := hdr.ncols * hdr.nrows
	data := make([]float32, 0, total)
	valid := make([]float64, 0, hdr.ncols)
	var ext *Extents

	token := first
	for row := 0; row < hdr.nrows; row++ {
		valid = valid[:0]
		for col := 0; col < hdr.ncols; col++ {
			if len(token) == 0 {
				if !scanner.Scan() {
					return nil, NewRasterError(ErrRasterOpen, name, "data", fmt.Errorf("expected %d samples, got %d", total, len(data)))
				}
				token = scanner.Text()
			}
			v, err := strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, NewRasterError(ErrRasterOpen, name, "data", err)
			}
			token = ""

			data = append(data, float32(v))
			if !hdr.hasNoData || v != hdr.noData {
				valid = append(valid, v)
			}
		}

		if len(valid) == 0 {
			continue
		}
		lo, hi := floats.Min(valid), floats.Max(valid)
		if ext == nil {
			ext = &Extents{Min: lo, Max: hi}
		} else {
			if lo < ext.Min {
				ext.Min = lo
			}
			if hi > ext.Max {
				ext.Max = hi
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, NewRasterError(ErrRasterOpen, name, "data", err)
	}

	raster, err := NewMemRaster(name, hdr.ncols, hdr.nrows, data, ext)
	if err != nil {
		return nil, err
	}

	// Grids are stored north up; the lower left reference is moved to
	// the upper left corner of the first pixel.
	xOrigin, yOrigin := hdr.xll, hdr.yll+float64(hdr.nrows)*hdr.cellSize
	if hdr.center {
		xOrigin -= hdr.cellSize / 2
		yOrigin -= hdr.cellSize / 2
	}
	raster.Geot = &[6]float64{xOrigin, hdr.cellSize, 0, yOrigin, 0, -hdr.cellSize}
	if hdr.hasNoData {
		raster.NoData = hdr.noData
		raster.HasNoData = true
	}
	return raster, nil
}

// readASCIIGridHeader consumes the key/value header and returns the
// first data token, which has already been read.
func readASCIIGridHeader(scanner *bufio.Scanner) (*asciiGridHeader, string, error) {
	hdr := &asciiGridHeader{}
	seen := map[string]bool{}

	for scanner.Scan() {
		key := strings.ToLower(scanner.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			for _, required := range []string{"ncols", "nrows", "cellsize"} {
				if !seen[required] {
					return nil, "", fmt.Errorf("missing header field %s", required)
				}
			}
			if hdr.ncols <= 0 || hdr.nrows <= 0 {
				return nil, "", fmt.Errorf("invalid dimensions %dx%d", hdr.ncols, hdr.nrows)
			}
			return hdr, key, nil
		}

		if !scanner.Scan() {
			return nil, "", fmt.Errorf("missing value for %s", key)
		}
		value := scanner.Text()
		seen[key] = true

		var err error
		switch key {
		case "ncols":
			hdr.ncols, err = strconv.Atoi(value)
		case "nrows":
			hdr.nrows, err = strconv.Atoi(value)
		case "xllcorner", "xllcenter":
			hdr.center = key == "xllcenter"
			hdr.xll, err = strconv.ParseFloat(value, 64)
		case "yllcorner", "yllcenter":
			hdr.yll, err = strconv.ParseFloat(value, 64)
		case "cellsize":
			hdr.cellSize, err = strconv.ParseFloat(value, 64)
		case "nodata_value":
			hdr.noData, err = strconv.ParseFloat(value, 64)
			hdr.hasNoData = true
		default:
			err = fmt.Errorf("unknown header field %s", key)
		}
		if err != nil {
			return nil, "", err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, "", err
	}
	return nil, "", fmt.Errorf("no data section")
}
