package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io/ioutil"
	"os"
	"path/filepath"
)

// ImageWriter encodes a row-major grayscale buffer to a file.
type ImageWriter interface {
	WriteGrayscaleImage(path string, width, height, bitDepth int, data []byte) error
}

// EncodeGrayPNG encodes 8-bit samples, or 16-bit big-endian samples
// when bitDepth is 16.
func EncodeGrayPNG(width, height, bitDepth int, data []byte) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	var img image.Image
	switch bitDepth {
	case 8:
		if len(data) != width*height {
			return nil, fmt.Errorf("expected %d bytes for %dx%d 8-bit image, got %d", width*height, width, height, len(data))
		}
		img = &image.Gray{Pix: data, Stride: width, Rect: image.Rect(0, 0, width, height)}
	case 16:
		if len(data) != 2*width*height {
			return nil, fmt.Errorf("expected %d bytes for %dx%d 16-bit image, got %d", 2*width*height, width, height, len(data))
		}
		img = &image.Gray16{Pix: data, Stride: 2 * width, Rect: image.Rect(0, 0, width, height)}
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}

	buf := new(bytes.Buffer)
	err := png.Encode(buf, img)
	return buf.Bytes(), err
}

// PNGWriter writes grayscale PNG files. Files appear under their final
// name only once completely written.
type PNGWriter struct{}

func (PNGWriter) WriteGrayscaleImage(path string, width, height, bitDepth int, data []byte) error {
	encoded, err := EncodeGrayPNG(width, height, bitDepth, data)
	if err != nil {
		return NewRasterError(ErrEncode, path, "png", err)
	}

	tmp, err := ioutil.TempFile(filepath.Dir(path), ".tile_")
	if err != nil {
		return NewRasterError(ErrEncode, path, "create", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(encoded)
	if err == nil {
		err = tmp.Chmod(0644)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		os.Remove(tmpName)
		return NewRasterError(ErrEncode, path, "write", err)
	}
	return nil
}
