package utils

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a raster provider or by the
// processing stages matches exactly one of these with errors.Is.
var (
	ErrRasterOpen       = errors.New("raster open error")
	ErrRasterRead       = errors.New("raster read error")
	ErrMissingStatistic = errors.New("missing statistic")
	ErrDegenerateRange  = errors.New("degenerate elevation range")
	ErrEncode           = errors.New("encode error")
)

// RasterError names the input and the operation that failed.
type RasterError struct {
	Kind error
	Path string
	Op   string
	Err  error
}

func (e *RasterError) Error() string {
	msg := e.Kind.Error()
	if len(e.Op) > 0 {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if len(e.Path) > 0 {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RasterError) Is(target error) bool {
	return target == e.Kind
}

func (e *RasterError) Unwrap() error {
	return e.Err
}

func NewRasterError(kind error, path string, op string, err error) error {
	return &RasterError{Kind: kind, Path: path, Op: op, Err: err}
}

// ErrorKind returns the kind sentinel matched by err, or nil.
func ErrorKind(err error) error {
	for _, kind := range []error{ErrRasterOpen, ErrRasterRead, ErrMissingStatistic, ErrDegenerateRange, ErrEncode} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
