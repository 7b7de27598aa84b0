package utils

import (
	"math"
)

// ScaleParams maps elevations linearly from [Offset, Offset+Range]
// onto [0, Clip].
type ScaleParams struct {
	Offset float64
	Range  float64
	Clip   float64
}

// NewScaleParams normalises against the whole raster's extents, never
// against the extrema of a decimated grid or a single tile.
func NewScaleParams(ext Extents, clip float64) (ScaleParams, error) {
	r, err := ext.Range()
	if err != nil {
		return ScaleParams{}, err
	}
	return ScaleParams{Offset: ext.Min, Range: r, Clip: clip}, nil
}

// Normalise is unclamped; values outside the extents map outside [0, Clip].
func (p ScaleParams) Normalise(value float64) float64 {
	return (value - p.Offset) / p.Range * p.Clip
}

// NormaliseClamped clamps into [0, Clip]. NaN maps to 0.
func (p ScaleParams) NormaliseClamped(value float64) float64 {
	v := p.Normalise(value)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, p.Clip)
}

// ScaleByte rounds half away from zero and clamps into [0, 255].
// NaN maps to 0.
func (p ScaleParams) ScaleByte(value float32) uint8 {
	v := math.Round(p.Normalise(float64(value)))
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func Scale(r *Float32Raster, params ScaleParams) *ByteRaster {
	out := &ByteRaster{
		Data:   make([]uint8, len(r.Data)),
		Width:  r.Width,
		Height: r.Height,
		OffX:   r.OffX,
		OffY:   r.OffY,
		NoData: r.NoData,
	}
	for i, value := range r.Data {
		out.Data[i] = params.ScaleByte(value)
	}
	return out
}
