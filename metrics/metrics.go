package metrics

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/nci/terrain/utils"
)

type RasterInfo struct {
	Path     string  `json:"path"`
	Provider string  `json:"provider"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

type DecimateInfo struct {
	Duration   time.Duration `json:"duration"`
	Stride     int           `json:"stride"`
	GridWidth  int           `json:"grid_width"`
	GridHeight int           `json:"grid_height"`
}

type MeshInfo struct {
	Duration time.Duration `json:"duration"`
	Vertices int           `json:"vertices"`
	Faces    int           `json:"faces"`
}

type AnimationInfo struct {
	Duration time.Duration `json:"duration"`
	Emitter  string        `json:"emitter"`
	Frames   int           `json:"frames"`
}

type TileInfo struct {
	Duration time.Duration `json:"duration"`
	Written  int           `json:"written"`
	Failed   int           `json:"failed"`
}

// RunInfo describes one invocation of a command line tool.
type RunInfo struct {
	Command   string         `json:"command"`
	StartTime string         `json:"start_time"`
	Duration  time.Duration  `json:"duration"`
	Raster    RasterInfo     `json:"raster"`
	Decimate  *DecimateInfo  `json:"decimate,omitempty"`
	Mesh      *MeshInfo      `json:"mesh,omitempty"`
	Animation *AnimationInfo `json:"animation,omitempty"`
	Tiles     *TileInfo      `json:"tiles,omitempty"`
	Status    string         `json:"status"`
	ErrorKind string         `json:"error_kind,omitempty"`
}

type MetricsCollector struct {
	Info   *RunInfo
	start  time.Time
	logger Logger
}

func NewMetricsCollector(command string, logger Logger) *MetricsCollector {
	now := time.Now()
	return &MetricsCollector{
		Info: &RunInfo{
			Command:   command,
			StartTime: now.Format(time.RFC3339),
			Status:    "ok",
		},
		start:  now,
		logger: logger,
	}
}

// Finish records the outcome of the run and hands it to the logger.
func (m *MetricsCollector) Finish(err error) {
	m.Info.Duration = time.Since(m.start)
	if err != nil {
		m.Info.Status = err.Error()
		if kind := utils.ErrorKind(err); kind != nil {
			m.Info.ErrorKind = kind.Error()
		}
	}
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *RunInfo) ToJSON() (string, error) {
	if abs, err := filepath.Abs(i.Raster.Path); err == nil && len(i.Raster.Path) > 0 && i.Raster.Provider != "remote" {
		i.Raster.Path = abs
	}

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(i); err != nil {
		return "", err
	}
	return buf.String(), nil
}
