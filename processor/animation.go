package processor

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	goeval "github.com/edisonguo/govaluate"
	"github.com/nci/terrain/utils"
)

// MeshHandle refers to a mesh submitted to a SceneEmitter.
type MeshHandle int

// FrameRequest describes one rendered frame. Camera and Colour are
// passed through to the emitter untouched.
type FrameRequest struct {
	Index      int
	Angle      float64
	OutputPath string
	Format     string
	Quality    int
	Camera     utils.CameraConfig
	Colour     [3]float64
}

// SceneEmitter accepts a mesh once and renders any number of frames
// referencing it.
type SceneEmitter interface {
	BeginScene(width, height int) error
	SubmitMesh(mesh *Mesh) (MeshHandle, error)
	RenderFrame(handle MeshHandle, frame *FrameRequest) error
	EndScene() error
}

// AnimationDriver renders Frames frames of a turntable animation around
// the vertical axis.
type AnimationDriver struct {
	Config  utils.AnimationConfig
	Prefix  string
	Verbose bool

	angleExpr *goeval.EvaluableExpression
}

// NewAnimationDriver compiles the optional angle expression. The
// expression sees the variables frame, frames and increment; the
// default angle is frame * increment.
func NewAnimationDriver(config utils.AnimationConfig, prefix string, verbose bool) (*AnimationDriver, error) {
	if config.Frames < 1 {
		return nil, fmt.Errorf("invalid frame count: %d", config.Frames)
	}

	d := &AnimationDriver{Config: config, Prefix: prefix, Verbose: verbose}
	if len(strings.TrimSpace(config.AngleExpression)) > 0 {
		expr, err := goeval.NewEvaluableExpression(config.AngleExpression)
		if err != nil {
			return nil, fmt.Errorf("invalid angle expression %q: %v", config.AngleExpression, err)
		}
		d.angleExpr = expr
	}
	return d, nil
}

// Angle returns the camera rotation in degrees for frame f.
func (d *AnimationDriver) Angle(f int) (float64, error) {
	increment := d.Config.Increment()
	if d.angleExpr == nil {
		return float64(f) * increment, nil
	}

	// govaluate evaluates arithmetic in float32.
	params := map[string]interface{}{
		"frame":     float32(f),
		"frames":    float32(d.Config.Frames),
		"increment": float32(increment),
	}
	res, err := d.angleExpr.Evaluate(params)
	if err != nil {
		return 0, fmt.Errorf("angle expression for frame %d: %v", f, err)
	}
	switch angle := res.(type) {
	case float32:
		return float64(angle), nil
	case float64:
		return angle, nil
	default:
		return 0, fmt.Errorf("angle expression for frame %d returned %T, expecting a number", f, res)
	}
}

// FramePath is <output_dir>/<prefix><4-digit frame>.<ext>.
func (d *AnimationDriver) FramePath(f int) string {
	return filepath.Join(d.Config.OutputDir, fmt.Sprintf("%s%04d.%s", d.Prefix, f, FormatExtension(d.Config.Format)))
}

func FormatExtension(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return "jpg"
	case "tiff", "tif":
		return "tif"
	default:
		return strings.ToLower(format)
	}
}

// Run submits the mesh once and renders every frame against it, in
// increasing frame order. Any frame failure aborts the animation.
func (d *AnimationDriver) Run(mesh *Mesh, emitter SceneEmitter) error {
	if err := emitter.BeginScene(d.Config.Width, d.Config.Height); err != nil {
		return err
	}

	handle, err := emitter.SubmitMesh(mesh)
	if err != nil {
		return err
	}

	for f := 0; f < d.Config.Frames; f++ {
		angle, err := d.Angle(f)
		if err != nil {
			return err
		}

		frame := &FrameRequest{
			Index:      f,
			Angle:      angle,
			OutputPath: d.FramePath(f),
			Format:     d.Config.Format,
			Quality:    d.Config.Quality,
			Camera:     d.Config.Camera,
			Colour:     d.Config.Colour,
		}
		if err := emitter.RenderFrame(handle, frame); err != nil {
			return utils.NewRasterError(utils.ErrEncode, frame.OutputPath, fmt.Sprintf("frame %d", f), err)
		}

		if d.Verbose {
			log.Printf("animation: frame %d angle %.2f -> %s", f, angle, frame.OutputPath)
		}
	}

	if err := emitter.EndScene(); err != nil {
		return utils.NewRasterError(utils.ErrEncode, d.Config.OutputDir, "end scene", err)
	}
	return nil
}
