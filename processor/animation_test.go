package processor

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/nci/terrain/utils"
)

type recordingEmitter struct {
	width, height int
	submitted     int
	frames        []FrameRequest
	failFrame     int
	endErr        error
	ended         bool
}

func (e *recordingEmitter) BeginScene(width, height int) error {
	e.width, e.height = width, height
	return nil
}

func (e *recordingEmitter) SubmitMesh(mesh *Mesh) (MeshHandle, error) {
	e.submitted++
	return MeshHandle(7), nil
}

func (e *recordingEmitter) RenderFrame(handle MeshHandle, frame *FrameRequest) error {
	if handle != 7 {
		return fmt.Errorf("unexpected handle %d", handle)
	}
	if e.failFrame > 0 && frame.Index == e.failFrame {
		return fmt.Errorf("disk full")
	}
	e.frames = append(e.frames, *frame)
	return nil
}

func (e *recordingEmitter) EndScene() error {
	e.ended = true
	return e.endErr
}

func testAnimationConfig(frames int) utils.AnimationConfig {
	cfg := utils.DefaultConfig().Animation
	cfg.Frames = frames
	cfg.RotationIncrement = 10
	cfg.OutputDir = "frames"
	return cfg
}

func testMesh(t *testing.T) *Mesh {
	mesh, err := BuildMesh(filledGrid(t, 3, 3, utils.Extents{Min: 0, Max: 100}), defaultMesh)
	if err != nil {
		t.Fatal(err)
	}
	return mesh
}

func TestAnimationFrames(t *testing.T) {
	driver, err := NewAnimationDriver(testAnimationConfig(36), "dem", false)
	if err != nil {
		t.Fatal(err)
	}

	emitter := &recordingEmitter{}
	if err := driver.Run(testMesh(t), emitter); err != nil {
		t.Fatal(err)
	}

	if emitter.submitted != 1 {
		t.Errorf("mesh should be submitted once, actual %d", emitter.submitted)
	}
	if emitter.width != 512 || emitter.height != 512 || !emitter.ended {
		t.Errorf("unexpected scene lifecycle: %dx%d ended=%v", emitter.width, emitter.height, emitter.ended)
	}
	if len(emitter.frames) != 36 {
		t.Fatalf("expecting 36 frames, actual %d", len(emitter.frames))
	}

	for f, frame := range emitter.frames {
		if frame.Index != f {
			t.Errorf("frames out of order: position %d has index %d", f, frame.Index)
		}
		if math.Abs(frame.Angle-float64(f)*10) > 1e-9 {
			t.Errorf("frame %d: expecting angle %v, actual %v", f, float64(f)*10, frame.Angle)
		}
		expected := filepath.Join("frames", fmt.Sprintf("dem%04d.jpg", f))
		if frame.OutputPath != expected {
			t.Errorf("frame %d: expecting path %s, actual %s", f, expected, frame.OutputPath)
		}
	}
	if emitter.frames[35].Angle != 350 {
		t.Errorf("last frame should be at 350 degrees, actual %v", emitter.frames[35].Angle)
	}
}

func TestAnimationDefaultIncrement(t *testing.T) {
	cfg := testAnimationConfig(8)
	cfg.RotationIncrement = 0
	driver, err := NewAnimationDriver(cfg, "x", false)
	if err != nil {
		t.Fatal(err)
	}
	if a, _ := driver.Angle(2); a != 90 {
		t.Errorf("expecting 90 degrees, actual %v", a)
	}
}

func TestAnimationAngleExpression(t *testing.T) {
	cfg := testAnimationConfig(4)
	cfg.AngleExpression = "frame * increment / 2 + 5"
	driver, err := NewAnimationDriver(cfg, "x", false)
	if err != nil {
		t.Fatal(err)
	}

	for f, expected := range []float64{5, 10, 15, 20} {
		a, err := driver.Angle(f)
		if err != nil {
			t.Fatal(err)
		}
		if a != expected {
			t.Errorf("frame %d: expecting %v, actual %v", f, expected, a)
		}
	}

	cfg.AngleExpression = "360 / frames * frame"
	driver, err = NewAnimationDriver(cfg, "x", false)
	if err != nil {
		t.Fatal(err)
	}
	if a, err := driver.Angle(3); err != nil || a != 270 {
		t.Errorf("expecting 270 degrees, actual %v (%v)", a, err)
	}

	cfg.AngleExpression = "frame * ("
	if _, err := NewAnimationDriver(cfg, "x", false); err == nil {
		t.Error("expecting error for malformed expression")
	}
}

func TestAnimationFrameFailure(t *testing.T) {
	driver, err := NewAnimationDriver(testAnimationConfig(10), "dem", false)
	if err != nil {
		t.Fatal(err)
	}

	emitter := &recordingEmitter{failFrame: 3}
	err = driver.Run(testMesh(t), emitter)
	if !errors.Is(err, utils.ErrEncode) {
		t.Errorf("expecting ErrEncode, actual %v", err)
	}
	if len(emitter.frames) != 3 || emitter.ended {
		t.Errorf("animation should stop at the failing frame, rendered %d ended=%v", len(emitter.frames), emitter.ended)
	}
}

func TestFormatExtension(t *testing.T) {
	for format, ext := range map[string]string{"jpeg": "jpg", "JPG": "jpg", "png": "png", "tiff": "tif"} {
		if actual := FormatExtension(format); actual != ext {
			t.Errorf("%s: expecting %s, actual %s", format, ext, actual)
		}
	}
}

func TestAnimationEndSceneFailure(t *testing.T) {
	driver, err := NewAnimationDriver(testAnimationConfig(2), "dem", false)
	if err != nil {
		t.Fatal(err)
	}

	emitter := &recordingEmitter{endErr: fmt.Errorf("renderer exited 1")}
	err = driver.Run(testMesh(t), emitter)
	if !errors.Is(err, utils.ErrEncode) {
		t.Errorf("expecting ErrEncode, actual %v", err)
	}
	if utils.ErrorKind(err) != utils.ErrEncode {
		t.Errorf("expecting encode error kind, actual %v", utils.ErrorKind(err))
	}
}
