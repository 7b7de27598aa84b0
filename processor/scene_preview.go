package processor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/hsluv/hsluv-go"
	"golang.org/x/image/tiff"
	"golang.org/x/image/vector"
	"gonum.org/v1/gonum/spatial/r3"
)

const previewNearPlane = 1e-3

// PreviewEmitter is a software renderer producing flat shaded frames
// without an external renderer. Faces are painted back to front.
type PreviewEmitter struct {
	Background color.RGBA
	Verbose    bool

	width, height int
	meshes        []*Mesh
	zRange        [][2]float64
	maskBuf       []uint8
}

func NewPreviewEmitter(verbose bool) *PreviewEmitter {
	return &PreviewEmitter{Background: color.RGBA{A: 0xff}, Verbose: verbose}
}

func (e *PreviewEmitter) BeginScene(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("preview: invalid frame size %dx%d", width, height)
	}
	e.width, e.height = width, height
	e.meshes = nil
	e.zRange = nil
	return nil
}

func (e *PreviewEmitter) SubmitMesh(mesh *Mesh) (MeshHandle, error) {
	if e.width == 0 {
		return 0, fmt.Errorf("preview: SubmitMesh called before BeginScene")
	}

	zr := [2]float64{math.Inf(1), math.Inf(-1)}
	for _, v := range mesh.Vertices {
		zr[0] = math.Min(zr[0], v[1])
		zr[1] = math.Max(zr[1], v[1])
	}
	e.meshes = append(e.meshes, mesh)
	e.zRange = append(e.zRange, zr)
	return MeshHandle(len(e.meshes)), nil
}

type projectedFace struct {
	pts   [4][2]float32
	depth float64
	col   color.RGBA
}

func (e *PreviewEmitter) RenderFrame(handle MeshHandle, frame *FrameRequest) error {
	idx := int(handle) - 1
	if idx < 0 || idx >= len(e.meshes) {
		return fmt.Errorf("preview: unknown mesh handle %d", handle)
	}
	mesh := e.meshes[idx]

	cam := newPreviewCamera(frame, e.width, e.height)
	camPts := make([]r3.Vec, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		camPts[i] = cam.toCamera(v)
	}

	faces := make([]projectedFace, 0, len(mesh.Faces))
	frameArea := float64(e.width) * float64(e.height)
	light := r3.Vec{X: 0, Y: 0, Z: 1}
	for _, f := range mesh.Faces {
		var pf projectedFace
		visible := true
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		var elevation float64
		for k, vi := range f {
			p := camPts[vi]
			if p.Z <= previewNearPlane {
				visible = false
				break
			}
			x, y := cam.project(p)
			pf.pts[k] = [2]float32{float32(x), float32(y)}
			pf.depth += p.Z / 4
			elevation += mesh.Vertices[vi][1] / 4
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}
		if !visible || maxX < 0 || maxY < 0 || minX >= float64(e.width) || minY >= float64(e.height) {
			continue
		}
		if (maxX-minX)*(maxY-minY) > 4*frameArea {
			continue
		}

		n := r3.Cross(r3.Sub(camPts[f[1]], camPts[f[0]]), r3.Sub(camPts[f[3]], camPts[f[0]]))
		shade := 0.15
		if norm := r3.Norm(n); norm > 0 {
			shade += 0.85 * math.Abs(r3.Dot(r3.Scale(1/norm, n), light))
		}
		pf.col = faceColour(elevation, e.zRange[idx], frame.Colour, shade)
		faces = append(faces, pf)
	}

	sort.Slice(faces, func(i, j int) bool { return faces[i].depth > faces[j].depth })

	img := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	draw.Draw(img, img.Bounds(), &image.Uniform{e.Background}, image.Point{}, draw.Src)
	for i := range faces {
		e.fillFace(img, &faces[i])
	}

	if err := writeFrame(frame.OutputPath, frame.Format, frame.Quality, img); err != nil {
		return err
	}
	if e.Verbose {
		log.Printf("preview: frame %d, %d of %d faces drawn", frame.Index, len(faces), len(mesh.Faces))
	}
	return nil
}

func (e *PreviewEmitter) EndScene() error {
	e.meshes = nil
	e.zRange = nil
	e.maskBuf = nil
	return nil
}

// fillFace rasterises the quad into a mask covering its clipped bounding
// box and composites the face colour through it.
func (e *PreviewEmitter) fillFace(img *image.RGBA, pf *projectedFace) {
	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := float32(-math.MaxFloat32), float32(-math.MaxFloat32)
	for _, p := range pf.pts {
		minX, maxX = min(minX, p[0]), max(maxX, p[0])
		minY, maxY = min(minY, p[1]), max(maxY, p[1])
	}

	box := image.Rect(int(math.Floor(float64(minX))), int(math.Floor(float64(minY))),
		int(math.Ceil(float64(maxX)))+1, int(math.Ceil(float64(maxY)))+1).Intersect(img.Bounds())
	if box.Empty() {
		return
	}
	bw, bh := box.Dx(), box.Dy()

	if cap(e.maskBuf) < bw*bh {
		e.maskBuf = make([]uint8, bw*bh)
	}
	buf := e.maskBuf[:bw*bh]
	for i := range buf {
		buf[i] = 0
	}
	mask := &image.Alpha{Pix: buf, Stride: bw, Rect: image.Rect(0, 0, bw, bh)}

	ox, oy := float32(box.Min.X), float32(box.Min.Y)
	z := vector.NewRasterizer(bw, bh)
	z.MoveTo(pf.pts[0][0]-ox, pf.pts[0][1]-oy)
	for _, p := range pf.pts[1:] {
		z.LineTo(p[0]-ox, p[1]-oy)
	}
	z.ClosePath()
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	draw.DrawMask(img, box, &image.Uniform{pf.col}, image.Point{}, mask, image.Point{}, draw.Over)
}

type previewCamera struct {
	spin     r3.Rotation
	tilt     r3.Rotation
	distance float64
	scale    float64
	cx, cy   float64
}

func newPreviewCamera(frame *FrameRequest, width, height int) *previewCamera {
	fov := frame.Camera.FOV
	if fov <= 0 || fov >= 180 {
		fov = 90
	}
	short := math.Min(float64(width), float64(height))
	return &previewCamera{
		spin:     r3.NewRotation(frame.Angle*math.Pi/180, r3.Vec{Y: 1}),
		tilt:     r3.NewRotation(frame.Camera.Tilt*math.Pi/180, r3.Unit(r3.Vec{X: -1, Y: 1})),
		distance: frame.Camera.Distance,
		scale:    short / 2 / math.Tan(fov*math.Pi/360),
		cx:       float64(width) / 2,
		cy:       float64(height) / 2,
	}
}

// toCamera applies the turntable spin, then the tilt, then pushes the
// scene away from the eye along +z.
func (c *previewCamera) toCamera(v Vertex) r3.Vec {
	p := c.spin.Rotate(r3.Vec{X: v[0], Y: v[1], Z: v[2]})
	p = c.tilt.Rotate(p)
	p.Z += c.distance
	return p
}

func (c *previewCamera) project(p r3.Vec) (float64, float64) {
	return c.cx + p.X/p.Z*c.scale, c.cy - p.Y/p.Z*c.scale
}

// faceColour maps elevation to a perceptually uniform ramp running from
// green lowlands to pale highlands, tinted by the surface colour.
func faceColour(elevation float64, zRange [2]float64, tint [3]float64, shade float64) color.RGBA {
	t := 0.5
	if span := zRange[1] - zRange[0]; span > 0 {
		t = (elevation - zRange[0]) / span
	}
	t = math.Max(0, math.Min(1, t))

	r, g, b := hsluv.HsluvToRGB(130-100*t, 70-40*t, 35+55*t)
	channel := func(v, k float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, v*k*shade)) * 255))
	}
	return color.RGBA{channel(r, tint[0]), channel(g, tint[1]), channel(b, tint[2]), 0xff}
}

func writeFrame(path, format string, quality int, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = encodeFrame(f, format, quality, img)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}

func encodeFrame(w io.Writer, format string, quality int, img image.Image) error {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		if quality < 1 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png":
		return png.Encode(w, img)
	case "tiff", "tif":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported frame format: %s", format)
	}
}
