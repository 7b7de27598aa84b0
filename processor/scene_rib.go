package processor

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/CloudyKit/jet/v6"
)

const ribTemplateName = "/scene.rib"

// The mesh is declared once as a retained object and instanced by every
// frame.
const defaultRIBTemplate = `##RenderMan RIB
version 3.03
Format {{ .Width }} {{ .Height }} 1
ObjectBegin 1
PointsPolygons [
{{ range i, line := .NumVerts }}{{ line }}
{{ end }}] [
{{ range i, line := .Indices }}{{ line }}
{{ end }}] "P" [
{{ range i, line := .Points }}{{ line }}
{{ end }}]
ObjectEnd
{{ range i, f := .Frames }}FrameBegin {{ f.Index }}
	Display "{{ f.Display }}" "{{ f.Driver }}" "rgb" "int quality" [{{ f.Quality }}]
	LightSource "distantlight" 1
	Shutter {{ f.ShutterOpen }} {{ f.ShutterClose }}
	Projection "perspective" "fov" [{{ f.FOV }}]
	Translate 0 0 {{ f.Distance }}
	Rotate {{ f.Tilt }} -1 1 0
	Rotate {{ f.Angle }} 0 1 0
	WorldBegin
		AttributeBegin
			Color [{{ f.Colour }}]
			Surface "{{ f.Surface }}"
			ObjectInstance 1
		AttributeEnd
	WorldEnd
FrameEnd
{{ end }}`

const ribLineItems = 16

type ribFrame struct {
	Index        int
	Display      string
	Driver       string
	Quality      int
	ShutterOpen  string
	ShutterClose string
	FOV          string
	Distance     string
	Tilt         string
	Angle        string
	Colour       string
	Surface      string
}

type ribScene struct {
	Width, Height int
	NumVerts      []string
	Indices       []string
	Points        []string
	Frames        []*ribFrame
}

// RIBEmitter writes the animation as a RenderMan scene file and
// optionally hands it to a RenderMan compliant renderer.
type RIBEmitter struct {
	Path         string
	TemplatePath string
	Renderer     string
	Surface      string
	Verbose      bool

	scene *ribScene
	mesh  *Mesh
}

func NewRIBEmitter(path string, renderer string, verbose bool) *RIBEmitter {
	return &RIBEmitter{
		Path:     path,
		Renderer: renderer,
		Surface:  "KMVenus",
		Verbose:  verbose,
	}
}

func (e *RIBEmitter) BeginScene(width, height int) error {
	e.scene = &ribScene{Width: width, Height: height}
	e.mesh = nil
	return nil
}

func (e *RIBEmitter) SubmitMesh(mesh *Mesh) (MeshHandle, error) {
	if e.scene == nil {
		return 0, fmt.Errorf("rib: SubmitMesh called before BeginScene")
	}
	if e.mesh != nil {
		return 0, fmt.Errorf("rib: only one mesh per scene is supported")
	}
	if len(mesh.Faces) == 0 {
		return 0, fmt.Errorf("rib: mesh %dx%d has no faces", mesh.GridWidth, mesh.GridHeight)
	}
	e.mesh = mesh
	return MeshHandle(1), nil
}

func (e *RIBEmitter) RenderFrame(handle MeshHandle, frame *FrameRequest) error {
	if e.scene == nil || e.mesh == nil || handle != 1 {
		return fmt.Errorf("rib: unknown mesh handle %d", handle)
	}

	c := frame.Colour
	e.scene.Frames = append(e.scene.Frames, &ribFrame{
		Index:        frame.Index,
		Display:      frame.OutputPath,
		Driver:       strings.ToLower(frame.Format),
		Quality:      frame.Quality,
		ShutterOpen:  ribFloat(frame.Camera.ShutterOpen),
		ShutterClose: ribFloat(frame.Camera.ShutterClose),
		FOV:          ribFloat(frame.Camera.FOV),
		Distance:     ribFloat(frame.Camera.Distance),
		Tilt:         ribFloat(frame.Camera.Tilt),
		Angle:        ribFloat(frame.Angle),
		Colour:       fmt.Sprintf("%s %s %s", ribFloat(c[0]), ribFloat(c[1]), ribFloat(c[2])),
		Surface:      e.Surface,
	})
	return nil
}

// EndScene writes the scene file and runs the renderer, if any.
func (e *RIBEmitter) EndScene() error {
	if e.scene == nil || e.mesh == nil {
		return fmt.Errorf("rib: no scene to write")
	}
	e.fillMesh()

	tmpl, err := e.template()
	if err != nil {
		return err
	}

	f, err := os.Create(e.Path)
	if err != nil {
		return fmt.Errorf("rib: %v", err)
	}
	w := bufio.NewWriter(f)
	err = tmpl.Execute(w, make(jet.VarMap), e.scene)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("rib: writing %s: %v", e.Path, err)
	}

	if e.Verbose {
		log.Printf("rib: wrote %s with %d frames", e.Path, len(e.scene.Frames))
	}
	e.scene = nil

	if len(e.Renderer) > 0 {
		return e.render()
	}
	return nil
}

func (e *RIBEmitter) template() (*jet.Template, error) {
	var loader jet.Loader
	name := ribTemplateName
	if len(e.TemplatePath) > 0 {
		loader = jet.NewOSFileSystemLoader(filepath.Dir(e.TemplatePath))
		name = "/" + filepath.Base(e.TemplatePath)
	} else {
		mem := jet.NewInMemLoader()
		mem.Set(ribTemplateName, defaultRIBTemplate)
		loader = mem
	}

	view := jet.NewSet(loader, jet.WithSafeWriter(func(w io.Writer, b []byte) {
		w.Write(b)
	}))
	tmpl, err := view.GetTemplate(name)
	if err != nil {
		return nil, fmt.Errorf("rib: template error: %v", err)
	}
	return tmpl, nil
}

func (e *RIBEmitter) fillMesh() {
	s := e.scene
	s.NumVerts = s.NumVerts[:0]
	s.Indices = s.Indices[:0]
	s.Points = s.Points[:0]

	var line []string
	for i := range e.mesh.Faces {
		line = append(line, "4")
		if len(line) == ribLineItems || i == len(e.mesh.Faces)-1 {
			s.NumVerts = append(s.NumVerts, strings.Join(line, " "))
			line = line[:0]
		}
	}

	for i, face := range e.mesh.Faces {
		for _, idx := range face {
			line = append(line, strconv.Itoa(idx))
		}
		if len(line) >= ribLineItems || i == len(e.mesh.Faces)-1 {
			s.Indices = append(s.Indices, strings.Join(line, " "))
			line = line[:0]
		}
	}

	for _, v := range e.mesh.Vertices {
		s.Points = append(s.Points, fmt.Sprintf("%s %s %s", ribFloat(v[0]), ribFloat(v[1]), ribFloat(v[2])))
	}
}

func (e *RIBEmitter) render() error {
	cmd := exec.Command(e.Renderer, e.Path)
	out, err := cmd.CombinedOutput()
	if e.Verbose || err != nil {
		for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			if len(line) > 0 {
				log.Println(e.Renderer, line)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("rib: renderer %s failed on %s: %v", e.Renderer, e.Path, err)
	}
	return nil
}

func ribFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
