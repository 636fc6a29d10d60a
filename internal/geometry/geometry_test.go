package geometry

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"diffraxia-go/internal/container"
)

const tol = 1e-9

func TestBeamVectorDefault(t *testing.T) {
	v := Beam{Azimuth: DefaultAzimuth, PolarAngle: DefaultPolarAngle}.Vector()
	if math.Abs(v.X) > tol || math.Abs(v.Y) > tol || math.Abs(v.Z+1) > tol {
		t.Fatalf("default beam should point along -Z, got %v", v)
	}
}

func TestBeamCentredPixelHasZeroTwoTheta(t *testing.T) {
	p := NewPlanar(Beam{Azimuth: DefaultAzimuth, PolarAngle: DefaultPolarAngle})
	err := p.AddDetector("panel", Detector{
		Rows:        3,
		Cols:        3,
		PixelSize:   [2]float64{0.1, 0.1},
		Translation: r3.Vec{Z: -1000},
	})
	if err != nil {
		t.Fatalf("AddDetector error: %v", err)
	}

	tth, eta, err := p.PixelAngles("panel")
	if err != nil {
		t.Fatalf("PixelAngles error: %v", err)
	}
	if r, c := tth.Dims(); r != 3 || c != 3 {
		t.Fatalf("unexpected dims %dx%d", r, c)
	}
	if got := tth.At(1, 1); math.Abs(got) > tol {
		t.Fatalf("center pixel 2theta = %g, want 0", got)
	}

	// Right neighbour sits 0.1 mm along +X at 1000 mm.
	want := math.Atan(0.1 / 1000)
	if got := tth.At(1, 2); math.Abs(got-want) > tol {
		t.Fatalf("right pixel 2theta = %g, want %g", got, want)
	}
	if got := eta.At(1, 2); math.Abs(got) > tol {
		t.Fatalf("right pixel eta = %g, want 0", got)
	}
	// Upper neighbour is along +Y, eta = 90 degrees.
	if got := eta.At(0, 1); math.Abs(got-math.Pi/2) > tol {
		t.Fatalf("upper pixel eta = %g, want pi/2", got)
	}
	// Corners are symmetric.
	if math.Abs(tth.At(0, 0)-tth.At(2, 2)) > tol {
		t.Fatalf("corner 2theta not symmetric: %g vs %g", tth.At(0, 0), tth.At(2, 2))
	}
}

func TestTiltedDetector(t *testing.T) {
	p := NewPlanar(Beam{Azimuth: DefaultAzimuth, PolarAngle: DefaultPolarAngle})
	// Rotating 90 degrees about Y turns the panel to face the beam edge on; the
	// center pixel still sits on the beam axis.
	d := Detector{
		Rows:        1,
		Cols:        3,
		PixelSize:   [2]float64{1, 1},
		Tilt:        r3.Vec{Y: math.Pi / 2},
		Translation: r3.Vec{Z: -100},
	}
	if err := p.AddDetector("tilted", d); err != nil {
		t.Fatalf("AddDetector error: %v", err)
	}
	c := d.Center(0, 2)
	if math.Abs(c.X) > 1e-9 || math.Abs(c.Z-(-101)) > 1e-9 {
		t.Fatalf("tilted pixel center = %v, want (0, 0, -101)", c)
	}
	tth, _, err := p.PixelAngles("tilted")
	if err != nil {
		t.Fatalf("PixelAngles error: %v", err)
	}
	for j := 0; j < 3; j++ {
		if math.Abs(tth.At(0, j)) > 1e-9 {
			t.Fatalf("pixel %d 2theta = %g, want 0", j, tth.At(0, j))
		}
	}
}

func TestUnknownDetector(t *testing.T) {
	p := NewPlanar(Beam{})
	if _, _, err := p.PixelAngles("missing"); !errors.Is(err, ErrUnknownDetector) {
		t.Fatalf("expected ErrUnknownDetector, got %v", err)
	}
}

func TestAddDetectorValidates(t *testing.T) {
	p := NewPlanar(Beam{})
	if err := p.AddDetector("bad", Detector{Rows: 0, Cols: 2, PixelSize: [2]float64{1, 1}}); err == nil {
		t.Fatalf("expected error for empty grid")
	}
	if err := p.AddDetector("bad", Detector{Rows: 2, Cols: 2}); err == nil {
		t.Fatalf("expected error for zero pixel size")
	}
}

func instrumentTree() *container.Mem {
	root := container.NewMem("/")
	inst := root.AddGroup("instrument")
	beam := inst.AddGroup("beam")
	beam.AddFloats("energy", 65.35)
	vec := beam.AddGroup("vector")
	vec.AddFloats("azimuth", 90)
	vec.AddFloats("polar_angle", 90)

	dets := inst.AddGroup("detectors")
	for _, name := range []string{"ge2", "ge1"} {
		det := dets.AddGroup(name)
		px := det.AddGroup("pixels")
		px.AddInts("rows", 4)
		px.AddInts("columns", 5)
		px.AddFloats("size", 0.2, 0.1)
		tr := det.AddGroup("transform")
		tr.AddFloats("tilt", 0, 0, 0)
		tr.AddFloats("translation", 0, 0, -500)
	}
	return root
}

func TestFromContainer(t *testing.T) {
	p, err := FromContainer(instrumentTree())
	if err != nil {
		t.Fatalf("FromContainer error: %v", err)
	}
	if !reflect.DeepEqual(p.DetectorNames(), []string{"ge2", "ge1"}) {
		t.Fatalf("unexpected detector order %v", p.DetectorNames())
	}
	d, _ := p.Detector("ge1")
	if d.Rows != 4 || d.Cols != 5 || d.PixelSize != [2]float64{0.2, 0.1} || d.Translation.Z != -500 {
		t.Fatalf("unexpected detector %+v", d)
	}
	if p.Beam.Energy != 65.35 {
		t.Fatalf("unexpected beam %+v", p.Beam)
	}
}

func TestFromContainerMissingDetectors(t *testing.T) {
	root := container.NewMem("/")
	root.AddGroup("instrument").AddGroup("beam")
	if _, err := FromContainer(root); !errors.Is(err, container.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

const yamlInstrument = `beam:
  energy: 65.351
  vector:
    azimuth: 90.0
    polar_angle: 90.0
oscillation_stage:
  chi: 0.0
  translation: [0.0, 0.0, 0.0]
detectors:
  zeta:
    pixels:
      rows: 2
      columns: 3
      size: [0.2, 0.2]
    transform:
      tilt: [0.0, 0.0, 0.0]
      translation: [0.0, 0.0, -1000.0]
  alpha:
    pixels:
      rows: 4
      columns: 4
      size: [0.1]
    transform:
      tilt: [0.0, 0.0, 0.0]
      translation: [10.0, 0.0, -1000.0]
`

const tomlInstrument = `[beam]
energy = 65.351

[beam.vector]
azimuth = 90.0
polar_angle = 90.0

[detectors.zeta.pixels]
rows = 2
columns = 3
size = [0.2, 0.2]

[detectors.zeta.transform]
tilt = [0.0, 0.0, 0.0]
translation = [0.0, 0.0, -1000.0]

[detectors.alpha.pixels]
rows = 4
columns = 4
size = [0.1]

[detectors.alpha.transform]
tilt = [0.0, 0.0, 0.0]
translation = [10.0, 0.0, -1000.0]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	p, err := Load(writeFile(t, "instrument.yml", yamlInstrument))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !reflect.DeepEqual(p.DetectorNames(), []string{"zeta", "alpha"}) {
		t.Fatalf("YAML detector order not kept: %v", p.DetectorNames())
	}
	d, _ := p.Detector("alpha")
	if d.PixelSize != [2]float64{0.1, 0.1} || d.Translation.X != 10 {
		t.Fatalf("unexpected detector %+v", d)
	}
	if p.Beam.Energy != 65.351 {
		t.Fatalf("unexpected beam %+v", p.Beam)
	}
}

func TestLoadTOML(t *testing.T) {
	p, err := Load(writeFile(t, "instrument.toml", tomlInstrument))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !reflect.DeepEqual(p.DetectorNames(), []string{"alpha", "zeta"}) {
		t.Fatalf("TOML detectors not sorted: %v", p.DetectorNames())
	}
	d, _ := p.Detector("zeta")
	if d.Rows != 2 || d.Cols != 3 || d.Translation.Z != -1000 {
		t.Fatalf("unexpected detector %+v", d)
	}
}

func TestLoadRejectsBadTransform(t *testing.T) {
	bad := `detectors:
  d:
    pixels: {rows: 1, columns: 1, size: [1, 1]}
    transform: {tilt: [0, 0], translation: [0, 0, -1]}
`
	if _, err := Load(writeFile(t, "bad.yaml", bad)); err == nil {
		t.Fatalf("expected error for two-element tilt")
	}
}

func TestLoadUnknownExtension(t *testing.T) {
	if _, err := Load("instrument.json"); err == nil {
		t.Fatalf("expected error for unknown extension")
	}
}
