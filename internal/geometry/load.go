package geometry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"diffraxia-go/internal/container"
	"diffraxia-go/internal/h5"
)

// Config mirrors the instrument section of a HEXRD configuration. Keys that are
// not needed for pixel angles (oscillation stage, distortion, ...) are ignored.
type Config struct {
	Beam      BeamConfig                `yaml:"beam" toml:"beam"`
	Detectors map[string]DetectorConfig `yaml:"-" toml:"detectors"`
}

type BeamConfig struct {
	Energy float64          `yaml:"energy" toml:"energy"`
	Vector BeamVectorConfig `yaml:"vector" toml:"vector"`
}

type BeamVectorConfig struct {
	Azimuth    *float64 `yaml:"azimuth" toml:"azimuth"`
	PolarAngle *float64 `yaml:"polar_angle" toml:"polar_angle"`
}

type DetectorConfig struct {
	Pixels    PixelsConfig    `yaml:"pixels" toml:"pixels"`
	Transform TransformConfig `yaml:"transform" toml:"transform"`
}

type PixelsConfig struct {
	Rows    int       `yaml:"rows" toml:"rows"`
	Columns int       `yaml:"columns" toml:"columns"`
	Size    []float64 `yaml:"size" toml:"size"`
}

type TransformConfig struct {
	Tilt        []float64 `yaml:"tilt" toml:"tilt"`
	Translation []float64 `yaml:"translation" toml:"translation"`
}

// Load reads an instrument file, choosing the format from its extension.
func Load(path string) (*Planar, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hexrd", ".h5", ".hdf5":
		return LoadHDF5(path)
	case ".yml", ".yaml":
		return LoadYAML(path)
	case ".toml":
		return LoadTOML(path)
	default:
		return nil, fmt.Errorf("unsupported instrument file %q: want .hexrd, .h5, .yml, .yaml or .toml", path)
	}
}

func LoadHDF5(path string) (*Planar, error) {
	f, err := h5.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := FromContainer(f.Root())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// FromContainer reads a HEXRD instrument tree. The tree may be rooted at an
// "instrument" group or be the instrument group itself.
func FromContainer(root container.Group) (*Planar, error) {
	inst := root
	if root.Has("instrument") {
		g, err := root.Group("instrument")
		if err != nil {
			return nil, err
		}
		inst = g
	}

	beam := Beam{Azimuth: DefaultAzimuth, PolarAngle: DefaultPolarAngle}
	if inst.Has("beam") {
		g, err := inst.Group("beam")
		if err != nil {
			return nil, err
		}
		if beam, err = readBeam(g); err != nil {
			return nil, fmt.Errorf("beam: %w", err)
		}
	}
	p := NewPlanar(beam)

	dets, err := container.Lookup(inst, "detectors")
	if err != nil {
		return nil, err
	}
	names, err := dets.Keys()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		g, err := dets.Group(name)
		if err != nil {
			return nil, fmt.Errorf("detector %q: %w", name, err)
		}
		cfg, err := readDetector(g)
		if err != nil {
			return nil, fmt.Errorf("detector %q: %w", name, err)
		}
		if err := addDetector(p, name, cfg); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func readBeam(g container.Group) (Beam, error) {
	beam := Beam{Azimuth: DefaultAzimuth, PolarAngle: DefaultPolarAngle}
	if g.Has("energy") {
		v, err := readScalar(g, "energy")
		if err != nil {
			return beam, err
		}
		beam.Energy = v
	}
	if !g.Has("vector") {
		return beam, nil
	}
	vec, err := g.Group("vector")
	if err != nil {
		return beam, err
	}
	if vec.Has("azimuth") {
		if beam.Azimuth, err = readScalar(vec, "azimuth"); err != nil {
			return beam, err
		}
	}
	if vec.Has("polar_angle") {
		if beam.PolarAngle, err = readScalar(vec, "polar_angle"); err != nil {
			return beam, err
		}
	}
	return beam, nil
}

func readScalar(g container.Group, name string) (float64, error) {
	v, err := container.ReadFloats(g, name)
	if err != nil {
		return 0, err
	}
	if len(v) != 1 {
		return 0, fmt.Errorf("%s: expected scalar, got %d values", name, len(v))
	}
	return v[0], nil
}

func readDetector(g container.Group) (DetectorConfig, error) {
	var cfg DetectorConfig
	pixels, err := container.Lookup(g, "pixels")
	if err != nil {
		return cfg, err
	}
	if cfg.Pixels.Rows, err = container.ReadInt(pixels, "rows"); err != nil {
		return cfg, err
	}
	if cfg.Pixels.Columns, err = container.ReadInt(pixels, "columns"); err != nil {
		return cfg, err
	}
	if cfg.Pixels.Size, err = container.ReadFloats(pixels, "size"); err != nil {
		return cfg, err
	}

	transform, err := container.Lookup(g, "transform")
	if err != nil {
		return cfg, err
	}
	if cfg.Transform.Tilt, err = container.ReadFloats(transform, "tilt"); err != nil {
		return cfg, err
	}
	if cfg.Transform.Translation, err = container.ReadFloats(transform, "translation"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadYAML reads a HEXRD instrument config. Detector order follows the file.
func LoadYAML(path string) (*Planar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Config    `yaml:",inline"`
		Detectors yaml.Node `yaml:"detectors"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Detectors.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: detectors must be a mapping", path)
	}

	p := NewPlanar(doc.Beam.beam())
	nodes := doc.Detectors.Content
	for i := 0; i+1 < len(nodes); i += 2 {
		name := nodes[i].Value
		var cfg DetectorConfig
		if err := nodes[i+1].Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%s: detector %q: %w", path, name, err)
		}
		if err := addDetector(p, name, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return p, nil
}

// LoadTOML reads an instrument in the HEXRD layout written as TOML. TOML tables
// carry no order, so detectors are sorted by name.
func LoadTOML(path string) (*Planar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.Instrument()
}

// Instrument builds a Planar instrument from cfg with detectors in name order.
func (cfg Config) Instrument() (*Planar, error) {
	p := NewPlanar(cfg.Beam.beam())
	names := make([]string, 0, len(cfg.Detectors))
	for name := range cfg.Detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := addDetector(p, name, cfg.Detectors[name]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (b BeamConfig) beam() Beam {
	beam := Beam{Energy: b.Energy, Azimuth: DefaultAzimuth, PolarAngle: DefaultPolarAngle}
	if b.Vector.Azimuth != nil {
		beam.Azimuth = *b.Vector.Azimuth
	}
	if b.Vector.PolarAngle != nil {
		beam.PolarAngle = *b.Vector.PolarAngle
	}
	return beam
}

func addDetector(p *Planar, name string, cfg DetectorConfig) error {
	d, err := cfg.detector()
	if err != nil {
		return fmt.Errorf("detector %q: %w", name, err)
	}
	return p.AddDetector(name, d)
}

func (cfg DetectorConfig) detector() (Detector, error) {
	d := Detector{Rows: cfg.Pixels.Rows, Cols: cfg.Pixels.Columns}
	switch len(cfg.Pixels.Size) {
	case 1:
		d.PixelSize = [2]float64{cfg.Pixels.Size[0], cfg.Pixels.Size[0]}
	case 2:
		d.PixelSize = [2]float64{cfg.Pixels.Size[0], cfg.Pixels.Size[1]}
	default:
		return d, errors.New("pixels.size must hold one or two values")
	}
	var err error
	if d.Tilt, err = vec3("transform.tilt", cfg.Transform.Tilt); err != nil {
		return d, err
	}
	if d.Translation, err = vec3("transform.translation", cfg.Transform.Translation); err != nil {
		return d, err
	}
	return d, nil
}

func vec3(name string, v []float64) (r3.Vec, error) {
	if len(v) != 3 {
		return r3.Vec{}, fmt.Errorf("%s must hold three values, got %d", name, len(v))
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}
