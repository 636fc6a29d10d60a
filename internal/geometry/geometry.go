// Package geometry models a calibrated diffraction instrument: a beam and one or
// more planar area detectors placed in the lab frame. Instruments are loaded from
// HEXRD files (.hexrd/.h5 HDF5 or .yml/.yaml) or from TOML with the same layout.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Instrument yields per-pixel scattering angles for each detector.
type Instrument interface {
	// DetectorNames returns the detector names in file order.
	DetectorNames() []string
	// PixelAngles returns the polar (2θ) and azimuthal (η) angle of every pixel
	// center of the named detector, in radians, shaped rows x columns.
	PixelAngles(name string) (tth, eta *mat.Dense, err error)
}

var ErrUnknownDetector = errors.New("unknown detector")

// Default beam direction angles in degrees; they give a beam along -Z.
const (
	DefaultAzimuth    = 90.0
	DefaultPolarAngle = 90.0
)

type Beam struct {
	Energy     float64 // keV
	Azimuth    float64 // degrees
	PolarAngle float64 // degrees
}

// Vector returns the unit propagation direction of the beam.
func (b Beam) Vector() r3.Vec {
	theta := b.Azimuth * math.Pi / 180
	phi := b.PolarAngle * math.Pi / 180
	return r3.Vec{
		X: -math.Sin(phi) * math.Cos(theta),
		Y: -math.Cos(phi),
		Z: -math.Sin(phi) * math.Sin(theta),
	}
}

// Detector is a flat pixel array. Tilt is an exponential map (rotation axis
// scaled by the angle in radians); Translation is the detector center in the lab
// frame. Lengths are in mm.
type Detector struct {
	Rows, Cols  int
	PixelSize   [2]float64 // row pitch, column pitch
	Tilt        r3.Vec
	Translation r3.Vec
}

func (d Detector) validate() error {
	if d.Rows <= 0 || d.Cols <= 0 {
		return fmt.Errorf("invalid pixel grid %dx%d", d.Rows, d.Cols)
	}
	if !(d.PixelSize[0] > 0) || !(d.PixelSize[1] > 0) {
		return fmt.Errorf("invalid pixel size %v", d.PixelSize)
	}
	return nil
}

func (d Detector) rotation() r3.Rotation {
	angle := r3.Norm(d.Tilt)
	if angle == 0 {
		return r3.NewRotation(0, r3.Vec{Z: 1})
	}
	return r3.NewRotation(angle, r3.Unit(d.Tilt))
}

// Center returns the lab position of the center of pixel (row, col).
func (d Detector) Center(row, col int) r3.Vec {
	x := d.PixelSize[1] * (float64(col) + 0.5 - 0.5*float64(d.Cols))
	y := d.PixelSize[0] * (0.5*float64(d.Rows) - float64(row) - 0.5)
	return r3.Add(d.rotation().Rotate(r3.Vec{X: x, Y: y}), d.Translation)
}

// Planar is an instrument of flat detectors with the sample at the origin.
type Planar struct {
	Beam Beam
	// EtaVector fixes η = 0. It is orthogonalized against the beam.
	EtaVector r3.Vec

	names     []string
	detectors map[string]Detector
}

func NewPlanar(beam Beam) *Planar {
	return &Planar{
		Beam:      beam,
		EtaVector: r3.Vec{X: 1},
		detectors: make(map[string]Detector),
	}
}

// AddDetector validates d and appends it. Adding an existing name replaces it in
// place.
func (p *Planar) AddDetector(name string, d Detector) error {
	if err := d.validate(); err != nil {
		return fmt.Errorf("detector %q: %w", name, err)
	}
	if _, ok := p.detectors[name]; !ok {
		p.names = append(p.names, name)
	}
	p.detectors[name] = d
	return nil
}

func (p *Planar) Detector(name string) (Detector, bool) {
	d, ok := p.detectors[name]
	return d, ok
}

func (p *Planar) DetectorNames() []string {
	return append([]string(nil), p.names...)
}

// beamFrame returns the unit axes of the frame in which η is measured: Z points
// against the beam and X is the eta vector projected onto the detector-facing
// plane.
func (p *Planar) beamFrame() (x, y, z r3.Vec, err error) {
	z = r3.Scale(-1, r3.Unit(p.Beam.Vector()))
	x = r3.Sub(p.EtaVector, r3.Scale(r3.Dot(p.EtaVector, z), z))
	if r3.Norm(x) < 1e-12 {
		return x, y, z, errors.New("eta vector is parallel to the beam")
	}
	x = r3.Unit(x)
	y = r3.Cross(z, x)
	return x, y, z, nil
}

func (p *Planar) PixelAngles(name string) (tth, eta *mat.Dense, err error) {
	d, ok := p.detectors[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownDetector, name)
	}
	bx, by, bz, err := p.beamFrame()
	if err != nil {
		return nil, nil, err
	}
	bvec := r3.Scale(-1, bz)

	tth = mat.NewDense(d.Rows, d.Cols, nil)
	eta = mat.NewDense(d.Rows, d.Cols, nil)
	for i := 0; i < d.Rows; i++ {
		for j := 0; j < d.Cols; j++ {
			pos := d.Center(i, j)
			n := r3.Norm(pos)
			if n == 0 {
				tth.Set(i, j, math.NaN())
				eta.Set(i, j, math.NaN())
				continue
			}
			u := r3.Scale(1/n, pos)
			c := math.Max(-1, math.Min(1, r3.Dot(u, bvec)))
			tth.Set(i, j, math.Acos(c))
			eta.Set(i, j, math.Atan2(r3.Dot(u, by), r3.Dot(u, bx)))
		}
	}
	return tth, eta, nil
}
