// Package integrate reduces detector images to 1D intensity versus 2θ patterns.
package integrate

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"diffraxia-go/internal/geometry"
	"diffraxia-go/internal/types"
)

// Default binning: 2000 bins over [0, 20] degrees.
const (
	DefaultMin = 0.0
	DefaultMax = 20.0
	DefaultN   = 2000
)

// Bins is a uniform binning of [Min, Max] into N bins, in degrees.
type Bins struct {
	Min, Max float64
	N        int
}

func DefaultBins() Bins {
	return Bins{Min: DefaultMin, Max: DefaultMax, N: DefaultN}
}

func (b Bins) Validate() error {
	switch {
	case b.N < 1:
		return &BinsError{Bins: b, Reason: "need at least one bin"}
	case math.IsNaN(b.Min) || math.IsInf(b.Min, 0) || math.IsNaN(b.Max) || math.IsInf(b.Max, 0):
		return &BinsError{Bins: b, Reason: "range must be finite"}
	case b.Min >= b.Max:
		return &BinsError{Bins: b, Reason: "min must be below max"}
	}
	return nil
}

// Edges returns the N+1 bin edges. The last edge is exactly Max.
func (b Bins) Edges() []float64 {
	edges := floats.Span(make([]float64, b.N+1), b.Min, b.Max)
	edges[b.N] = b.Max
	return edges
}

// Centers returns the N bin midpoints.
func (b Bins) Centers() []float64 {
	edges := b.Edges()
	centers := make([]float64, b.N)
	for i := range centers {
		centers[i] = 0.5 * (edges[i] + edges[i+1])
	}
	return centers
}

// index returns the bin of x, or -1 if x is outside [Min, Max]. Bins are
// half-open except the last one, which includes Max.
func (b Bins) index(x float64, edges []float64) int {
	if !(x >= b.Min && x <= b.Max) {
		return -1
	}
	i := int((x - b.Min) * (float64(b.N) / (b.Max - b.Min)))
	if i == b.N {
		i--
	}
	if x < edges[i] {
		i--
	} else if i != b.N-1 && x >= edges[i+1] {
		i++
	}
	return i
}

// TwoThetaMap returns the 2θ angle in degrees of every pixel of the first
// detector of instr.
func TwoThetaMap(instr geometry.Instrument) (*mat.Dense, error) {
	names := instr.DetectorNames()
	if len(names) == 0 {
		return nil, ErrNoDetectors
	}
	tth, _, err := instr.PixelAngles(names[0])
	if err != nil {
		return nil, err
	}
	tth.Scale(180/math.Pi, tth)
	return tth, nil
}

// Radial sums the pixel intensities of img into the 2θ bins of b. Pixels with a
// non-finite angle or an angle outside [b.Min, b.Max] are skipped.
func Radial(img types.Image, tth *mat.Dense, b Bins) (types.Pattern, error) {
	if err := b.Validate(); err != nil {
		return types.Pattern{}, err
	}
	rows, cols := tth.Dims()
	if img.Rows != rows || img.Cols != cols || len(img.Pix) != rows*cols {
		return types.Pattern{}, &ShapeMismatchError{Image: img.Shape(), AngleMap: [2]int{rows, cols}}
	}

	edges := b.Edges()
	sums := make([]float64, b.N)

	raw := tth.RawMatrix()
	for r := 0; r < rows; r++ {
		angles := raw.Data[r*raw.Stride : r*raw.Stride+cols]
		for c, a := range angles {
			if math.IsNaN(a) || math.IsInf(a, 0) {
				continue
			}
			if i := b.index(a, edges); i >= 0 {
				sums[i] += img.Pix[r*cols+c]
			}
		}
	}

	return types.Pattern{TwoTheta: b.Centers(), Intensity: sums}, nil
}
