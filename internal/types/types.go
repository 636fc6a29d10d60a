package types

import "math"

// Saturated is the Eiger marker for saturated or defective pixels in a uint32 frame.
const Saturated = math.MaxUint32

// Frame is a decoded detector frame, row-major.
type Frame struct {
	Rows int
	Cols int
	Pix  []uint32
}

func NewFrame(rows, cols int) Frame {
	return Frame{Rows: rows, Cols: cols, Pix: make([]uint32, rows*cols)}
}

func (f Frame) At(r, c int) uint32 {
	return f.Pix[r*f.Cols+c]
}

// Image converts the frame to float intensities.
func (f Frame) Image() Image {
	img := Image{Rows: f.Rows, Cols: f.Cols, Pix: make([]float64, len(f.Pix))}
	for i, v := range f.Pix {
		img.Pix[i] = float64(v)
	}
	return img
}

// ScrubSaturated replaces every Saturated value with 0 and returns the number of
// replaced pixels. Calling it twice is a no-op the second time.
func ScrubSaturated(pix []uint32) int {
	n := 0
	for i, v := range pix {
		if v == Saturated {
			pix[i] = 0
			n++
		}
	}
	return n
}

// Image is a single-channel intensity image, row-major.
type Image struct {
	Rows int
	Cols int
	Pix  []float64
}

func (img Image) Shape() [2]int {
	return [2]int{img.Rows, img.Cols}
}

// Scale returns a copy of img with every pixel multiplied by k.
func (img Image) Scale(k float64) Image {
	out := Image{Rows: img.Rows, Cols: img.Cols, Pix: make([]float64, len(img.Pix))}
	for i, v := range img.Pix {
		out.Pix[i] = v * k
	}
	return out
}

// Pattern is a 1D powder pattern: summed intensity per 2θ bin, bin centers in
// degrees.
type Pattern struct {
	TwoTheta  []float64
	Intensity []float64
}

func (p Pattern) Len() int { return len(p.TwoTheta) }
