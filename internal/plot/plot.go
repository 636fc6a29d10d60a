// Package plot renders integrated patterns as PNG line plots.
package plot

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"diffraxia-go/internal/types"
)

const (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// EncodePattern draws p as intensity versus 2θ and writes it to w as PNG. Bins
// with a non-finite intensity are left out of the line.
func EncodePattern(w io.Writer, title string, p types.Pattern) error {
	pts := make(plotter.XYs, 0, p.Len())
	for i, x := range p.TwoTheta {
		y := p.Intensity[i]
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	if len(pts) == 0 {
		return fmt.Errorf("pattern %q has no finite points", title)
	}

	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = "2θ (deg)"
	pl.Y.Label.Text = "Intensity (sum)"
	pl.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(1)
	pl.Add(line)

	img := vgimg.New(Width, Height)
	pl.Draw(draw.New(img))

	buf := &bytes.Buffer{}
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, img.Image()); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// WritePattern renders p into the PNG file path.
func WritePattern(path, title string, p types.Pattern) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodePattern(f, title, p); err != nil {
		_ = f.Close()
		return fmt.Errorf("plot %s: %w", path, err)
	}
	return f.Close()
}
