// Package simulator produces a synthetic detector stream for --debug runs.
package simulator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"diffraxia-go/internal/eiger"
	"diffraxia-go/internal/ingest"
	"diffraxia-go/internal/types"
)

type Options struct {
	Rows    int
	Cols    int
	AcqRate float64
	// Frames stops the series after this many images; 0 runs until ctx is done.
	Frames  int
	Channel string
	Seed    int64
}

// Stream sends encoded start, image and end messages at AcqRate. The channel is
// closed when the series ends or ctx is done.
func Stream(ctx context.Context, opts Options) <-chan []byte {
	out := make(chan []byte)
	if opts.Channel == "" {
		opts.Channel = eiger.DifferenceChannel
	}
	if opts.AcqRate <= 0 {
		opts.AcqRate = 10
	}
	go func() {
		defer close(out)

		send := func(b []byte, err error) bool {
			if err != nil {
				return false
			}
			select {
			case out <- b:
				return true
			case <-ctx.Done():
				return false
			}
		}

		frameInterval := time.Duration(float64(time.Second) / opts.AcqRate)
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()

		rng := rand.New(rand.NewSource(opts.Seed))
		base := rings(opts.Rows, opts.Cols)
		const seriesID = 1

		if !send(ingest.EncodeStart(seriesID)) {
			return
		}
		for imageID := 0; opts.Frames == 0 || imageID < opts.Frames; imageID++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			f := Frame(rng, base, opts.Rows, opts.Cols)
			if !send(ingest.EncodeImage(seriesID, imageID, opts.Channel, f)) {
				return
			}
		}
		send(ingest.EncodeEnd(seriesID))
	}()

	return out
}

// rings builds a noiseless powder image: concentric Gaussian rings around the
// detector center over a flat background.
func rings(rows, cols int) []float64 {
	base := make([]float64, rows*cols)
	radii := []float64{0.2, 0.45, 0.7}
	centerX := float64(cols) / 2.0
	centerY := float64(rows) / 2.0
	scale := math.Min(centerX, centerY)
	width := scale / 40
	if width < 0.5 {
		width = 0.5
	}
	for i := range base {
		dx := float64(i%cols) + 0.5 - centerX
		dy := float64(i/cols) + 0.5 - centerY
		r := math.Sqrt(dx*dx + dy*dy)
		v := 10.0
		for k, rr := range radii {
			d := (r - rr*scale) / width
			v += 1000 / float64(k+1) * math.Exp(-d*d/2)
		}
		base[i] = v
	}
	return base
}

// Frame draws one noisy frame from base. One pixel is marked saturated so the
// scrubbing path sees real input.
func Frame(rng *rand.Rand, base []float64, rows, cols int) types.Frame {
	f := types.NewFrame(rows, cols)
	for i, b := range base {
		val := b + rng.NormFloat64()*math.Sqrt(b)
		if val < 0 {
			val = 0
		}
		f.Pix[i] = uint32(val)
	}
	if len(f.Pix) > 0 {
		f.Pix[rng.Intn(len(f.Pix))] = types.Saturated
	}
	return f
}
