package eiger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"diffraxia-go/internal/container"
	"diffraxia-go/internal/progress"
)

// ConvertStream writes one TIFF per frame group received on in, named by arrival
// order. It returns when in is closed, after *opts.Limit frames when set, or when
// ctx is done. opts.Group is ignored.
func (c *Converter) ConvertStream(ctx context.Context, in <-chan container.Group, opts ConvertOptions) (ConvertResult, error) {
	var res ConvertResult
	total := 0
	if opts.Limit != nil {
		if *opts.Limit < 0 {
			return res, &LimitError{Limit: *opts.Limit}
		}
		total = *opts.Limit
	}
	obs := progress.Or(c.Observer)
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return res, err
	}

	start := time.Now()
	var errs []error
	finish := func() (ConvertResult, error) {
		err := errors.Join(errs...)
		obs.Observe(progress.Event{
			Stage:    progress.StageStream,
			Index:    len(res.Written),
			Total:    total,
			Output:   opts.OutputDir,
			Err:      err,
			Elapsed:  time.Since(start),
			Finished: true,
		})
		return res, err
	}

	for opts.Limit == nil || res.Frames < *opts.Limit {
		var frame container.Group
		var ok bool
		select {
		case <-ctx.Done():
			return finish()
		case frame, ok = <-in:
		}
		if !ok {
			return finish()
		}

		idx := res.Frames
		res.Frames++
		out := filepath.Join(opts.OutputDir, FrameFileName(idx))
		err := c.convertFrame(frame, out)
		obs.Observe(progress.Event{
			Stage:   progress.StageStream,
			Index:   idx + 1,
			Total:   total,
			Source:  frame.Name(),
			Output:  out,
			Err:     err,
			Elapsed: time.Since(start),
		})
		if err != nil {
			res.Failed++
			if c.Policy == AbortOnError {
				return res, err
			}
			errs = append(errs, err)
			continue
		}
		res.Written = append(res.Written, out)
	}
	return finish()
}

func (c *Converter) convertFrame(frame container.Group, out string) error {
	decoded, err := c.Decoder.DecodeFrame(frame)
	if err != nil {
		return fmt.Errorf("image %s: %w", frame.Name(), err)
	}
	return c.Write(out, decoded)
}
