package integrate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"diffraxia-go/internal/eiger"
	"diffraxia-go/internal/geometry"
	"diffraxia-go/internal/output"
	"diffraxia-go/internal/plot"
	"diffraxia-go/internal/progress"
	"diffraxia-go/internal/tiffio"
	"diffraxia-go/internal/types"
)

type Options struct {
	Instrument   string
	Folder       string
	Pattern      string
	Bins         Bins
	OutputPrefix string
	// Plot also writes <prefix>_<stem>.png next to each table.
	Plot bool
}

type Result struct {
	Files   int
	Written []string
	Failed  int
}

// Batch integrates a folder of images against one instrument. The function
// fields default to the file based implementations and are swapped in tests.
type Batch struct {
	Observer progress.Observer
	Policy   eiger.ErrorPolicy

	LoadInstrument func(path string) (geometry.Instrument, error)
	ReadImage      func(path string) (types.Image, error)
	WritePattern   func(path string, p types.Pattern) error
	WritePlot      func(path, title string, p types.Pattern) error
}

func NewBatch(observer progress.Observer, policy eiger.ErrorPolicy) *Batch {
	return &Batch{
		Observer: progress.Or(observer),
		Policy:   policy,
		LoadInstrument: func(path string) (geometry.Instrument, error) {
			return geometry.Load(path)
		},
		ReadImage:    tiffio.Read,
		WritePattern: output.WritePattern,
		WritePlot:    plot.WritePattern,
	}
}

// session is the per-run state shared by Run and Watch.
type session struct {
	opts   Options
	tth    *mat.Dense
	prefix string
	start  time.Time
}

func (b *Batch) prepare(opts Options) (*session, error) {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if err := opts.Bins.Validate(); err != nil {
		return nil, err
	}
	instr, err := b.LoadInstrument(opts.Instrument)
	if err != nil {
		return nil, fmt.Errorf("load instrument %s: %w", opts.Instrument, err)
	}
	tth, err := TwoThetaMap(instr)
	if err != nil {
		return nil, err
	}
	prefix, err := OutputPrefix(opts.OutputPrefix)
	if err != nil {
		return nil, err
	}
	return &session{opts: opts, tth: tth, prefix: prefix, start: time.Now()}, nil
}

func (s *session) checkShape(path string, img types.Image) error {
	rows, cols := s.tth.Dims()
	if img.Rows != rows || img.Cols != cols {
		return &GeometryShapeMismatchError{File: path, Image: img.Shape(), Geometry: [2]int{rows, cols}}
	}
	return nil
}

// Run integrates every file matching opts.Pattern in opts.Folder. The instrument
// and angle map are built once; only the first image is checked against the
// detector shape before any output is written.
func (b *Batch) Run(opts Options) (Result, error) {
	var res Result
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	files, err := CollectFiles(opts.Folder, opts.Pattern)
	if err != nil {
		return res, err
	}
	s, err := b.prepare(opts)
	if err != nil {
		return res, err
	}

	first, err := b.ReadImage(files[0])
	if err != nil {
		return res, fmt.Errorf("read %s: %w", files[0], err)
	}
	if err := s.checkShape(files[0], first); err != nil {
		return res, err
	}
	if err := EnsurePrefixDir(s.prefix); err != nil {
		return res, err
	}

	res.Files = len(files)
	obs := progress.Or(b.Observer)
	var errs []error
	for idx, path := range files {
		var img *types.Image
		if idx == 0 {
			img = &first
		}
		out, err := b.integrateOne(s, path, img)
		obs.Observe(progress.Event{
			Stage:   progress.StageIntegrate,
			Index:   idx + 1,
			Total:   len(files),
			Source:  path,
			Output:  out,
			Err:     err,
			Elapsed: time.Since(s.start),
		})
		if err != nil {
			res.Failed++
			if b.Policy == eiger.AbortOnError {
				return res, err
			}
			errs = append(errs, err)
			continue
		}
		res.Written = append(res.Written, out)
	}

	err = errors.Join(errs...)
	obs.Observe(progress.Event{
		Stage:    progress.StageIntegrate,
		Index:    len(res.Written),
		Total:    len(files),
		Output:   s.prefix,
		Err:      err,
		Elapsed:  time.Since(s.start),
		Finished: true,
	})
	return res, err
}

// integrateOne reads path (unless img is already loaded), integrates it and
// writes the table. It returns the table path.
func (b *Batch) integrateOne(s *session, path string, img *types.Image) (string, error) {
	out := OutputName(s.prefix, path)
	if img == nil {
		loaded, err := b.ReadImage(path)
		if err != nil {
			return out, fmt.Errorf("read %s: %w", path, err)
		}
		img = &loaded
	}
	pattern, err := Radial(*img, s.tth, s.opts.Bins)
	if err != nil {
		var sm *ShapeMismatchError
		if errors.As(err, &sm) {
			return out, &GeometryShapeMismatchError{File: path, Image: sm.Image, Geometry: sm.AngleMap}
		}
		return out, fmt.Errorf("integrate %s: %w", path, err)
	}
	if err := b.WritePattern(out, pattern); err != nil {
		return out, err
	}
	if s.opts.Plot {
		png := strings.TrimSuffix(out, filepath.Ext(out)) + ".png"
		if err := b.WritePlot(png, Stem(path), pattern); err != nil {
			return out, err
		}
	}
	return out, nil
}
