package eiger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"diffraxia-go/internal/container"
	"diffraxia-go/internal/h5"
	"diffraxia-go/internal/progress"
	"diffraxia-go/internal/tiffio"
	"diffraxia-go/internal/types"
)

// ErrorPolicy decides what a batch does after a failed item.
type ErrorPolicy int

const (
	// AbortOnError stops at the first failure. Output already written stays on disk.
	AbortOnError ErrorPolicy = iota
	// ContinueOnError keeps going and returns every failure joined at the end.
	ContinueOnError
)

const DefaultGroup = "data"

// FrameFileName is the output name of the i-th converted frame (0-based).
func FrameFileName(i int) string {
	return fmt.Sprintf("frame_%05d.tiff", i)
}

// SortFrameKeys orders frame keys by their integer value.
func SortFrameKeys(keys []string) ([]string, error) {
	type key struct {
		name string
		n    int64
	}
	parsed := make([]key, 0, len(keys))
	for _, k := range keys {
		n, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, &FrameKeyError{Key: k}
		}
		parsed = append(parsed, key{name: k, n: n})
	}
	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].n < parsed[j].n })
	out := make([]string, len(parsed))
	for i, k := range parsed {
		out[i] = k.name
	}
	return out, nil
}

type ConvertOptions struct {
	Group     string
	OutputDir string
	// Limit keeps only the first *Limit frames in key order; nil keeps all and
	// a pointer to 0 converts none.
	Limit *int
}

// NFrames returns a Limit of n frames.
func NFrames(n int) *int { return &n }

type ConvertResult struct {
	Frames  int
	Written []string
	Failed  int
}

type Converter struct {
	Decoder  *Decoder
	Write    func(path string, f types.Frame) error
	Observer progress.Observer
	Policy   ErrorPolicy
}

func NewConverter(observer progress.Observer, policy ErrorPolicy) *Converter {
	return &Converter{
		Decoder:  NewDecoder(),
		Write:    tiffio.WriteFrame,
		Observer: progress.Or(observer),
		Policy:   policy,
	}
}

// FrameKeys opens the frame group and returns its keys in frame order, truncated
// to *limit when limit is set.
func FrameKeys(root container.Group, group string, limit *int) (container.Group, []string, error) {
	if limit != nil && *limit < 0 {
		return nil, nil, &LimitError{Limit: *limit}
	}
	g, err := root.Group(group)
	if err != nil {
		if errors.Is(err, container.ErrNotFound) {
			available, _ := root.Keys()
			return nil, nil, &MissingGroupError{Group: group, Available: available}
		}
		return nil, nil, fmt.Errorf("group %q: %w", group, err)
	}
	keys, err := g.Keys()
	if err != nil {
		return nil, nil, fmt.Errorf("list group %q: %w", group, err)
	}
	keys, err = SortFrameKeys(keys)
	if err != nil {
		return nil, nil, err
	}
	if limit != nil && *limit < len(keys) {
		keys = keys[:*limit]
	}
	return g, keys, nil
}

// Convert writes one TIFF per frame of opts.Group into opts.OutputDir.
func (c *Converter) Convert(root container.Group, opts ConvertOptions) (ConvertResult, error) {
	var res ConvertResult
	if opts.Group == "" {
		opts.Group = DefaultGroup
	}
	obs := progress.Or(c.Observer)

	group, keys, err := FrameKeys(root, opts.Group, opts.Limit)
	if err != nil {
		return res, err
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return res, err
	}

	start := time.Now()
	res.Frames = len(keys)
	var errs []error
	for idx, key := range keys {
		out := filepath.Join(opts.OutputDir, FrameFileName(idx))
		err := c.convertOne(group, key, out)
		obs.Observe(progress.Event{
			Stage:   progress.StageConvert,
			Index:   idx + 1,
			Total:   len(keys),
			Source:  key,
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

	err = errors.Join(errs...)
	obs.Observe(progress.Event{
		Stage:    progress.StageConvert,
		Index:    len(res.Written),
		Total:    len(keys),
		Output:   opts.OutputDir,
		Err:      err,
		Elapsed:  time.Since(start),
		Finished: true,
	})
	return res, err
}

func (c *Converter) convertOne(group container.Group, key, out string) error {
	frameGroup, err := group.Group(key)
	if err != nil {
		return fmt.Errorf("frame %s: %w", key, err)
	}
	frame, err := c.Decoder.DecodeFrame(frameGroup)
	if err != nil {
		return fmt.Errorf("frame %s: %w", key, err)
	}
	return c.Write(out, frame)
}

// ConvertFile opens an HDF5 file, converts it and closes it again on every path.
func (c *Converter) ConvertFile(path string, opts ConvertOptions) (ConvertResult, error) {
	f, err := h5.Open(path)
	if err != nil {
		return ConvertResult{}, err
	}
	defer f.Close()
	return c.Convert(f.Root(), opts)
}
