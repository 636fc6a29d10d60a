package integrate

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"diffraxia-go/internal/container"
	"diffraxia-go/internal/eiger"
	"diffraxia-go/internal/geometry"
	"diffraxia-go/internal/progress"
	"diffraxia-go/internal/tiffio"
	"diffraxia-go/internal/types"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.tiff", "a.tif", "c.TIFF", ".hidden.tiff", "notes.txt")

	files, err := CollectFiles(dir, " *.tiff , *.tif,")
	if err != nil {
		t.Fatalf("CollectFiles error: %v", err)
	}
	var names []string
	for _, f := range files {
		if !filepath.IsAbs(f) {
			t.Fatalf("path not absolute: %s", f)
		}
		names = append(names, filepath.Base(f))
	}
	if !reflect.DeepEqual(names, []string{"a.tif", "b.tiff"}) {
		t.Fatalf("unexpected files %v", names)
	}

	dup, err := CollectFiles(dir, "*.tiff,b*")
	if err != nil {
		t.Fatalf("CollectFiles error: %v", err)
	}
	if len(dup) != 2 || dup[0] != dup[1] {
		t.Fatalf("expected duplicate entries, got %v", dup)
	}
}

func TestCollectFilesNoMatch(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "x.png")
	_, err := CollectFiles(dir, DefaultPattern)
	var nm *NoMatchingFilesError
	if !errors.As(err, &nm) {
		t.Fatalf("expected NoMatchingFilesError, got %v", err)
	}
	if nm.Pattern != DefaultPattern {
		t.Fatalf("unexpected error fields %+v", nm)
	}
}

func TestOutputNaming(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	tests := []struct {
		raw, image, want string
	}{
		{"out/run_", "/data/img1.tiff", filepath.Join(cwd, "out", "run_img1.txt")},
		{"out/run", "/data/img1.tif", filepath.Join(cwd, "out", "run_img1.txt")},
		{"run__", "img1.tiff", "run_img1.txt"},
		{"pattern", "/data/a.b.tiff", "pattern_a.b.txt"},
		{"/abs/x_", "/data/.img.tiff", "/abs/x_.img.txt"},
	}
	for _, tt := range tests {
		prefix, err := OutputPrefix(tt.raw)
		if err != nil {
			t.Fatalf("OutputPrefix(%q) error: %v", tt.raw, err)
		}
		if got := OutputName(prefix, tt.image); got != tt.want {
			t.Fatalf("OutputName(%q, %q) = %q, want %q", tt.raw, tt.image, got, tt.want)
		}
	}
}

func u32bytes(values ...uint32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

// Angles in degrees of the 4x4 detector used by the end-to-end test. Bins are
// [0,1), [1,2), [2,3), [3,4].
var handAngles = []float64{
	0.5, 0.5, 1.5, 1.5,
	0.5, 1.5, 1.5, 2.5,
	2.5, 3.5, 3.5, 3.5,
	math.NaN(), 5, -1, 0,
}

func handInstrument(rows, cols int, deg []float64) func(string) (geometry.Instrument, error) {
	rad := make([]float64, len(deg))
	for i, d := range deg {
		rad[i] = d * math.Pi / 180
	}
	return func(string) (geometry.Instrument, error) {
		return fakeInstrument{names: []string{"panel"}, tth: mat.NewDense(rows, cols, rad)}, nil
	}
}

func TestEigerToPatternEndToEnd(t *testing.T) {
	tmp := t.TempDir()

	// One 4x4 frame in the difference layout; pixel (0,0) is saturated.
	pix := make([]uint32, 16)
	for i := range pix {
		pix[i] = uint32(i + 1)
	}
	pix[0] = math.MaxUint32
	root := container.NewMem("/")
	g := root.AddGroup("data").AddGroup("0").AddGroup("difference")
	g.AddBytes("data", u32bytes(pix...))
	g.AddInts("shape", 4, 4)
	g.AddText("dtype", "<u4")
	g.AddInts("elem_size", 4)
	g.AddText("compression_type", "bslz4")

	conv := eiger.NewConverter(nil, eiger.AbortOnError)
	conv.Decoder.Decompress = func(b []byte, _ string, _ int) ([]byte, error) { return b, nil }
	tiffDir := filepath.Join(tmp, "tiff_out")
	if _, err := conv.Convert(root, eiger.ConvertOptions{OutputDir: tiffDir}); err != nil {
		t.Fatalf("Convert error: %v", err)
	}

	batch := NewBatch(nil, eiger.AbortOnError)
	batch.LoadInstrument = handInstrument(4, 4, handAngles)
	res, err := batch.Run(Options{
		Instrument:   "hand.hexrd",
		Folder:       tiffDir,
		Bins:         Bins{Min: 0, Max: 4, N: 4},
		OutputPrefix: filepath.Join(tmp, "out", "run_"),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Files != 1 || len(res.Written) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	wantPath := filepath.Join(tmp, "out", "run_frame_00000.txt")
	if res.Written[0] != wantPath {
		t.Fatalf("wrote %s, want %s", res.Written[0], wantPath)
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read pattern: %v", err)
	}
	want := "# 2theta_deg\tIntensity_sum\n" +
		"5.000000000000000000e-01 2.300000000000000000e+01\n" +
		"1.500000000000000000e+00 2.000000000000000000e+01\n" +
		"2.500000000000000000e+00 1.700000000000000000e+01\n" +
		"3.500000000000000000e+00 3.300000000000000000e+01\n"
	if string(data) != want {
		t.Fatalf("unexpected table:\n%s\nwant\n%s", data, want)
	}
}

func writeTIFF(t *testing.T, path string, rows, cols int) {
	t.Helper()
	f := types.NewFrame(rows, cols)
	for i := range f.Pix {
		f.Pix[i] = uint32(i)
	}
	if err := tiffio.WriteFrame(path, f); err != nil {
		t.Fatalf("WriteFrame error: %v", err)
	}
}

func TestRunRejectsFirstImageShape(t *testing.T) {
	tmp := t.TempDir()
	writeTIFF(t, filepath.Join(tmp, "a.tiff"), 2, 3)

	batch := NewBatch(nil, eiger.AbortOnError)
	batch.LoadInstrument = handInstrument(4, 4, handAngles)
	outDir := filepath.Join(tmp, "out")
	_, err := batch.Run(Options{Folder: tmp, Bins: DefaultBins(), OutputPrefix: filepath.Join(outDir, "p")})
	var gm *GeometryShapeMismatchError
	if !errors.As(err, &gm) {
		t.Fatalf("expected GeometryShapeMismatchError, got %v", err)
	}
	if gm.Image != [2]int{2, 3} || gm.Geometry != [2]int{4, 4} {
		t.Fatalf("unexpected error fields %+v", gm)
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Fatalf("output directory created before the shape check")
	}
}

func TestRunContinueOnError(t *testing.T) {
	tmp := t.TempDir()
	writeTIFF(t, filepath.Join(tmp, "a.tiff"), 4, 4)
	writeTIFF(t, filepath.Join(tmp, "b.tiff"), 2, 2)
	writeTIFF(t, filepath.Join(tmp, "c.tiff"), 4, 4)

	var events []progress.Event
	batch := NewBatch(progress.Func(func(e progress.Event) { events = append(events, e) }), eiger.ContinueOnError)
	batch.LoadInstrument = handInstrument(4, 4, handAngles)
	var plots []string
	batch.WritePlot = func(path, title string, p types.Pattern) error {
		plots = append(plots, filepath.Base(path)+":"+title)
		return nil
	}

	res, err := batch.Run(Options{
		Folder:       tmp,
		Bins:         DefaultBins(),
		OutputPrefix: filepath.Join(tmp, "out", "p"),
		Plot:         true,
	})
	var gm *GeometryShapeMismatchError
	if !errors.As(err, &gm) || !strings.HasSuffix(gm.File, "b.tiff") {
		t.Fatalf("expected GeometryShapeMismatchError for b.tiff, got %v", err)
	}
	if res.Files != 3 || res.Failed != 1 || len(res.Written) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !reflect.DeepEqual(plots, []string{"p_a.png:a", "p_c.png:c"}) {
		t.Fatalf("unexpected plots %v", plots)
	}
	if len(events) != 4 || events[1].Err == nil || !events[3].Finished {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestRunAbortsOnError(t *testing.T) {
	tmp := t.TempDir()
	writeTIFF(t, filepath.Join(tmp, "a.tiff"), 4, 4)
	writeTIFF(t, filepath.Join(tmp, "b.tiff"), 2, 2)
	writeTIFF(t, filepath.Join(tmp, "c.tiff"), 4, 4)

	batch := NewBatch(nil, eiger.AbortOnError)
	batch.LoadInstrument = handInstrument(4, 4, handAngles)
	res, err := batch.Run(Options{Folder: tmp, Bins: DefaultBins(), OutputPrefix: filepath.Join(tmp, "p")})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(res.Written) != 1 {
		t.Fatalf("expected one pattern before abort, got %v", res.Written)
	}
}

func TestWatchIntegratesNewFiles(t *testing.T) {
	tmp := t.TempDir()
	in := filepath.Join(tmp, "in")
	if err := os.Mkdir(in, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTIFF(t, filepath.Join(in, "a.tiff"), 4, 4)

	seen := make(chan progress.Event, 16)
	batch := NewBatch(progress.Func(func(e progress.Event) { seen <- e }), eiger.ContinueOnError)
	batch.LoadInstrument = handInstrument(4, 4, handAngles)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- batch.Watch(ctx, Options{Folder: in, Bins: DefaultBins(), OutputPrefix: filepath.Join(tmp, "out", "w")}, 50*time.Millisecond)
	}()

	wait := func(name string) {
		t.Helper()
		timeout := time.After(10 * time.Second)
		for {
			select {
			case e := <-seen:
				if filepath.Base(e.Source) == name {
					if e.Err != nil {
						t.Fatalf("%s failed: %v", name, e.Err)
					}
					return
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %s", name)
			}
		}
	}
	wait("a.tiff")

	// Write under a name the pattern ignores, then rename into place.
	writeTIFF(t, filepath.Join(in, "b.partial"), 4, 4)
	if err := os.Rename(filepath.Join(in, "b.partial"), filepath.Join(in, "b.tiff")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	wait("b.tiff")

	if _, err := os.Stat(filepath.Join(tmp, "out", "w_b.txt")); err != nil {
		t.Fatalf("pattern for b.tiff missing: %v", err)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Watch did not stop")
	}
}
