package eiger

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"diffraxia-go/internal/container"
	"diffraxia-go/internal/progress"
)

func streamFrames(channel string, values ...uint32) []container.Group {
	var frames []container.Group
	for i, v := range values {
		frame := container.NewMem(strconv.Itoa(i))
		fillPayload(frame.AddGroup(channel), 1, 1, 4, v)
		frames = append(frames, frame)
	}
	return frames
}

func feed(frames ...container.Group) <-chan container.Group {
	ch := make(chan container.Group, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return ch
}

func TestConvertStreamStopsWhenClosed(t *testing.T) {
	var out []written
	var events []progress.Event
	c := newTestConverter(AbortOnError, &out, &events)

	in := feed(streamFrames(DifferenceChannel, 5, 6)...)
	res, err := c.ConvertStream(context.Background(), in, ConvertOptions{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatalf("ConvertStream error: %v", err)
	}
	want := []written{{"frame_00000.tiff", 5}, {"frame_00001.tiff", 6}}
	if len(out) != 2 || out[0] != want[0] || out[1] != want[1] {
		t.Fatalf("unexpected writes %v", out)
	}
	if res.Frames != 2 || !events[len(events)-1].Finished || events[1].Source != "1" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestConvertStreamLimit(t *testing.T) {
	var out []written
	var events []progress.Event
	c := newTestConverter(AbortOnError, &out, &events)

	in := feed(streamFrames(DifferenceChannel, 1, 2, 3, 4)...)
	res, err := c.ConvertStream(context.Background(), in, ConvertOptions{OutputDir: t.TempDir(), Limit: NFrames(3)})
	if err != nil {
		t.Fatalf("ConvertStream error: %v", err)
	}
	if res.Frames != 3 || len(out) != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestConvertStreamLimitZero(t *testing.T) {
	var out []written
	var events []progress.Event
	c := newTestConverter(AbortOnError, &out, &events)

	// never closed: a zero limit must not wait for a frame
	in := make(chan container.Group)
	res, err := c.ConvertStream(context.Background(), in, ConvertOptions{OutputDir: t.TempDir(), Limit: NFrames(0)})
	if err != nil {
		t.Fatalf("ConvertStream error: %v", err)
	}
	if res.Frames != 0 || len(out) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	_, err = c.ConvertStream(context.Background(), in, ConvertOptions{OutputDir: t.TempDir(), Limit: NFrames(-2)})
	var le *LimitError
	if !errors.As(err, &le) {
		t.Fatalf("expected LimitError, got %v", err)
	}
}

func TestConvertStreamWrongChannel(t *testing.T) {
	var out []written
	var events []progress.Event
	c := newTestConverter(ContinueOnError, &out, &events)

	in := feed(streamFrames("threshold_1", 1, 2)...)
	res, err := c.ConvertStream(context.Background(), in, ConvertOptions{OutputDir: t.TempDir()})
	var le *LayoutError
	if !errors.As(err, &le) {
		t.Fatalf("expected LayoutError, got %v", err)
	}
	if res.Failed != 2 || len(out) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestConvertStreamCancel(t *testing.T) {
	var out []written
	var events []progress.Event
	c := newTestConverter(AbortOnError, &out, &events)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan container.Group)
	dir := t.TempDir()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.ConvertStream(ctx, in, ConvertOptions{OutputDir: dir})
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("ConvertStream did not return after cancel")
	}
}
