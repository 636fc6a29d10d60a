package eiger

import (
	"encoding/binary"
	"fmt"
	"math"

	"diffraxia-go/internal/compression"
	"diffraxia-go/internal/container"
	"diffraxia-go/internal/types"
)

// ElemSize is the byte width of the uint32 Eiger bitstream. The dtype field of a
// payload is only reported in errors, never used to pick the decode type.
const ElemSize = 4

// Payload is the content of a payload group.
type Payload struct {
	Data        []byte
	Shape       [2]int
	ElemSize    int
	DType       string
	Compression string
}

// DecompressFunc expands a compressed payload. compression.Decompress is the
// production implementation.
type DecompressFunc func(encoded []byte, algorithm string, elemSize int) ([]byte, error)

type Decoder struct {
	Decompress DecompressFunc
}

func NewDecoder() *Decoder {
	return &Decoder{Decompress: compression.Decompress}
}

// ReadPayload reads the five payload fields from g.
func ReadPayload(g container.Group) (Payload, error) {
	var p Payload

	ds, err := g.Dataset("data")
	if err != nil {
		return p, fmt.Errorf("data: %w", err)
	}
	if p.Data, err = ds.Bytes(); err != nil {
		return p, fmt.Errorf("data: %w", err)
	}

	ds, err = g.Dataset("shape")
	if err != nil {
		return p, fmt.Errorf("shape: %w", err)
	}
	if p.Shape, err = readShape(ds); err != nil {
		return p, err
	}

	if p.DType, err = container.ReadText(g, "dtype"); err != nil {
		return p, err
	}
	if p.ElemSize, err = container.ReadInt(g, "elem_size"); err != nil {
		return p, err
	}
	if p.Compression, err = container.ReadText(g, "compression_type"); err != nil {
		return p, err
	}
	return p, nil
}

// readShape accepts a scalar or a vector shape dataset. A scalar n is a single row
// of n pixels.
func readShape(ds container.Dataset) ([2]int, error) {
	v, err := ds.Ints()
	if err != nil {
		return [2]int{}, fmt.Errorf("shape: %w", err)
	}
	var shape [2]int
	switch len(v) {
	case 1:
		shape = [2]int{1, int(v[0])}
	case 2:
		shape = [2]int{int(v[0]), int(v[1])}
	default:
		return shape, &ShapeError{Values: v}
	}
	if shape[0] <= 0 || shape[1] <= 0 {
		return shape, &ShapeError{Values: v}
	}
	return shape, nil
}

// Decode decompresses p into a frame and clears saturated pixels.
func (d *Decoder) Decode(p Payload) (types.Frame, error) {
	if p.ElemSize != ElemSize {
		return types.Frame{}, &MetadataMismatchError{ElemSize: p.ElemSize, Expected: ElemSize, DType: p.DType}
	}

	buf, err := d.Decompress(p.Data, p.Compression, p.ElemSize)
	if err != nil {
		return types.Frame{}, fmt.Errorf("decompress %s payload: %w", p.Compression, err)
	}

	rows, cols := p.Shape[0], p.Shape[1]
	if rows <= 0 || cols <= 0 || rows > math.MaxInt/ElemSize/cols {
		return types.Frame{}, &ShapeError{Values: []int64{int64(rows), int64(cols)}}
	}
	expected := rows * cols * ElemSize
	if len(buf) != expected {
		return types.Frame{}, &DecodedSizeMismatchError{Got: len(buf), Expected: expected, Shape: p.Shape}
	}

	frame := types.NewFrame(rows, cols)
	for i := range frame.Pix {
		frame.Pix[i] = binary.LittleEndian.Uint32(buf[i*ElemSize:])
	}
	types.ScrubSaturated(frame.Pix)
	return frame, nil
}

// DecodeFrame locates, reads and decodes one frame group.
func (d *Decoder) DecodeFrame(frame container.Group) (types.Frame, error) {
	g, _, err := Locate(frame)
	if err != nil {
		return types.Frame{}, err
	}
	p, err := ReadPayload(g)
	if err != nil {
		return types.Frame{}, err
	}
	return d.Decode(p)
}
