// Package tiffio reads and writes single-channel detector TIFF images.
//
// golang.org/x/image/tiff only encodes 8 and 16 bit images, so uint32 frames are
// written here as a baseline single-strip TIFF. Uncompressed 8/16/32/64 bit
// grayscale files are decoded directly; anything else goes through x/image/tiff.
package tiffio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"golang.org/x/image/tiff"

	"diffraxia-go/internal/types"
)

const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagSampleFormat    = 339

	typeShort = 3
	typeLong  = 4

	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

var ErrFormat = errors.New("tiff: invalid format")

type ifdEntry struct {
	tag   uint16
	typ   uint16
	value uint32
}

// EncodeFrame writes f as a little-endian uint32 grayscale TIFF.
func EncodeFrame(w io.Writer, f types.Frame) error {
	if f.Rows <= 0 || f.Cols <= 0 || len(f.Pix) != f.Rows*f.Cols {
		return fmt.Errorf("tiff: invalid frame %dx%d with %d pixels", f.Rows, f.Cols, len(f.Pix))
	}
	entries := []ifdEntry{
		{tagImageWidth, typeLong, uint32(f.Cols)},
		{tagImageLength, typeLong, uint32(f.Rows)},
		{tagBitsPerSample, typeShort, 32},
		{tagCompression, typeShort, 1},
		{tagPhotometric, typeShort, 1},
		{tagStripOffsets, typeLong, 0},
		{tagSamplesPerPixel, typeShort, 1},
		{tagRowsPerStrip, typeLong, uint32(f.Rows)},
		{tagStripByteCounts, typeLong, uint32(len(f.Pix) * 4)},
		{tagSampleFormat, typeShort, sampleUint},
	}
	dataOffset := uint32(8 + 2 + len(entries)*12 + 4)
	entries[5].value = dataOffset

	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	var hdr [8]byte
	copy(hdr[:2], "II")
	le.PutUint16(hdr[2:], 42)
	le.PutUint32(hdr[4:], 8)
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	var b [12]byte
	le.PutUint16(b[:2], uint16(len(entries)))
	if _, err := bw.Write(b[:2]); err != nil {
		return err
	}
	for _, e := range entries {
		b = [12]byte{}
		le.PutUint16(b[0:], e.tag)
		le.PutUint16(b[2:], e.typ)
		le.PutUint32(b[4:], 1)
		if e.typ == typeShort {
			le.PutUint16(b[8:], uint16(e.value))
		} else {
			le.PutUint32(b[8:], e.value)
		}
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	if _, err := bw.Write([]byte{0, 0, 0, 0}); err != nil {
		return err
	}

	var px [4]byte
	for _, v := range f.Pix {
		le.PutUint32(px[:], v)
		if _, err := bw.Write(px[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFrame writes f to path.
func WriteFrame(path string, f types.Frame) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeFrame(out, f); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

// Read decodes the first image of a TIFF file.
func Read(path string) (types.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Image{}, err
	}
	img, err := Decode(data)
	if err != nil {
		return types.Image{}, fmt.Errorf("read %s: %w", path, err)
	}
	return img, nil
}

type header struct {
	width, height  int
	bitsPerSample  int
	samples        int
	compression    int
	sampleFormat   int
	stripOffsets   []uint32
	stripByteCount []uint32
}

// Decode decodes the first image of an in-memory TIFF.
func Decode(data []byte) (types.Image, error) {
	h, order, err := parseHeader(data)
	if err != nil {
		return types.Image{}, err
	}
	if h.compression == 1 && h.samples == 1 {
		switch h.bitsPerSample {
		case 8, 16, 32, 64:
			return decodeRaw(data, h, order)
		}
	}
	return decodeGeneric(data)
}

func parseHeader(data []byte) (header, binary.ByteOrder, error) {
	h := header{samples: 1, compression: 1, sampleFormat: sampleUint, bitsPerSample: 1}
	if len(data) < 8 {
		return h, nil, ErrFormat
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return h, nil, ErrFormat
	}
	if order.Uint16(data[2:]) != 42 {
		return h, nil, ErrFormat
	}
	off := int(order.Uint32(data[4:]))
	if off+2 > len(data) {
		return h, nil, ErrFormat
	}
	n := int(order.Uint16(data[off:]))
	if off+2+n*12 > len(data) {
		return h, nil, ErrFormat
	}
	for i := 0; i < n; i++ {
		e := data[off+2+i*12 : off+2+(i+1)*12]
		tag := order.Uint16(e[0:])
		values, err := entryValues(data, e, order)
		if err != nil {
			return h, nil, err
		}
		if len(values) == 0 {
			continue
		}
		switch tag {
		case tagImageWidth:
			h.width = int(values[0])
		case tagImageLength:
			h.height = int(values[0])
		case tagBitsPerSample:
			h.bitsPerSample = int(values[0])
		case tagCompression:
			h.compression = int(values[0])
		case tagSamplesPerPixel:
			h.samples = int(values[0])
		case tagSampleFormat:
			h.sampleFormat = int(values[0])
		case tagStripOffsets:
			h.stripOffsets = values
		case tagStripByteCounts:
			h.stripByteCount = values
		}
	}
	if h.width <= 0 || h.height <= 0 {
		return h, nil, fmt.Errorf("%w: missing image dimensions", ErrFormat)
	}
	return h, order, nil
}

func entryValues(data, e []byte, order binary.ByteOrder) ([]uint32, error) {
	typ := order.Uint16(e[2:])
	count := int(order.Uint32(e[4:]))
	var size int
	switch typ {
	case typeShort:
		size = 2
	case typeLong:
		size = 4
	default:
		return nil, nil
	}
	raw := e[8:12]
	if count*size > 4 {
		off := int(order.Uint32(e[8:]))
		if off < 0 || off+count*size > len(data) {
			return nil, fmt.Errorf("%w: entry out of range", ErrFormat)
		}
		raw = data[off : off+count*size]
	}
	out := make([]uint32, count)
	for i := range out {
		if size == 2 {
			out[i] = uint32(order.Uint16(raw[i*2:]))
		} else {
			out[i] = order.Uint32(raw[i*4:])
		}
	}
	return out, nil
}

func decodeRaw(data []byte, h header, order binary.ByteOrder) (types.Image, error) {
	if len(h.stripOffsets) == 0 || len(h.stripOffsets) != len(h.stripByteCount) {
		return types.Image{}, fmt.Errorf("%w: bad strip tables", ErrFormat)
	}
	bytesPer := h.bitsPerSample / 8
	want := h.width * h.height * bytesPer
	buf := make([]byte, 0, want)
	for i, off := range h.stripOffsets {
		end := int(off) + int(h.stripByteCount[i])
		if end > len(data) {
			return types.Image{}, fmt.Errorf("%w: strip %d out of range", ErrFormat, i)
		}
		buf = append(buf, data[off:end]...)
	}
	if len(buf) < want {
		return types.Image{}, fmt.Errorf("%w: %d bytes of pixel data, need %d", ErrFormat, len(buf), want)
	}

	img := types.Image{Rows: h.height, Cols: h.width, Pix: make([]float64, h.width*h.height)}
	for i := range img.Pix {
		p := buf[i*bytesPer:]
		switch {
		case bytesPer == 1 && h.sampleFormat == sampleInt:
			img.Pix[i] = float64(int8(p[0]))
		case bytesPer == 1:
			img.Pix[i] = float64(p[0])
		case bytesPer == 2 && h.sampleFormat == sampleInt:
			img.Pix[i] = float64(int16(order.Uint16(p)))
		case bytesPer == 2:
			img.Pix[i] = float64(order.Uint16(p))
		case bytesPer == 4 && h.sampleFormat == sampleFloat:
			img.Pix[i] = float64(math.Float32frombits(order.Uint32(p)))
		case bytesPer == 4 && h.sampleFormat == sampleInt:
			img.Pix[i] = float64(int32(order.Uint32(p)))
		case bytesPer == 4:
			img.Pix[i] = float64(order.Uint32(p))
		case bytesPer == 8 && h.sampleFormat == sampleFloat:
			img.Pix[i] = math.Float64frombits(order.Uint64(p))
		case bytesPer == 8 && h.sampleFormat == sampleInt:
			img.Pix[i] = float64(int64(order.Uint64(p)))
		default:
			img.Pix[i] = float64(order.Uint64(p))
		}
	}
	return img, nil
}

func decodeGeneric(data []byte) (types.Image, error) {
	src, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return types.Image{}, err
	}
	b := src.Bounds()
	img := types.Image{Rows: b.Dy(), Cols: b.Dx(), Pix: make([]float64, b.Dx()*b.Dy())}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := (y-b.Min.Y)*img.Cols + (x - b.Min.X)
			switch s := src.(type) {
			case *image.Gray16:
				img.Pix[i] = float64(s.Gray16At(x, y).Y)
			case *image.Gray:
				img.Pix[i] = float64(s.GrayAt(x, y).Y)
			default:
				img.Pix[i] = float64(color.Gray16Model.Convert(src.At(x, y)).(color.Gray16).Y)
			}
		}
	}
	return img, nil
}
