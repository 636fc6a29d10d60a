package ingest

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"diffraxia-go/internal/compression"
	"diffraxia-go/internal/container"
)

// CBOR tags used by the stream-v2 interface (RFC 8746 plus the Dectris
// compression tag).
const (
	tagMultiDimArray = 40
	tagUint8         = 64
	tagUint16LE      = 69
	tagUint32LE      = 70
	tagFloat32LE     = 85
	tagDectris       = 56500
)

type typedArray struct {
	dtype    string
	elemSize int
}

var typedArrays = map[uint64]typedArray{
	tagUint8:     {dtype: "|u1", elemSize: 1},
	tagUint16LE:  {dtype: "<u2", elemSize: 2},
	tagUint32LE:  {dtype: "<u4", elemSize: 4},
	tagFloat32LE: {dtype: "<f4", elemSize: 4},
}

// fillPayload stores a tag 40 multidim array as the five payload datasets
// (data, shape, dtype, elem_size, compression_type). Compressed content is kept
// as is; decompression happens in the frame decoder.
func fillPayload(g *container.Mem, value any) error {
	tag, ok := value.(cbor.Tag)
	if !ok || tag.Number != tagMultiDimArray {
		return fmt.Errorf("expected multidim tag 40")
	}

	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return fmt.Errorf("invalid multidim array content")
	}

	dimsRaw, ok := items[0].([]any)
	if !ok || len(dimsRaw) != 2 {
		return fmt.Errorf("invalid multidim dimensions")
	}
	rows, err := toInt(dimsRaw[0])
	if err != nil {
		return err
	}
	cols, err := toInt(dimsRaw[1])
	if err != nil {
		return err
	}

	typed, ok := items[1].(cbor.Tag)
	if !ok {
		return fmt.Errorf("expected typed array tag")
	}
	kind, ok := typedArrays[typed.Number]
	if !ok {
		return fmt.Errorf("unsupported typed array tag %d", typed.Number)
	}

	data, algorithm, elemSize, err := extractBytes(typed, kind.elemSize)
	if err != nil {
		return err
	}

	g.AddBytes("data", data)
	g.AddInts("shape", int64(rows), int64(cols))
	g.AddText("dtype", kind.dtype)
	g.AddInts("elem_size", int64(elemSize))
	g.AddText("compression_type", algorithm)
	return nil
}

func extractBytes(tag cbor.Tag, elemSize int) ([]byte, string, int, error) {
	switch v := tag.Content.(type) {
	case []byte:
		return v, compression.None, elemSize, nil
	case cbor.Tag:
		if v.Number != tagDectris {
			return nil, "", 0, fmt.Errorf("unsupported nested tag %d", v.Number)
		}
		return dectrisPayload(v)
	default:
		return nil, "", 0, fmt.Errorf("unsupported typed array content %T", v)
	}
}

// dectrisPayload unpacks tag 56500: [algorithm, elem_size, bytes].
func dectrisPayload(tag cbor.Tag) ([]byte, string, int, error) {
	items, ok := tag.Content.([]any)
	if !ok || len(items) != 3 {
		return nil, "", 0, errors.New("invalid dectris tag content")
	}
	algorithm, ok := items[0].(string)
	if !ok {
		return nil, "", 0, errors.New("invalid dectris algorithm")
	}
	elemSize, err := toInt(items[1])
	if err != nil {
		return nil, "", 0, err
	}
	encoded, ok := items[2].([]byte)
	if !ok {
		return nil, "", 0, errors.New("invalid dectris payload")
	}
	return encoded, algorithm, elemSize, nil
}

// multiDimUint32 builds the tag 40 value for an uncompressed uint32 image.
func multiDimUint32(rows, cols int, le []byte) cbor.Tag {
	return cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{rows, cols},
			cbor.Tag{Number: tagUint32LE, Content: le},
		},
	}
}
