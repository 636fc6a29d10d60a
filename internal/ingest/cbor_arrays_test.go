package ingest

import (
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"diffraxia-go/internal/container"
)

func TestFillPayloadUint8(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{2, 2},
			cbor.Tag{
				Number:  tagUint8,
				Content: []byte{1, 2, 3, 4},
			},
		},
	}

	g := container.NewMem("difference")
	if err := fillPayload(g, value); err != nil {
		t.Fatalf("fillPayload error: %v", err)
	}

	data, _ := g.Dataset("data")
	raw, _ := data.Bytes()
	if !reflect.DeepEqual(raw, []byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected data %v", raw)
	}
	shape, _ := g.Dataset("shape")
	dims, _ := shape.Ints()
	if !reflect.DeepEqual(dims, []int64{2, 2}) {
		t.Fatalf("unexpected shape %v", dims)
	}
	if es, _ := container.ReadInt(g, "elem_size"); es != 1 {
		t.Fatalf("unexpected elem_size %d", es)
	}
	if dt, _ := container.ReadText(g, "dtype"); dt != "|u1" {
		t.Fatalf("unexpected dtype %q", dt)
	}
	if ct, _ := container.ReadText(g, "compression_type"); ct != "none" {
		t.Fatalf("unexpected compression_type %q", ct)
	}
}

func TestFillPayloadDectris(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{uint64(512), uint64(1024)},
			cbor.Tag{
				Number: tagUint32LE,
				Content: cbor.Tag{
					Number:  tagDectris,
					Content: []any{"bslz4", uint64(4), []byte{0xde, 0xad}},
				},
			},
		},
	}

	g := container.NewMem("difference")
	if err := fillPayload(g, value); err != nil {
		t.Fatalf("fillPayload error: %v", err)
	}
	if ct, _ := container.ReadText(g, "compression_type"); ct != "bslz4" {
		t.Fatalf("unexpected compression_type %q", ct)
	}
	if es, _ := container.ReadInt(g, "elem_size"); es != 4 {
		t.Fatalf("unexpected elem_size %d", es)
	}
	shape, _ := g.Dataset("shape")
	dims, _ := shape.Ints()
	if !reflect.DeepEqual(dims, []int64{512, 1024}) {
		t.Fatalf("unexpected shape %v", dims)
	}
}

func TestFillPayloadRejectsUnknownTag(t *testing.T) {
	value := cbor.Tag{
		Number:  tagMultiDimArray,
		Content: []any{[]any{1, 1}, cbor.Tag{Number: 999, Content: []byte{0}}},
	}
	if err := fillPayload(container.NewMem("x"), value); err == nil {
		t.Fatalf("expected error for unknown typed array tag")
	}
}
