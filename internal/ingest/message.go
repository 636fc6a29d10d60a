package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/fxamacker/cbor/v2"

	"diffraxia-go/internal/container"
	"diffraxia-go/internal/types"
)

// Stream-v2 message types.
const (
	TypeStart = "start"
	TypeImage = "image"
	TypeEnd   = "end"
)

// Message is one decoded stream-v2 message. For image messages Frame holds one
// payload group per channel, named like the channels in the data map, so it has
// the same shape as a multi-channel frame group read from a file.
type Message struct {
	Type     string
	SeriesID int
	ImageID  int
	Frame    *container.Mem
}

var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Decode parses a stream-v2 message. Message types other than start, image and
// end are returned with only Type set.
func Decode(msg []byte) (Message, error) {
	var payload map[string]any
	if err := decMode.Unmarshal(msg, &payload); err != nil {
		return Message{}, fmt.Errorf("cbor decode: %w", err)
	}

	msgType, _ := payload["type"].(string)
	out := Message{Type: msgType}
	if msgType != TypeStart && msgType != TypeImage && msgType != TypeEnd {
		return out, nil
	}

	if v, ok := payload["series_id"]; ok {
		id, err := toInt(v)
		if err != nil {
			return out, fmt.Errorf("invalid series_id: %w", err)
		}
		out.SeriesID = id
	}
	if msgType != TypeImage {
		return out, nil
	}

	imageID, err := toInt(payload["image_id"])
	if err != nil {
		return out, fmt.Errorf("invalid image_id: %w", err)
	}
	out.ImageID = imageID

	dataRaw, ok := payload["data"].(map[string]any)
	if !ok {
		return out, errors.New("invalid data field")
	}
	out.Frame = container.NewMem(strconv.Itoa(imageID))
	for channel, value := range dataRaw {
		if err := fillPayload(out.Frame.AddGroup(channel), value); err != nil {
			return out, fmt.Errorf("channel %q: %w", channel, err)
		}
	}
	return out, nil
}

// EncodeImage encodes f as an uncompressed stream-v2 image message with a single
// channel.
func EncodeImage(seriesID, imageID int, channel string, f types.Frame) ([]byte, error) {
	le := make([]byte, 4*len(f.Pix))
	for i, v := range f.Pix {
		binary.LittleEndian.PutUint32(le[i*4:], v)
	}
	return cbor.Marshal(map[string]any{
		"type":      TypeImage,
		"series_id": seriesID,
		"image_id":  imageID,
		"data": map[string]any{
			channel: multiDimUint32(f.Rows, f.Cols, le),
		},
	})
}

func EncodeStart(seriesID int) ([]byte, error) {
	return cbor.Marshal(map[string]any{"type": TypeStart, "series_id": seriesID})
}

func EncodeEnd(seriesID int) ([]byte, error) {
	return cbor.Marshal(map[string]any{"type": TypeEnd, "series_id": seriesID})
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}
