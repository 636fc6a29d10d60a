package output

import (
	"encoding/base64"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// NormalizeJSONValue turns a generically decoded CBOR value into something
// encoding/json accepts: maps get string keys, tags become {"tag", "value"}
// objects and byte strings are summarized.
func NormalizeJSONValue(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = NormalizeJSONValue(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = NormalizeJSONValue(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = NormalizeJSONValue(val)
		}
		return out
	case cbor.Tag:
		return map[string]any{"tag": x.Number, "value": NormalizeJSONValue(x.Content)}
	case []byte:
		if len(x) <= 32 {
			return base64.StdEncoding.EncodeToString(x)
		}
		return fmt.Sprintf("<%d bytes>", len(x))
	default:
		return x
	}
}
