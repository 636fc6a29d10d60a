// Package compression wraps the Dectris stream compression library used by Eiger
// detectors. The C implementation is compiled with -tags dectris.
package compression

import (
	"errors"
	"fmt"
	"strings"
)

const (
	BSLZ4 = "bslz4"
	LZ4   = "lz4"
	// None marks plain typed arrays from the stream interface.
	None = "none"
)

var ErrDisabled = errors.New("dectris compression not enabled; build with -tags dectris")

// Normalize maps the compression_type spellings found in Eiger files and stream
// messages onto BSLZ4, LZ4 or None.
func Normalize(algorithm string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "bslz4", "bs-lz4", "bitshuffle-lz4", "bs32-lz4", "bs16-lz4", "bs8-lz4":
		return BSLZ4, nil
	case "lz4":
		return LZ4, nil
	case "none", "raw":
		return None, nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm %q", algorithm)
	}
}

func checkArgs(algorithm string, elemSize int) (string, error) {
	alg, err := Normalize(algorithm)
	if err != nil {
		return "", err
	}
	if elemSize <= 0 {
		return "", fmt.Errorf("invalid element size %d", elemSize)
	}
	return alg, nil
}

func passthrough(encoded []byte) []byte {
	return append([]byte(nil), encoded...)
}
