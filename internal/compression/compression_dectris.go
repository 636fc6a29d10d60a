//go:build dectris

package compression

/*
#cgo CFLAGS: -I${SRCDIR}/dectris/src -I${SRCDIR}/dectris/third_party/bitshuffle/src -I${SRCDIR}/dectris/third_party/lz4/lib
#include "dectris/src/compression.h"
#include "dectris/src/compression.c"
#include "dectris/third_party/bitshuffle/src/bitshuffle.c"
#include "dectris/third_party/lz4/lib/lz4.c"
*/
import "C"

import (
	"errors"
	"math"
	"unsafe"
)

// Decompress expands an Eiger bslz4 or lz4 payload. The result length is whatever
// the embedded header declares; callers validate it against the frame shape.
func Decompress(encoded []byte, algorithm string, elemSize int) ([]byte, error) {
	name, err := checkArgs(algorithm, elemSize)
	if err != nil {
		return nil, err
	}
	if name == None {
		return passthrough(encoded), nil
	}
	var alg C.CompressionAlgorithm = C.COMPRESSION_LZ4
	if name == BSLZ4 {
		alg = C.COMPRESSION_BSLZ4
	}
	if len(encoded) == 0 {
		return []byte{}, nil
	}

	src := (*C.char)(unsafe.Pointer(&encoded[0]))
	srcSize := C.size_t(len(encoded))
	elem := C.size_t(elemSize)

	required := C.compression_decompress_buffer(alg, nil, 0, src, srcSize, elem)
	if required == C.COMPRESSION_ERROR {
		return nil, errors.New("dectris decompression failed (size query)")
	}
	if required == 0 {
		return []byte{}, nil
	}
	if required > C.size_t(math.MaxInt) {
		return nil, errors.New("decompressed size exceeds Go limits")
	}

	dst := make([]byte, int(required))
	out := C.compression_decompress_buffer(
		alg,
		(*C.char)(unsafe.Pointer(&dst[0])),
		C.size_t(len(dst)),
		src,
		srcSize,
		elem,
	)
	if out == C.COMPRESSION_ERROR || out != required {
		return nil, errors.New("dectris decompression failed")
	}
	return dst, nil
}
