package eiger

import (
	"fmt"
	"strings"
)

// LayoutError reports a frame group that matches none of Layouts.
type LayoutError struct {
	Frame     string
	Available []string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf(
		"eiger frame %q does not match any supported layout: expected either a %q subgroup with {%s}, "+
			"or those datasets directly under the frame group; available keys at this level: %v",
		e.Frame, DifferenceChannel, strings.Join(RequiredFields, ", "), e.Available,
	)
}

// MetadataMismatchError reports an elem_size other than the 4 byte uint32 width.
type MetadataMismatchError struct {
	ElemSize int
	Expected int
	DType    string
}

func (e *MetadataMismatchError) Error() string {
	return fmt.Sprintf(
		"inconsistent eiger frame metadata: elem_size does not match uint32: elem_size=%d byte(s), expected=%d; reported dtype in file: %q",
		e.ElemSize, e.Expected, e.DType,
	)
}

// DecodedSizeMismatchError reports a decompressed buffer whose length does not
// match shape times element size.
type DecodedSizeMismatchError struct {
	Got      int
	Expected int
	Shape    [2]int
}

func (e *DecodedSizeMismatchError) Error() string {
	return fmt.Sprintf(
		"decompressed eiger frame has unexpected size: len(buf)=%d, expected=%d for shape=(%d, %d) and dtype=uint32",
		e.Got, e.Expected, e.Shape[0], e.Shape[1],
	)
}

// MissingGroupError reports a top-level frame group that is not in the file.
type MissingGroupError struct {
	Group     string
	Available []string
}

func (e *MissingGroupError) Error() string {
	return fmt.Sprintf("group %q not found in file; available top-level keys: %v", e.Group, e.Available)
}

// ShapeError reports a shape dataset that does not describe a 2D frame.
type ShapeError struct {
	Values []int64
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid frame shape %v: expected two positive integers (rows, columns)", e.Values)
}

// FrameKeyError reports a child of the frame group whose name is not a frame index.
type FrameKeyError struct {
	Key string
}

func (e *FrameKeyError) Error() string {
	return fmt.Sprintf("frame key %q is not an integer frame index", e.Key)
}

// LimitError reports a negative frame limit.
type LimitError struct {
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("frame limit must not be negative, got %d", e.Limit)
}
