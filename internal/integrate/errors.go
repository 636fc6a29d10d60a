package integrate

import (
	"errors"
	"fmt"
)

var ErrNoDetectors = errors.New("instrument has no detectors")

// NoMatchingFilesError reports a folder in which none of the patterns matched.
type NoMatchingFilesError struct {
	Folder  string
	Pattern string
}

func (e *NoMatchingFilesError) Error() string {
	return fmt.Sprintf("no TIFF files found in %s matching %q", e.Folder, e.Pattern)
}

// GeometryShapeMismatchError reports an image whose shape differs from the
// detector pixel grid.
type GeometryShapeMismatchError struct {
	File     string
	Image    [2]int
	Geometry [2]int
}

func (e *GeometryShapeMismatchError) Error() string {
	return fmt.Sprintf("image shape (%d, %d) of %s does not match detector geometry (%d, %d)",
		e.Image[0], e.Image[1], e.File, e.Geometry[0], e.Geometry[1])
}

// ShapeMismatchError reports an image and angle map of different shapes passed
// to Radial.
type ShapeMismatchError struct {
	Image    [2]int
	AngleMap [2]int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("image shape (%d, %d) does not match angle map shape (%d, %d)",
		e.Image[0], e.Image[1], e.AngleMap[0], e.AngleMap[1])
}

// BinsError reports an unusable binning.
type BinsError struct {
	Bins   Bins
	Reason string
}

func (e *BinsError) Error() string {
	return fmt.Sprintf("invalid 2theta binning [%g, %g] with %d bins: %s", e.Bins.Min, e.Bins.Max, e.Bins.N, e.Reason)
}
