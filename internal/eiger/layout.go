package eiger

import (
	"diffraxia-go/internal/container"
)

// DifferenceChannel is the channel selected from multi-channel frames. Other
// channels such as threshold_1 are ignored.
const DifferenceChannel = "difference"

// RequiredFields must all be present in a payload group.
var RequiredFields = []string{"data", "shape", "dtype", "elem_size", "compression_type"}

// Layout recognizes one on-disk arrangement of a frame and returns the group that
// holds the payload fields.
type Layout struct {
	Name  string
	Match func(frame container.Group) (container.Group, bool)
}

// Layouts are tried in order; the first match wins. New vendor layouts are added
// here.
var Layouts = []Layout{
	{Name: "multi-channel", Match: channelLayout(DifferenceChannel)},
	{Name: "flattened", Match: flatLayout},
}

func channelLayout(channel string) func(container.Group) (container.Group, bool) {
	return func(frame container.Group) (container.Group, bool) {
		if !frame.Has(channel) {
			return nil, false
		}
		g, err := frame.Group(channel)
		if err != nil {
			return nil, false
		}
		if !container.HasAll(g, RequiredFields) {
			return nil, false
		}
		return g, true
	}
}

func flatLayout(frame container.Group) (container.Group, bool) {
	if container.HasAll(frame, RequiredFields) {
		return frame, true
	}
	return nil, false
}

// Locate returns the payload group of a frame and the name of the layout that
// matched.
func Locate(frame container.Group) (container.Group, string, error) {
	for _, l := range Layouts {
		if g, ok := l.Match(frame); ok {
			return g, l.Name, nil
		}
	}
	keys, err := frame.Keys()
	if err != nil {
		return nil, "", err
	}
	return nil, "", &LayoutError{Frame: frame.Name(), Available: keys}
}
