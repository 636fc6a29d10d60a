package eiger

import (
	"diffraxia-go/internal/container"
)

// FrameInfo summarizes one frame without decompressing it.
type FrameInfo struct {
	Key         string
	Layout      string
	Shape       [2]int
	DType       string
	ElemSize    int
	Compression string
	Bytes       int
	Err         error
}

// Inspect lists the frames of group in frame order. Per-frame problems are reported
// in FrameInfo.Err rather than stopping the listing.
func Inspect(root container.Group, group string, limit *int) ([]FrameInfo, error) {
	if group == "" {
		group = DefaultGroup
	}
	g, keys, err := FrameKeys(root, group, limit)
	if err != nil {
		return nil, err
	}
	infos := make([]FrameInfo, 0, len(keys))
	for _, key := range keys {
		info := FrameInfo{Key: key}
		infos = append(infos, info)
		last := &infos[len(infos)-1]

		frame, err := g.Group(key)
		if err != nil {
			last.Err = err
			continue
		}
		payload, layout, err := Locate(frame)
		if err != nil {
			last.Err = err
			continue
		}
		last.Layout = layout
		p, err := ReadPayload(payload)
		if err != nil {
			last.Err = err
			continue
		}
		last.Shape = p.Shape
		last.DType = p.DType
		last.ElemSize = p.ElemSize
		last.Compression = p.Compression
		last.Bytes = len(p.Data)
	}
	return infos, nil
}
