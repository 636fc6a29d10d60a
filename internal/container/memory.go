package container

import (
	"fmt"
	"strconv"
	"strings"
)

// Mem is an in-memory Group. Children keep insertion order.
type Mem struct {
	name     string
	order    []string
	children map[string]any
}

func NewMem(name string) *Mem {
	return &Mem{name: name, children: make(map[string]any)}
}

func (m *Mem) add(name string, child any) {
	if _, ok := m.children[name]; !ok {
		m.order = append(m.order, name)
	}
	m.children[name] = child
}

// AddGroup creates (or replaces) a child group and returns it.
func (m *Mem) AddGroup(name string) *Mem {
	g := NewMem(name)
	m.add(name, g)
	return g
}

func (m *Mem) AddBytes(name string, b []byte) *Mem {
	m.add(name, &MemDataset{dims: []int{len(b)}, raw: b})
	return m
}

func (m *Mem) AddInts(name string, v ...int64) *Mem {
	dims := []int{len(v)}
	if len(v) == 1 {
		dims = nil
	}
	m.add(name, &MemDataset{dims: dims, ints: v})
	return m
}

func (m *Mem) AddFloats(name string, v ...float64) *Mem {
	dims := []int{len(v)}
	if len(v) == 1 {
		dims = nil
	}
	m.add(name, &MemDataset{dims: dims, floats: v})
	return m
}

func (m *Mem) AddText(name, s string) *Mem {
	m.add(name, &MemDataset{text: &s})
	return m
}

func (m *Mem) Name() string { return m.name }

func (m *Mem) Keys() ([]string, error) {
	return append([]string(nil), m.order...), nil
}

func (m *Mem) Has(name string) bool {
	_, ok := m.children[name]
	return ok
}

func (m *Mem) Group(name string) (Group, error) {
	child, ok := m.children[name]
	if !ok {
		return nil, ErrNotFound
	}
	g, ok := child.(*Mem)
	if !ok {
		return nil, ErrNotGroup
	}
	return g, nil
}

func (m *Mem) Dataset(name string) (Dataset, error) {
	child, ok := m.children[name]
	if !ok {
		return nil, ErrNotFound
	}
	ds, ok := child.(*MemDataset)
	if !ok {
		return nil, ErrNotDataset
	}
	return ds, nil
}

// MemDataset holds exactly one of raw bytes, ints, floats or text.
type MemDataset struct {
	dims   []int
	raw    []byte
	ints   []int64
	floats []float64
	text   *string
}

func (d *MemDataset) Dims() []int { return d.dims }

func (d *MemDataset) Bytes() ([]byte, error) {
	switch {
	case d.raw != nil:
		return d.raw, nil
	case d.text != nil:
		return []byte(*d.text), nil
	}
	return nil, fmt.Errorf("%w: not a byte dataset", ErrType)
}

func (d *MemDataset) Ints() ([]int64, error) {
	switch {
	case d.ints != nil:
		return d.ints, nil
	case d.floats != nil:
		out := make([]int64, len(d.floats))
		for i, f := range d.floats {
			out[i] = int64(f)
		}
		return out, nil
	case d.text != nil:
		n, err := strconv.ParseInt(strings.TrimSpace(*d.text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrType, err)
		}
		return []int64{n}, nil
	}
	return nil, fmt.Errorf("%w: not an integer dataset", ErrType)
}

func (d *MemDataset) Floats() ([]float64, error) {
	switch {
	case d.floats != nil:
		return d.floats, nil
	case d.ints != nil:
		out := make([]float64, len(d.ints))
		for i, n := range d.ints {
			out[i] = float64(n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: not a numeric dataset", ErrType)
}

func (d *MemDataset) Text() (string, error) {
	switch {
	case d.text != nil:
		return *d.text, nil
	case d.raw != nil:
		return strings.TrimRight(string(d.raw), "\x00"), nil
	}
	return "", fmt.Errorf("%w: not a string dataset", ErrType)
}
