//go:build hdf5

package h5

/*
#include <stdlib.h>
*/
import "C"

import (
	"encoding/binary"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
	"unsafe"

	"gonum.org/v1/hdf5"

	"diffraxia-go/internal/container"
)

// File is a read-only HDF5 file. Objects are opened by path on every access and
// closed again, so nothing but the file handle stays open.
type File struct {
	f    *hdf5.File
	name string
}

func Open(name string) (*File, error) {
	f, err := hdf5.OpenFile(name, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &File{f: f, name: name}, nil
}

func (f *File) Root() container.Group {
	return &group{file: f.f, path: "/"}
}

func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

type group struct {
	file *hdf5.File
	path string
}

func (g *group) Name() string {
	return path.Base(g.path)
}

func (g *group) child(name string) string {
	return path.Join(g.path, name)
}

func (g *group) Keys() ([]string, error) {
	h, err := g.file.OpenGroup(g.path)
	if err != nil {
		return nil, fmt.Errorf("open group %s: %w", g.path, err)
	}
	defer h.Close()

	n, err := h.NumObjects()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, n)
	for i := uint(0); i < n; i++ {
		name, err := h.ObjectNameByIndex(i)
		if err != nil {
			return nil, err
		}
		keys = append(keys, name)
	}
	return keys, nil
}

func (g *group) Has(name string) bool {
	return g.file.LinkExists(g.child(name))
}

func (g *group) Group(name string) (container.Group, error) {
	p := g.child(name)
	if !g.file.LinkExists(p) {
		return nil, container.ErrNotFound
	}
	h, err := g.file.OpenGroup(p)
	if err != nil {
		return nil, container.ErrNotGroup
	}
	_ = h.Close()
	return &group{file: g.file, path: p}, nil
}

func (g *group) Dataset(name string) (container.Dataset, error) {
	p := g.child(name)
	if !g.file.LinkExists(p) {
		return nil, container.ErrNotFound
	}
	ds, err := g.file.OpenDataset(p)
	if err != nil {
		return nil, container.ErrNotDataset
	}
	_ = ds.Close()
	return &dataset{file: g.file, path: p}, nil
}

type dataset struct {
	file *hdf5.File
	path string
}

type contents struct {
	class hdf5.TypeClass
	size  int
	raw   []byte
	strs  []string
}

func (d *dataset) Dims() []int {
	ds, err := d.file.OpenDataset(d.path)
	if err != nil {
		return nil
	}
	defer ds.Close()
	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil
	}
	out := make([]int, len(dims))
	for i, v := range dims {
		out[i] = int(v)
	}
	return out
}

func (d *dataset) read() (contents, error) {
	ds, err := d.file.OpenDataset(d.path)
	if err != nil {
		return contents{}, err
	}
	defer ds.Close()

	dt, err := ds.Datatype()
	if err != nil {
		return contents{}, err
	}
	defer dt.Close()

	space := ds.Space()
	defer space.Close()
	n := space.SimpleExtentNPoints()

	c := contents{class: dt.Class(), size: int(dt.Size())}
	if n == 0 {
		return c, nil
	}
	if c.class == hdf5.T_STRING && dt.IsVariableStr() {
		ptrs := make([]uintptr, n)
		if err := ds.Read(&ptrs); err != nil {
			return c, err
		}
		c.strs = make([]string, n)
		for i, p := range ptrs {
			if p == 0 {
				continue
			}
			cs := (*C.char)(unsafe.Pointer(p))
			c.strs[i] = C.GoString(cs)
			C.free(unsafe.Pointer(cs))
		}
		return c, nil
	}

	c.raw = make([]byte, n*c.size)
	if err := ds.Read(&c.raw); err != nil {
		return c, err
	}
	if c.class == hdf5.T_STRING {
		for i := 0; i < n; i++ {
			s := c.raw[i*c.size : (i+1)*c.size]
			c.strs = append(c.strs, strings.TrimRight(string(s), "\x00 "))
		}
	}
	return c, nil
}

func (d *dataset) Bytes() ([]byte, error) {
	c, err := d.read()
	if err != nil {
		return nil, err
	}
	if c.raw == nil && c.strs != nil {
		return []byte(strings.Join(c.strs, "")), nil
	}
	return c.raw, nil
}

func (d *dataset) Ints() ([]int64, error) {
	c, err := d.read()
	if err != nil {
		return nil, err
	}
	switch c.class {
	case hdf5.T_INTEGER, hdf5.T_ENUM:
		out := make([]int64, 0, len(c.raw)/c.size)
		for off := 0; off+c.size <= len(c.raw); off += c.size {
			v, err := leInt(c.raw[off : off+c.size])
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case hdf5.T_FLOAT:
		f, err := leFloats(c.raw, c.size)
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(f))
		for i, v := range f {
			out[i] = int64(v)
		}
		return out, nil
	case hdf5.T_STRING:
		out := make([]int64, len(c.strs))
		for i, s := range c.strs {
			v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", container.ErrType, err)
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: class %d is not numeric", container.ErrType, c.class)
}

func (d *dataset) Floats() ([]float64, error) {
	c, err := d.read()
	if err != nil {
		return nil, err
	}
	switch c.class {
	case hdf5.T_FLOAT:
		return leFloats(c.raw, c.size)
	case hdf5.T_INTEGER:
		ints, err := d.Ints()
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(ints))
		for i, v := range ints {
			out[i] = float64(v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: class %d is not numeric", container.ErrType, c.class)
}

func (d *dataset) Text() (string, error) {
	c, err := d.read()
	if err != nil {
		return "", err
	}
	switch c.class {
	case hdf5.T_STRING:
		return strings.Join(c.strs, ""), nil
	case hdf5.T_OPAQUE, hdf5.T_INTEGER:
		if c.size == 1 {
			return strings.TrimRight(string(c.raw), "\x00 "), nil
		}
	}
	return "", fmt.Errorf("%w: class %d is not a string", container.ErrType, c.class)
}

func leInt(b []byte) (int64, error) {
	switch len(b) {
	case 1:
		return int64(b[0]), nil
	case 2:
		return int64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return int64(binary.LittleEndian.Uint32(b)), nil
	case 8:
		return int64(binary.LittleEndian.Uint64(b)), nil
	}
	return 0, fmt.Errorf("%w: %d byte integer", container.ErrType, len(b))
}

func leFloats(raw []byte, size int) ([]float64, error) {
	if size != 4 && size != 8 {
		return nil, fmt.Errorf("%w: %d byte float", container.ErrType, size)
	}
	out := make([]float64, 0, len(raw)/size)
	for off := 0; off+size <= len(raw); off += size {
		if size == 4 {
			out = append(out, float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))))
		} else {
			out = append(out, math.Float64frombits(binary.LittleEndian.Uint64(raw[off:])))
		}
	}
	return out, nil
}
