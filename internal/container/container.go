// Package container describes the hierarchical container (HDF5 file, decoded stream
// message) that frames and instrument definitions are read from.
package container

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrNotGroup   = errors.New("object is not a group")
	ErrNotDataset = errors.New("object is not a dataset")
	ErrType       = errors.New("unsupported dataset type")
)

// Group is a node with named children.
type Group interface {
	// Name returns the last path component.
	Name() string
	// Keys returns the child names in storage order.
	Keys() ([]string, error)
	Has(name string) bool
	Group(name string) (Group, error)
	Dataset(name string) (Dataset, error)
}

// Dataset is a leaf holding typed values.
type Dataset interface {
	Dims() []int
	// Bytes returns the raw element bytes, e.g. an opaque compressed payload.
	Bytes() ([]byte, error)
	Ints() ([]int64, error)
	Floats() ([]float64, error)
	Text() (string, error)
}

// Lookup walks a slash separated relative path from g.
func Lookup(g Group, path ...string) (Group, error) {
	cur := g
	for _, p := range path {
		next, err := cur.Group(p)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", cur.Name(), p, err)
		}
		cur = next
	}
	return cur, nil
}

// HasAll reports whether g holds every one of names.
func HasAll(g Group, names []string) bool {
	for _, name := range names {
		if !g.Has(name) {
			return false
		}
	}
	return true
}

// ReadInt reads a scalar integer dataset.
func ReadInt(g Group, name string) (int, error) {
	ds, err := g.Dataset(name)
	if err != nil {
		return 0, err
	}
	v, err := ds.Ints()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if len(v) != 1 {
		return 0, fmt.Errorf("%s: expected scalar, got %d values", name, len(v))
	}
	return int(v[0]), nil
}

// ReadFloats reads a float dataset of any rank, flattened.
func ReadFloats(g Group, name string) ([]float64, error) {
	ds, err := g.Dataset(name)
	if err != nil {
		return nil, err
	}
	v, err := ds.Floats()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// ReadText reads a string dataset.
func ReadText(g Group, name string) (string, error) {
	ds, err := g.Dataset(name)
	if err != nil {
		return "", err
	}
	s, err := ds.Text()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}
