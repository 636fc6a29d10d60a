package container

import (
	"errors"
	"reflect"
	"testing"
)

func TestMemKeysKeepInsertionOrder(t *testing.T) {
	root := NewMem("/")
	root.AddGroup("10")
	root.AddGroup("2")
	root.AddInts("1", 7)

	keys, err := root.Keys()
	if err != nil {
		t.Fatalf("Keys error: %v", err)
	}
	want := []string{"10", "2", "1"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys mismatch: got %v want %v", keys, want)
	}
}

func TestMemGroupAndDatasetKinds(t *testing.T) {
	root := NewMem("/")
	root.AddGroup("g")
	root.AddText("s", "bslz4")

	if _, err := root.Group("s"); !errors.Is(err, ErrNotGroup) {
		t.Fatalf("expected ErrNotGroup, got %v", err)
	}
	if _, err := root.Dataset("g"); !errors.Is(err, ErrNotDataset) {
		t.Fatalf("expected ErrNotDataset, got %v", err)
	}
	if _, err := root.Dataset("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadHelpers(t *testing.T) {
	g := NewMem("payload")
	g.AddInts("elem_size", 4)
	g.AddFloats("size", 0.2, 0.1)
	g.AddBytes("dtype", []byte("<u4\x00\x00"))

	n, err := ReadInt(g, "elem_size")
	if err != nil || n != 4 {
		t.Fatalf("ReadInt = %d, %v", n, err)
	}
	f, err := ReadFloats(g, "size")
	if err != nil || len(f) != 2 || f[1] != 0.1 {
		t.Fatalf("ReadFloats = %v, %v", f, err)
	}
	s, err := ReadText(g, "dtype")
	if err != nil || s != "<u4" {
		t.Fatalf("ReadText = %q, %v", s, err)
	}
	if _, err := ReadInt(g, "size"); err == nil {
		t.Fatalf("expected error reading vector as scalar")
	}
}

func TestLookup(t *testing.T) {
	root := NewMem("/")
	root.AddGroup("instrument").AddGroup("detectors").AddGroup("ge1")

	g, err := Lookup(root, "instrument", "detectors", "ge1")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if g.Name() != "ge1" {
		t.Fatalf("unexpected group %q", g.Name())
	}
	if _, err := Lookup(root, "instrument", "beam"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
