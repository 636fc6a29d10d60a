// Package h5 exposes HDF5 files as container.Group trees. The real implementation
// needs the HDF5 C library and is compiled with -tags hdf5.
package h5
