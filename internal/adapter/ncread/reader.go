// Package ncread reads model output fields and coordinate axes from NetCDF
// files. Declared fill values and configured numeric sentinels are replaced
// with NaN so downstream code has a single missing-data representation.
package ncread

import (
	"fmt"
	"math"

	"github.com/fhs/go-netcdf/netcdf"
)

// Field is one 2-D slab of a model output variable.
type Field struct {
	Values [][]float64 // Indexed [row][col], NaN where missing.
	NY, NX int
}

// Reader loads fields from NetCDF files on local storage.
type Reader struct {
	// Sentinels lists extra numeric values to treat as missing, in addition
	// to the file's declared _FillValue/missing_value. Some archived files
	// use bare magic numbers (e.g. 9.96921e36, -9999) without declaring them.
	Sentinels []float64
}

// NumTimeSteps returns the length of the variable's leading time dimension,
// or 1 for time-invariant variables.
func (r *Reader) NumTimeSteps(path, variable string) (int, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return 0, fmt.Errorf("ncread: open %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	v, err := nc.Var(variable)
	if err != nil {
		return 0, fmt.Errorf("ncread: variable %q not found in %s: %w", variable, path, err)
	}
	dims, err := v.Dims()
	if err != nil {
		return 0, fmt.Errorf("ncread: dims of %q: %w", variable, err)
	}
	if len(dims) != 3 {
		return 1, nil
	}
	n, err := dims[0].Len()
	if err != nil {
		return 0, fmt.Errorf("ncread: time dim length: %w", err)
	}
	return int(n), nil
}

// ReadField reads one 2-D slab of the named variable. For variables with a
// leading time dimension, timeIndex selects the slab; time-invariant 2-D
// variables require timeIndex 0.
func (r *Reader) ReadField(path, variable string, timeIndex int) (*Field, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("ncread: open %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	v, err := nc.Var(variable)
	if err != nil {
		return nil, fmt.Errorf("ncread: variable %q not found in %s: %w", variable, path, err)
	}

	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("ncread: dims of %q: %w", variable, err)
	}

	var nt, ny, nx uint64
	switch len(dims) {
	case 2:
		nt = 1
		if ny, err = dims[0].Len(); err == nil {
			nx, err = dims[1].Len()
		}
	case 3:
		if nt, err = dims[0].Len(); err == nil {
			if ny, err = dims[1].Len(); err == nil {
				nx, err = dims[2].Len()
			}
		}
	default:
		return nil, fmt.Errorf("ncread: variable %q has %d dimensions, want 2 or 3", variable, len(dims))
	}
	if err != nil {
		return nil, fmt.Errorf("ncread: dimension lengths of %q: %w", variable, err)
	}

	if timeIndex < 0 || uint64(timeIndex) >= nt {
		return nil, fmt.Errorf("ncread: time index %d out of range [0, %d) for %q", timeIndex, nt, variable)
	}

	// Hyperslab read of the one requested slab. Projection files carry
	// decades of yearly steps; reading the whole variable just to keep one
	// step would cost hundreds of MB per request.
	start := []uint64{0, 0}
	count := []uint64{ny, nx}
	if len(dims) == 3 {
		start = []uint64{uint64(timeIndex), 0, 0}
		count = []uint64{1, ny, nx}
	}
	slab, err := readSectionFloat64(v, start, count, ny*nx)
	if err != nil {
		return nil, fmt.Errorf("ncread: read %q: %w", variable, err)
	}

	missing := r.missingValues(v)

	values := make([][]float64, ny)
	for i := uint64(0); i < ny; i++ {
		row := slab[i*nx : (i+1)*nx : (i+1)*nx]
		for j, val := range row {
			if isMissing(val, missing) {
				row[j] = math.NaN()
			}
		}
		values[i] = row
	}

	return &Field{Values: values, NY: int(ny), NX: int(nx)}, nil
}

// ReadAxes reads the 1-D projected coordinate axes, trying the common
// variable name patterns.
func (r *Reader) ReadAxes(path string) (x, y []float64, err error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, nil, fmt.Errorf("ncread: open %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	x, err = readAxis(nc, []string{"x", "x1", "lon", "longitude"})
	if err != nil {
		return nil, nil, fmt.Errorf("ncread: x axis in %s: %w", path, err)
	}
	y, err = readAxis(nc, []string{"y", "y1", "lat", "latitude"})
	if err != nil {
		return nil, nil, fmt.Errorf("ncread: y axis in %s: %w", path, err)
	}
	return x, y, nil
}

func readAxis(nc netcdf.Dataset, names []string) ([]float64, error) {
	for _, name := range names {
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		dims, err := v.Dims()
		if err != nil || len(dims) != 1 {
			continue
		}
		n, err := dims[0].Len()
		if err != nil {
			continue
		}
		vals, err := readAllFloat64(v, n)
		if err != nil {
			continue
		}
		return vals, nil
	}
	return nil, fmt.Errorf("no axis variable found (tried %v)", names)
}

// missingValues collects the declared fill values plus configured sentinels.
func (r *Reader) missingValues(v netcdf.Var) []float64 {
	missing := append([]float64(nil), r.Sentinels...)
	for _, name := range []string{"_FillValue", "missing_value"} {
		a := v.Attr(name)
		if a == (netcdf.Attr{}) {
			continue
		}
		if n, err := a.Len(); err == nil && n > 0 {
			buf64 := make([]float64, 1)
			if err := a.ReadFloat64s(buf64); err == nil {
				missing = append(missing, buf64[0])
				continue
			}
			buf32 := make([]float32, 1)
			if err := a.ReadFloat32s(buf32); err == nil {
				missing = append(missing, float64(buf32[0]))
			}
		}
	}
	return missing
}

func isMissing(val float64, missing []float64) bool {
	for _, m := range missing {
		if val == m {
			return true
		}
	}
	return false
}

// readSectionFloat64 reads one hyperslab of a variable into a flat float64
// slice, converting from the on-disk type.
func readSectionFloat64(v netcdf.Var, start, count []uint64, total uint64) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("get var type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, total)
		if err := v.ReadFloat64Slice(data, start, count); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32Slice(tmp, start, count); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32Slice(tmp, start, count); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16Slice(tmp, start, count); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}

// readAllFloat64 reads an entire variable into a flat float64 slice,
// converting from the on-disk type.
func readAllFloat64(v netcdf.Var, total uint64) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("get var type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, total)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, total)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}
