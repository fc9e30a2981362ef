// Package dataset loads the gridded PM2.5 dataset into a flat table.
package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/i474232898/pm25-data-api/internal/pm25"
)

// LoadError reports a dataset that could not be opened or decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load dataset %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadOptions selects the variable to read and how much of the grid to keep.
type LoadOptions struct {
	Variable string // measurement variable, e.g. GWRPM25
	LatDim   string
	LonDim   string

	// Only the first 1/LatFraction latitudes and 1/LonFraction longitudes
	// are kept.
	LatFraction int
	LonFraction int
}

// DefaultLoadOptions matches the layout of the global PM2.5 grid.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Variable:    "GWRPM25",
		LatDim:      "lat",
		LonDim:      "lon",
		LatFraction: 6,
		LonFraction: 6,
	}
}

var (
	errBadFraction = errors.New("fractions must be at least 1")
	errBadLayout   = errors.New("unsupported variable layout")
	errBadType     = errors.New("unsupported element type")
)

// Load reads the truncated grid from a NetCDF file and flattens it into a
// table. Missing values are dropped and ids are assigned by row position.
func Load(path string, opts LoadOptions) (pm25.Table, error) {
	tbl, err := load(path, opts)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return tbl, nil
}

func load(path string, opts LoadOptions) (pm25.Table, error) {
	if opts.LatFraction < 1 || opts.LonFraction < 1 {
		return nil, errBadFraction
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	slog.Info("opening NetCDF file", "path", path)
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer nc.Close()

	lats, err := coordValues(nc, opts.LatDim)
	if err != nil {
		return nil, fmt.Errorf("latitude %q: %w", opts.LatDim, err)
	}
	lons, err := coordValues(nc, opts.LonDim)
	if err != nil {
		return nil, fmt.Errorf("longitude %q: %w", opts.LonDim, err)
	}
	vg, err := nc.GetVarGetter(opts.Variable)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", opts.Variable, err)
	}

	g := grid{
		lats:    lats[:len(lats)/opts.LatFraction],
		lons:    lons[:len(lons)/opts.LonFraction],
		missing: missingValues(vg.Attributes()),
	}
	slog.Info("truncating grid",
		"latFraction", opts.LatFraction,
		"lonFraction", opts.LonFraction,
		"latCnt", len(lats),
		"lonCnt", len(lons),
		"latKept", len(g.lats),
		"lonKept", len(g.lons),
	)

	tbl := pm25.Table{}
	err = readCells(vg, opts, len(g.lats), len(g.lons), func(i, j int, v float64) {
		tbl = g.appendCell(tbl, i, j, v)
	})
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", opts.Variable, err)
	}

	slog.Info("dataset loaded",
		"records", len(tbl),
		"dropped", len(g.lats)*len(g.lons)-len(tbl),
	)
	if len(tbl) > 0 {
		slog.Debug("first record", "record", tbl[0])
	}
	return tbl, nil
}

// grid is the selected part of the coordinate space.
type grid struct {
	lats    []float64
	lons    []float64
	missing []float64
}

// appendCell appends the value at latitude i and longitude j to t unless it
// is missing.
func (g grid) appendCell(t pm25.Table, i, j int, v float64) pm25.Table {
	if g.isMissing(v) {
		return t
	}
	return append(t, pm25.Record{
		ID:          len(t),
		Latitude:    g.lats[i],
		Longitude:   g.lons[j],
		Measurement: v,
	})
}

func (g grid) isMissing(v float64) bool {
	return math.IsNaN(v) || slices.Contains(g.missing, v)
}

// readCells calls fn for every kept cell, walking the variable in its own
// dimension order: lat-major for (lat, lon), lon-major for (lon, lat).
func readCells(vg api.VarGetter, opts LoadOptions, nLat, nLon int, fn func(i, j int, v float64)) error {
	dims := vg.Dimensions()
	switch {
	case len(dims) == 2 && dims[0] == opts.LatDim && dims[1] == opts.LonDim:
		// One latitude at a time keeps only the selected rows in memory.
		for i := 0; i < nLat; i++ {
			v, err := vg.GetSlice(int64(i), int64(i+1))
			if err != nil {
				return err
			}
			rows, err := floatRows(v)
			if err != nil {
				return err
			}
			for j, x := range rows[0][:nLon] {
				fn(i, j, x)
			}
		}
		return nil

	case len(dims) == 2 && dims[0] == opts.LonDim && dims[1] == opts.LatDim:
		for j := 0; j < nLon; j++ {
			v, err := vg.GetSlice(int64(j), int64(j+1))
			if err != nil {
				return err
			}
			cols, err := floatRows(v)
			if err != nil {
				return err
			}
			for i, x := range cols[0][:nLat] {
				fn(i, j, x)
			}
		}
		return nil

	case len(dims) == 3 && vg.Len() == 1 && dims[1] == opts.LatDim && dims[2] == opts.LonDim:
		// Leading singleton such as a single time step.
		v, err := vg.GetSlice(0, 1)
		if err != nil {
			return err
		}
		rows, err := firstPlane(v)
		if err != nil {
			return err
		}
		for i := 0; i < nLat; i++ {
			for j, x := range rows[i][:nLon] {
				fn(i, j, x)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: dimensions %v", errBadLayout, dims)
}

func coordValues(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	v, err := vg.Values()
	if err != nil {
		return nil, err
	}
	switch vals := v.(type) {
	case []float32:
		return widen(vals), nil
	case []float64:
		return vals, nil
	}
	return nil, fmt.Errorf("%w: %T", errBadType, v)
}

func floatRows(v any) ([][]float64, error) {
	switch vals := v.(type) {
	case [][]float32:
		out := make([][]float64, len(vals))
		for i, r := range vals {
			out[i] = widen(r)
		}
		return out, nil
	case [][]float64:
		return vals, nil
	}
	return nil, fmt.Errorf("%w: %T", errBadType, v)
}

func firstPlane(v any) ([][]float64, error) {
	switch vals := v.(type) {
	case [][][]float32:
		return floatRows(vals[0])
	case [][][]float64:
		return vals[0], nil
	}
	return nil, fmt.Errorf("%w: %T", errBadType, v)
}

func widen(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, f := range in {
		out[i] = float64(f)
	}
	return out
}

// missingValues returns the sentinel values declared by the CF attributes
// _FillValue and missing_value.
func missingValues(attrs api.AttributeMap) []float64 {
	if attrs == nil {
		return nil
	}
	var out []float64
	for _, key := range []string{"_FillValue", "missing_value"} {
		v, ok := attrs.Get(key)
		if !ok {
			continue
		}
		switch a := v.(type) {
		case float32:
			out = append(out, float64(a))
		case float64:
			out = append(out, a)
		case []float32:
			out = append(out, widen(a)...)
		case []float64:
			out = append(out, a...)
		}
	}
	return out
}
