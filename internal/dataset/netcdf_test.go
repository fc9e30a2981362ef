package dataset

import (
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/i474232898/pm25-data-api/internal/pm25"
)

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.nc")

	_, err := Load(path, DefaultLoadOptions())
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %T: %v", err, err)
	}
	if le.Path != path {
		t.Fatalf("expected path %q, got %q", path, le.Path)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected wrapped fs.ErrNotExist, got %v", err)
	}
}

func TestLoadRejectsBadFractions(t *testing.T) {
	opts := DefaultLoadOptions()
	opts.LonFraction = 0

	_, err := Load("whatever.nc", opts)
	if !errors.Is(err, errBadFraction) {
		t.Fatalf("expected errBadFraction, got %v", err)
	}
}

func TestAppendCellDropsMissing(t *testing.T) {
	g := grid{
		lats:    []float64{-55.5, -55.4},
		lons:    []float64{-180, -179.9, -179.8},
		missing: []float64{-999},
	}
	nan := math.NaN()

	var tbl pm25.Table
	for j, v := range []float64{1.5, nan, 2.5} {
		tbl = g.appendCell(tbl, 0, j, v)
	}
	for j, v := range []float64{-999, 3.5, nan} {
		tbl = g.appendCell(tbl, 1, j, v)
	}

	want := pm25.Table{
		{ID: 0, Latitude: -55.5, Longitude: -180, Measurement: 1.5},
		{ID: 1, Latitude: -55.5, Longitude: -179.8, Measurement: 2.5},
		{ID: 2, Latitude: -55.4, Longitude: -179.9, Measurement: 3.5},
	}
	assertTable(t, tbl, want)
}

func assertTable(t *testing.T, got, want pm25.Table) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func orderedMap(t *testing.T, vals map[string]any) api.AttributeMap {
	t.Helper()
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	m, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

// pm25Grid is a 4x6 latitude-major grid. Only the top-left 2x3 block
// survives fractions of 2; it holds one fill value and one NaN.
func pm25Grid() [][]float32 {
	nan := float32(math.NaN())
	g := [][]float32{
		{1, 2, -999, 100, 100, 100},
		{7, 8, nan, 100, 100, 100},
		{100, 100, 100, 100, 100, 100},
		{100, 100, 100, 100, 100, 100},
	}
	return g
}

func transpose(in [][]float32) [][]float32 {
	out := make([][]float32, len(in[0]))
	for j := range out {
		out[j] = make([]float32, len(in))
		for i := range in {
			out[j][i] = in[i][j]
		}
	}
	return out
}

// writeGrid writes a CDF file with lat/lon coordinates and a GWRPM25
// variable laid out along dims.
func writeGrid(t *testing.T, dims []string, values any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pm25.nc")

	w, err := cdf.OpenWriter(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vars := []struct {
		name string
		v    api.Variable
	}{
		{"lat", api.Variable{
			Values:     []float32{1, 2, 3, 4},
			Dimensions: []string{"lat"},
			Attributes: orderedMap(t, map[string]any{}),
		}},
		{"lon", api.Variable{
			Values:     []float32{10, 20, 30, 40, 50, 60},
			Dimensions: []string{"lon"},
			Attributes: orderedMap(t, map[string]any{}),
		}},
		{"GWRPM25", api.Variable{
			Values:     values,
			Dimensions: dims,
			Attributes: orderedMap(t, map[string]any{"_FillValue": float32(-999)}),
		}},
	}
	for _, v := range vars {
		if err := w.AddVar(v.name, v.v); err != nil {
			t.Fatalf("add %s: %v", v.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	latMajor := pm25.Table{
		{ID: 0, Latitude: 1, Longitude: 10, Measurement: 1},
		{ID: 1, Latitude: 1, Longitude: 20, Measurement: 2},
		{ID: 2, Latitude: 2, Longitude: 10, Measurement: 7},
		{ID: 3, Latitude: 2, Longitude: 20, Measurement: 8},
	}
	lonMajor := pm25.Table{
		{ID: 0, Latitude: 1, Longitude: 10, Measurement: 1},
		{ID: 1, Latitude: 2, Longitude: 10, Measurement: 7},
		{ID: 2, Latitude: 1, Longitude: 20, Measurement: 2},
		{ID: 3, Latitude: 2, Longitude: 20, Measurement: 8},
	}

	tests := []struct {
		name   string
		dims   []string
		values any
		want   pm25.Table
	}{
		{"lat lon", []string{"lat", "lon"}, pm25Grid(), latMajor},
		{"lon lat", []string{"lon", "lat"}, transpose(pm25Grid()), lonMajor},
		{"time lat lon", []string{"time", "lat", "lon"}, [][][]float32{pm25Grid()}, latMajor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultLoadOptions()
			opts.LatFraction = 2
			opts.LonFraction = 2

			got, err := Load(writeGrid(t, tt.dims, tt.values), opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertTable(t, got, tt.want)
		})
	}
}

func TestLoadUnknownVariable(t *testing.T) {
	path := writeGrid(t, []string{"lat", "lon"}, pm25Grid())
	opts := DefaultLoadOptions()
	opts.Variable = "PM10"

	_, err := Load(path, opts)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
}

func TestLoadFullGrid(t *testing.T) {
	opts := DefaultLoadOptions()
	opts.LatFraction = 1
	opts.LonFraction = 1

	got, err := Load(writeGrid(t, []string{"lat", "lon"}, pm25Grid()), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 24 cells minus one fill value and one NaN.
	if len(got) != 22 {
		t.Fatalf("expected 22 records, got %d", len(got))
	}
	if last := got[len(got)-1]; last.ID != 21 || last.Latitude != 4 || last.Longitude != 60 {
		t.Fatalf("unexpected last record %+v", last)
	}
}

func TestFloatRows(t *testing.T) {
	rows, err := floatRows([][]float32{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[1][0] != 3 {
		t.Fatalf("expected 3, got %v", rows[1][0])
	}

	plane, err := firstPlane([][][]float64{{{5, 6}}})
	if err != nil || plane[0][1] != 6 {
		t.Fatalf("unexpected plane %v, %v", plane, err)
	}

	if _, err := floatRows([][]int16{{1}}); !errors.Is(err, errBadType) {
		t.Fatalf("expected errBadType, got %v", err)
	}
}

func TestMissingValues(t *testing.T) {
	got := missingValues(orderedMap(t, map[string]any{"_FillValue": float32(-999), "missing_value": []float64{-1}, "units": "ug/m3"}))
	if len(got) != 2 || got[0] != -999 || got[1] != -1 {
		t.Fatalf("unexpected missing values %v", got)
	}
	if got := missingValues(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
