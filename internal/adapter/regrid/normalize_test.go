package regrid

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/Englacial/ismip-indexing/internal/domain"
)

// uniformTestGrid builds a 4x4 source grid with 1 km spacing at the origin.
func uniformTestGrid() *domain.GridDefinition {
	return &domain.GridDefinition{
		Model:       "TEST",
		Projection:  "EPSG:3031",
		X:           []float64{0, 1000, 2000, 3000},
		Y:           []float64{0, 1000, 2000, 3000},
		ResolutionM: 1000,
	}
}

// alignedTarget matches the source cell centers exactly.
func alignedTarget() domain.AnalysisGrid {
	return domain.AnalysisGrid{
		IceSheet: "AIS", Projection: "EPSG:3031",
		X0: 0, Y0: 0, CellM: 1000, NX: 4, NY: 4,
	}
}

func TestNormalize_AlignedGridsCopyValues(t *testing.T) {
	grid := uniformTestGrid()
	field := [][]float64{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
		{13, 14, 15, 16},
	}

	for _, method := range []Method{MethodNearest, MethodWeighted} {
		values, missing, err := Normalize(field, grid, alignedTarget(), method)
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		if !reflect.DeepEqual(values, field) {
			t.Errorf("%s: aligned resample changed values: %v", method, values)
		}
		for j := range missing {
			for i := range missing[j] {
				if missing[j][i] {
					t.Errorf("%s: cell (%d,%d) marked missing", method, j, i)
				}
			}
		}
	}
}

func TestNormalize_OffsetTargetInterpolates(t *testing.T) {
	grid := uniformTestGrid()
	field := [][]float64{
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}
	field[1][1] = 8 // Lone nonzero at (1000, 1000).

	// Target centers offset half a cell: (500, 500) etc.
	target := domain.AnalysisGrid{X0: 500, Y0: 500, CellM: 1000, NX: 3, NY: 3}

	values, _, err := Normalize(field, grid, target, MethodWeighted)
	if err != nil {
		t.Fatal(err)
	}
	// (500, 500) is equidistant from four source cells, one of which holds 8;
	// the weighted average must sit strictly between 0 and 8.
	if values[0][0] <= 0 || values[0][0] >= 8 {
		t.Errorf("weighted value = %v, want within (0, 8)", values[0][0])
	}
}

func TestNormalize_MaskedRegionStaysMissing(t *testing.T) {
	grid := uniformTestGrid()
	// Left half is outside ice cover.
	grid.ValidMask = [][]bool{
		{false, false, true, true},
		{false, false, true, true},
		{false, false, true, true},
		{false, false, true, true},
	}
	field := [][]float64{
		{0, 0, 3, 4},
		{0, 0, 7, 8},
		{0, 0, 11, 12},
		{0, 0, 15, 16},
	}

	values, missing, err := Normalize(field, grid, alignedTarget(), MethodNearest)
	if err != nil {
		t.Fatal(err)
	}

	// Column 0 is beyond the search radius of any valid cell: missing, and
	// NOT silently zero even though the source stored zeros there.
	for j := 0; j < 4; j++ {
		if !missing[j][0] {
			t.Errorf("cell (%d,0) not marked missing", j)
		}
		if !math.IsNaN(values[j][0]) {
			t.Errorf("cell (%d,0) = %v, want NaN sentinel", j, values[j][0])
		}
	}
	// Column 2 maps straight onto valid cells.
	for j := 0; j < 4; j++ {
		if missing[j][2] {
			t.Errorf("cell (%d,2) wrongly missing", j)
		}
	}
}

func TestNormalize_NaNFootprintPropagates(t *testing.T) {
	grid := uniformTestGrid()
	nan := math.NaN()
	field := [][]float64{
		{1, 1, 1, 1},
		{1, nan, nan, 1},
		{1, nan, nan, 1},
		{1, 1, 1, 1},
	}

	// Shrink the radius to the cell size so interior NaNs cannot be painted
	// over by their valid neighbors.
	small := *grid
	small.ResolutionM = 600

	values, missing, err := Normalize(field, &small, alignedTarget(), MethodNearest)
	if err != nil {
		t.Fatal(err)
	}
	for _, cell := range [][2]int{{1, 1}, {1, 2}, {2, 1}, {2, 2}} {
		j, i := cell[0], cell[1]
		if !missing[j][i] {
			t.Errorf("cell (%d,%d) inside NaN footprint not missing", j, i)
		}
	}
	if missing[0][0] || math.IsNaN(values[0][0]) {
		t.Error("valid border cell wrongly missing")
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	// Curvilinear grid with several cells equidistant from target centers:
	// the tie-break must make repeated runs identical.
	grid := &domain.GridDefinition{
		Model:      "CURVI",
		Projection: "EPSG:3031",
		XC: [][]float64{
			{0, 1000, 2000},
			{100, 1100, 2100},
			{200, 1200, 2200},
		},
		YC: [][]float64{
			{0, 0, 0},
			{1000, 1000, 1000},
			{2000, 2000, 2000},
		},
		ResolutionM: 1000,
	}
	field := [][]float64{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	}
	target := domain.AnalysisGrid{X0: 250, Y0: 250, CellM: 700, NX: 4, NY: 4}

	for _, method := range []Method{MethodNearest, MethodWeighted} {
		first, firstMiss, err := Normalize(field, grid, target, method)
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		for run := 0; run < 5; run++ {
			again, againMiss, err := Normalize(field, grid, target, method)
			if err != nil {
				t.Fatalf("%s: %v", method, err)
			}
			if !reflect.DeepEqual(first, again) || !reflect.DeepEqual(firstMiss, againMiss) {
				t.Fatalf("%s: run %d differs from first run", method, run)
			}
		}
	}
}

func TestNormalize_TieBreakRowMajor(t *testing.T) {
	// Two source cells exactly equidistant from the target center; the one
	// with the lower row-major index must win.
	grid := &domain.GridDefinition{
		Model:       "TIE",
		Projection:  "EPSG:3031",
		X:           []float64{0, 2000},
		Y:           []float64{0, 2000},
		ResolutionM: 2000,
	}
	field := [][]float64{
		{10, 20},
		{30, 40},
	}
	// Center (1000, 0) is equidistant from (0,0)=10 and (2000,0)=20.
	target := domain.AnalysisGrid{X0: 1000, Y0: 0, CellM: 1000, NX: 1, NY: 1}

	values, _, err := Normalize(field, grid, target, MethodNearest)
	if err != nil {
		t.Fatal(err)
	}
	if values[0][0] != 10 {
		t.Errorf("tie resolved to %v, want 10 (lower row-major index)", values[0][0])
	}
}

func TestNormalize_EmptyField(t *testing.T) {
	_, _, err := Normalize(nil, uniformTestGrid(), alignedTarget(), MethodNearest)
	if !errors.Is(err, domain.ErrEmptyField) {
		t.Errorf("err = %v, want ErrEmptyField", err)
	}

	_, _, err = Normalize([][]float64{{}}, uniformTestGrid(), alignedTarget(), MethodNearest)
	if !errors.Is(err, domain.ErrEmptyField) {
		t.Errorf("err = %v, want ErrEmptyField", err)
	}
}

func TestNormalize_ShapeMismatch(t *testing.T) {
	field := [][]float64{
		{1, 2},
		{3, 4},
	}
	_, _, err := Normalize(field, uniformTestGrid(), alignedTarget(), MethodNearest)
	if !errors.Is(err, domain.ErrGridShapeMismatch) {
		t.Errorf("err = %v, want ErrGridShapeMismatch", err)
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"nearest", MethodNearest, false},
		{"weighted", MethodWeighted, false},
		{"", MethodNearest, false},
		{"bilinear", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMethod(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseMethod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
