package domain

import "fmt"

// GridBounds delimits a polar-stereographic output domain in projected
// meters.
type GridBounds struct {
	XMin, XMax float64
	YMin, YMax float64
	Projection string // EPSG code of the projection/datum.
}

// StandardGridBounds holds the ISMIP6 output domain per ice sheet. All
// models submitting for a given ice sheet share this projection and extent;
// only the cell size and mesh structure differ between models.
var StandardGridBounds = map[string]GridBounds{
	"AIS": {XMin: -3040000, XMax: 3040000, YMin: -3040000, YMax: 3040000, Projection: "EPSG:3031"},
	"GIS": {XMin: -720000, XMax: 960000, YMin: -3450000, YMax: -570000, Projection: "EPSG:3413"},
}

// StandardResolutionsKM lists the diagnostic grid cell sizes, coarsest first.
var StandardResolutionsKM = map[string][]float64{
	"AIS": {32, 16, 8, 4},
	"GIS": {20, 10, 5, 1},
}

// GridDefinition describes one model's native computational grid.
//
// Regular grids carry separable X/Y axes; curvilinear grids carry full 2-D
// coordinate arrays XC/YC indexed [row][col]. Exactly one representation is
// set.
type GridDefinition struct {
	Model      string
	Projection string

	X []float64
	Y []float64

	XC [][]float64
	YC [][]float64

	// ResolutionM is the nominal cell size in meters, used to scale the
	// normalizer's search radius.
	ResolutionM float64

	// ValidMask marks cells that carry data (ice-covered cells). Nil means
	// every cell is valid.
	ValidMask [][]bool
}

// Curvilinear reports whether the grid uses full 2-D coordinate arrays.
func (g *GridDefinition) Curvilinear() bool {
	return len(g.XC) > 0
}

// Dims returns the declared (rows, cols) of fields on this grid.
func (g *GridDefinition) Dims() (ny, nx int) {
	if g.Curvilinear() {
		if len(g.XC) == 0 {
			return 0, 0
		}
		return len(g.XC), len(g.XC[0])
	}
	return len(g.Y), len(g.X)
}

// Validate checks internal consistency of the grid definition.
func (g *GridDefinition) Validate() error {
	if g.ResolutionM <= 0 {
		return fmt.Errorf("grid %s: resolution must be positive", g.Model)
	}
	if g.Curvilinear() {
		if len(g.YC) != len(g.XC) {
			return fmt.Errorf("grid %s: XC has %d rows, YC has %d", g.Model, len(g.XC), len(g.YC))
		}
		for i := range g.XC {
			if len(g.XC[i]) != len(g.XC[0]) || len(g.YC[i]) != len(g.XC[0]) {
				return fmt.Errorf("grid %s: ragged coordinate arrays at row %d", g.Model, i)
			}
		}
	} else {
		if len(g.X) < 2 || len(g.Y) < 2 {
			return fmt.Errorf("grid %s: separable axes need at least 2 points each", g.Model)
		}
		for i := 1; i < len(g.X); i++ {
			if g.X[i] <= g.X[i-1] {
				return fmt.Errorf("grid %s: X axis must be strictly increasing", g.Model)
			}
		}
		for i := 1; i < len(g.Y); i++ {
			if g.Y[i] <= g.Y[i-1] {
				return fmt.Errorf("grid %s: Y axis must be strictly increasing", g.Model)
			}
		}
	}
	if g.ValidMask != nil {
		ny, nx := g.Dims()
		if len(g.ValidMask) != ny {
			return fmt.Errorf("grid %s: mask has %d rows, grid has %d", g.Model, len(g.ValidMask), ny)
		}
		for i := range g.ValidMask {
			if len(g.ValidMask[i]) != nx {
				return fmt.Errorf("grid %s: mask row %d has %d cols, grid has %d", g.Model, i, len(g.ValidMask[i]), nx)
			}
		}
	}
	return nil
}

// CellCenter returns the projected coordinates of cell (row, col).
func (g *GridDefinition) CellCenter(row, col int) (x, y float64) {
	if g.Curvilinear() {
		return g.XC[row][col], g.YC[row][col]
	}
	return g.X[col], g.Y[row]
}

// AnalysisGrid is the shared regular target grid all model fields are
// resampled onto. It is defined once at startup and immutable thereafter.
type AnalysisGrid struct {
	IceSheet   string
	Projection string

	// X0/Y0 are the center coordinates of cell (0, 0); CellM is the cell
	// size in meters.
	X0, Y0 float64
	CellM  float64
	NX, NY int
}

// StandardAnalysisGrid builds the comparison grid for an ice sheet at one of
// the standard resolutions, with cell centers offset half a cell from the
// domain edge.
func StandardAnalysisGrid(iceSheet string, resolutionKM float64) (AnalysisGrid, error) {
	bounds, ok := StandardGridBounds[iceSheet]
	if !ok {
		return AnalysisGrid{}, fmt.Errorf("no standard grid bounds for ice sheet %q", iceSheet)
	}
	supported := false
	for _, r := range StandardResolutionsKM[iceSheet] {
		if r == resolutionKM {
			supported = true
			break
		}
	}
	if !supported {
		return AnalysisGrid{}, fmt.Errorf("resolution %.0f km is not standard for %s (supported: %v)",
			resolutionKM, iceSheet, StandardResolutionsKM[iceSheet])
	}

	cell := resolutionKM * 1000
	return AnalysisGrid{
		IceSheet:   iceSheet,
		Projection: bounds.Projection,
		X0:         bounds.XMin + cell/2,
		Y0:         bounds.YMin + cell/2,
		CellM:      cell,
		NX:         int((bounds.XMax - bounds.XMin) / cell),
		NY:         int((bounds.YMax - bounds.YMin) / cell),
	}, nil
}

// XAt returns the x coordinate of column i.
func (g AnalysisGrid) XAt(i int) float64 { return g.X0 + float64(i)*g.CellM }

// YAt returns the y coordinate of row j.
func (g AnalysisGrid) YAt(j int) float64 { return g.Y0 + float64(j)*g.CellM }
