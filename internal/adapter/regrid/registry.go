package regrid

import (
	"fmt"
	"sort"

	"github.com/Englacial/ismip-indexing/internal/domain"
)

// Registry holds one native grid geometry per (ice sheet, model). It is
// populated once at startup from static descriptors and read-only afterwards,
// so no locking is needed.
type Registry struct {
	grids map[string]*domain.GridDefinition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{grids: make(map[string]*domain.GridDefinition)}
}

func gridKey(iceSheet, model string) string {
	return iceSheet + "/" + model
}

// Register adds a grid definition. Registering a model twice for the same
// ice sheet is an error: the invariant is exactly one geometry per model.
func (r *Registry) Register(iceSheet string, g *domain.GridDefinition) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("regrid: register %s/%s: %w", iceSheet, g.Model, err)
	}
	key := gridKey(iceSheet, g.Model)
	if _, exists := r.grids[key]; exists {
		return fmt.Errorf("regrid: grid for %s already registered", key)
	}
	r.grids[key] = g
	return nil
}

// GridFor returns the native grid geometry for a model. The error wraps
// domain.ErrUnknownModelGrid, which is fatal for normalization requests on
// that model but must not prevent indexing or listing its files.
func (r *Registry) GridFor(iceSheet, model string) (*domain.GridDefinition, error) {
	g, ok := r.grids[gridKey(iceSheet, model)]
	if !ok {
		return nil, fmt.Errorf("regrid: %s/%s: %w", iceSheet, model, domain.ErrUnknownModelGrid)
	}
	return g, nil
}

// Models lists the registered (ice sheet, model) keys.
func (r *Registry) Models() []string {
	keys := make([]string, 0, len(r.grids))
	for k := range r.grids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UniformGrid builds a regular separable-axis grid spanning the standard
// output domain of an ice sheet at the given cell size.
func UniformGrid(model, iceSheet string, resolutionKM float64) (*domain.GridDefinition, error) {
	bounds, ok := domain.StandardGridBounds[iceSheet]
	if !ok {
		return nil, fmt.Errorf("regrid: no standard bounds for ice sheet %q", iceSheet)
	}
	cell := resolutionKM * 1000
	nx := int((bounds.XMax-bounds.XMin)/cell) + 1
	ny := int((bounds.YMax-bounds.YMin)/cell) + 1

	x := make([]float64, nx)
	for i := range x {
		x[i] = bounds.XMin + float64(i)*cell
	}
	y := make([]float64, ny)
	for j := range y {
		y[j] = bounds.YMin + float64(j)*cell
	}

	return &domain.GridDefinition{
		Model:       model,
		Projection:  bounds.Projection,
		X:           x,
		Y:           y,
		ResolutionM: cell,
	}, nil
}

// builtinGrids records each model's nominal submission grid. Models
// submitting on irregular meshes are represented by the regular diagnostic
// grid their outputs were archived on; true curvilinear geometries come in
// through descriptor files instead.
var builtinGrids = []struct {
	iceSheet     string
	model        string
	resolutionKM float64
}{
	{"AIS", "PISM1", 8},
	{"AIS", "MALI", 8},
	{"AIS", "SICOPOLIS", 8},
	{"AIS", "IMAUICE1", 32},
	{"AIS", "IMAUICE2", 32},
	{"AIS", "ISSM", 8},
	{"AIS", "ISSM1", 8},
	{"AIS", "ISSM2", 8},
	{"AIS", "GRISLI", 16},
	{"AIS", "CISM", 4},
	{"AIS", "PISM2", 8},
	{"AIS", "fETISh_16km", 16},
	{"AIS", "fETISh_32km", 32},
	{"AIS", "ElmerIce", 16},
	{"AIS", "AISMPALEO", 32},
	{"AIS", "PISM", 16},
	{"GIS", "PISM1", 5},
	{"GIS", "PISM2", 5},
	{"GIS", "ISSM1", 5},
	{"GIS", "ISSM2", 5},
	{"GIS", "BISICLES", 5},
	{"GIS", "CISSM", 5},
	{"GIS", "GSM1", 5},
	{"GIS", "GSM2", 5},
	{"GIS", "GRISLI2", 5},
	{"GIS", "SICOPOLIS1", 5},
	{"GIS", "SICOPOLIS2", 5},
	{"GIS", "SICOPOLIS3", 5},
	{"GIS", "GISMHOMv1", 5},
	{"GIS", "CISM", 5},
	{"GIS", "ElmerIce", 1},
	{"GIS", "IMAUICE1", 5},
	{"GIS", "IMAUICE2", 5},
	{"GIS", "MALI", 5},
}

// DefaultRegistry returns the registry seeded with the built-in grid table.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, bg := range builtinGrids {
		g, err := UniformGrid(bg.model, bg.iceSheet, bg.resolutionKM)
		if err != nil {
			// Built-in table only references standard ice sheets.
			panic(err)
		}
		if err := r.Register(bg.iceSheet, g); err != nil {
			panic(err)
		}
	}
	return r
}
