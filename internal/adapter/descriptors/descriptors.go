// Package descriptors loads vocabulary and grid descriptor files so
// deployments can extend the built-in tables without a rebuild.
package descriptors

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Englacial/ismip-indexing/internal/adapter/regrid"
	"github.com/Englacial/ismip-indexing/internal/domain"
)

// VocabularyFile is the on-disk shape of a vocabulary descriptor.
type VocabularyFile struct {
	Variables    map[string]string   `yaml:"variables"`
	Experiments  map[string]string   `yaml:"experiments"`
	IceSheets    []string            `yaml:"ice_sheets"`
	Institutions map[string][]string `yaml:"institutions"`
}

// GridFile describes the model grids of one ice sheet.
type GridFile struct {
	IceSheet string      `yaml:"ice_sheet"`
	Grids    []GridEntry `yaml:"grids"`
}

// GridEntry is either a uniform grid (resolution only) or an explicit one
// with its own axes.
type GridEntry struct {
	Model        string    `yaml:"model"`
	Projection   string    `yaml:"projection"`
	ResolutionKM float64   `yaml:"resolution_km"`
	X            []float64 `yaml:"x,omitempty"`
	Y            []float64 `yaml:"y,omitempty"`
}

// LoadVocabulary reads a vocabulary descriptor and merges it over base.
// Entries in the file extend the base tables; they never remove anything.
func LoadVocabulary(path string, base *domain.Vocabulary) (*domain.Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("descriptors: reading %s: %w", path, err)
	}

	var file VocabularyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("descriptors: parsing %s: %w", path, err)
	}

	merged := &domain.Vocabulary{
		Variables:    make(map[string]string, len(base.Variables)),
		Experiments:  make(map[string]string, len(base.Experiments)),
		IceSheets:    make(map[string]bool, len(base.IceSheets)),
		Institutions: make(map[string][]string, len(base.Institutions)),
	}
	for code, desc := range base.Variables {
		merged.Variables[code] = desc
	}
	for code, desc := range base.Experiments {
		merged.Experiments[code] = desc
	}
	for sheet := range base.IceSheets {
		merged.IceSheets[sheet] = true
	}
	for inst, models := range base.Institutions {
		merged.Institutions[inst] = append([]string{}, models...)
	}

	for code, desc := range file.Variables {
		merged.Variables[code] = desc
	}
	for code, desc := range file.Experiments {
		merged.Experiments[code] = desc
	}
	for _, sheet := range file.IceSheets {
		merged.IceSheets[sheet] = true
	}
	for inst, models := range file.Institutions {
		merged.Institutions[inst] = appendNew(merged.Institutions[inst], models)
	}
	return merged, nil
}

// LoadGrids reads a grid descriptor file and registers every entry.
func LoadGrids(path string, reg *regrid.Registry) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("descriptors: reading %s: %w", path, err)
	}

	var file GridFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("descriptors: parsing %s: %w", path, err)
	}
	if file.IceSheet == "" {
		return fmt.Errorf("descriptors: %s: missing ice_sheet", path)
	}

	for _, entry := range file.Grids {
		grid, err := entry.grid(file.IceSheet)
		if err != nil {
			return fmt.Errorf("descriptors: %s: model %s: %w", path, entry.Model, err)
		}
		if err := reg.Register(file.IceSheet, grid); err != nil {
			return fmt.Errorf("descriptors: %s: model %s: %w", path, entry.Model, err)
		}
	}
	return nil
}

func (e GridEntry) grid(iceSheet string) (*domain.GridDefinition, error) {
	if e.Model == "" {
		return nil, fmt.Errorf("missing model")
	}

	if len(e.X) > 0 || len(e.Y) > 0 {
		if e.ResolutionKM <= 0 {
			return nil, fmt.Errorf("explicit grid needs resolution_km")
		}
		projection := e.Projection
		if projection == "" {
			projection = domain.StandardGridBounds[iceSheet].Projection
		}
		return &domain.GridDefinition{
			Model:       e.Model,
			Projection:  projection,
			X:           e.X,
			Y:           e.Y,
			ResolutionM: e.ResolutionKM * 1000,
		}, nil
	}

	if e.ResolutionKM <= 0 {
		return nil, fmt.Errorf("missing resolution_km")
	}
	return regrid.UniformGrid(e.Model, iceSheet, e.ResolutionKM)
}

func appendNew(dst, add []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range add {
		if !seen[v] {
			dst = append(dst, v)
			seen[v] = true
		}
	}
	return dst
}
