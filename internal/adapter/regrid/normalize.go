// Package regrid maps fields from per-model native grids onto the shared
// analysis grid, and holds the read-only registry of native grid geometries.
package regrid

import (
	"fmt"
	"math"

	"github.com/Englacial/ismip-indexing/internal/domain"
)

// Method selects how candidate source cells are combined per target cell.
type Method string

const (
	// MethodNearest takes the single nearest valid source cell.
	MethodNearest Method = "nearest"

	// MethodWeighted takes an inverse-distance weighted average of the
	// valid source cells inside the search radius.
	MethodWeighted Method = "weighted"
)

// ParseMethod validates a method flag from configuration or a request.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodNearest, MethodWeighted:
		return Method(s), nil
	case "":
		return MethodNearest, nil
	default:
		return "", fmt.Errorf("regrid: unknown method %q (want %q or %q)", s, MethodNearest, MethodWeighted)
	}
}

// radiusFactor scales the source grid's nominal resolution into the search
// radius. 1.5 cells reaches the diagonal neighbors of a uniform grid without
// pulling in second-ring cells.
const radiusFactor = 1.5

// Normalize resamples a native-grid field onto the target analysis grid.
//
// Target cells with no valid source cell within the search radius are set to
// NaN and marked true in the returned missing mask, so callers can tell "no
// data available here" apart from any physical value, including zero. The
// result is deterministic: ties among equally near source cells are broken
// by row-major source index.
func Normalize(field [][]float64, grid *domain.GridDefinition, target domain.AnalysisGrid, method Method) ([][]float64, [][]bool, error) {
	if len(field) == 0 || len(field[0]) == 0 {
		return nil, nil, fmt.Errorf("regrid: %w", domain.ErrEmptyField)
	}
	if err := grid.Validate(); err != nil {
		return nil, nil, fmt.Errorf("regrid: %w", err)
	}
	ny, nx := grid.Dims()
	if len(field) != ny {
		return nil, nil, fmt.Errorf("regrid: field has %d rows, grid declares %d: %w",
			len(field), ny, domain.ErrGridShapeMismatch)
	}
	for i := range field {
		if len(field[i]) != nx {
			return nil, nil, fmt.Errorf("regrid: field row %d has %d cols, grid declares %d: %w",
				i, len(field[i]), nx, domain.ErrGridShapeMismatch)
		}
	}

	radius := radiusFactor * grid.ResolutionM
	index := buildSourceIndex(field, grid, radius)

	values := make([][]float64, target.NY)
	missing := make([][]bool, target.NY)
	for j := 0; j < target.NY; j++ {
		rowVals := make([]float64, target.NX)
		rowMiss := make([]bool, target.NX)
		ty := target.YAt(j)
		for i := 0; i < target.NX; i++ {
			val, ok := index.sample(target.XAt(i), ty, radius, method)
			if !ok {
				rowVals[i] = math.NaN()
				rowMiss[i] = true
			} else {
				rowVals[i] = val
			}
		}
		values[j] = rowVals
		missing[j] = rowMiss
	}
	return values, missing, nil
}

// sourcePoint is one valid source cell flattened into the spatial index.
type sourcePoint struct {
	x, y float64
	val  float64
	ord  int // Row-major source index, the tie-break priority.
}

// sourceIndex buckets valid source cells at the search-radius scale so each
// target cell only inspects a 3x3 bucket neighborhood.
type sourceIndex struct {
	x0, y0  float64
	size    float64
	nx, ny  int
	buckets [][]sourcePoint
}

func buildSourceIndex(field [][]float64, grid *domain.GridDefinition, radius float64) *sourceIndex {
	ny, nx := grid.Dims()

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	var points []sourcePoint
	for row := 0; row < ny; row++ {
		for col := 0; col < nx; col++ {
			if grid.ValidMask != nil && !grid.ValidMask[row][col] {
				continue
			}
			val := field[row][col]
			if math.IsNaN(val) {
				continue
			}
			x, y := grid.CellCenter(row, col)
			points = append(points, sourcePoint{x: x, y: y, val: val, ord: row*nx + col})
			minX = math.Min(minX, x)
			maxX = math.Max(maxX, x)
			minY = math.Min(minY, y)
			maxY = math.Max(maxY, y)
		}
	}

	idx := &sourceIndex{size: radius}
	if len(points) == 0 {
		idx.nx, idx.ny = 0, 0
		return idx
	}
	idx.x0, idx.y0 = minX, minY
	idx.nx = int((maxX-minX)/radius) + 1
	idx.ny = int((maxY-minY)/radius) + 1
	idx.buckets = make([][]sourcePoint, idx.nx*idx.ny)
	// Points are appended in row-major order, so each bucket's slice stays
	// ordered by tie-break priority.
	for _, p := range points {
		b := idx.bucketOf(p.x, p.y)
		idx.buckets[b] = append(idx.buckets[b], p)
	}
	return idx
}

func (idx *sourceIndex) bucketOf(x, y float64) int {
	bx := int((x - idx.x0) / idx.size)
	by := int((y - idx.y0) / idx.size)
	return by*idx.nx + bx
}

// sample combines the valid source cells within radius of (x, y).
func (idx *sourceIndex) sample(x, y, radius float64, method Method) (float64, bool) {
	if idx.nx == 0 {
		return 0, false
	}

	cx := int(math.Floor((x - idx.x0) / idx.size))
	cy := int(math.Floor((y - idx.y0) / idx.size))
	r2 := radius * radius

	best := sourcePoint{ord: -1}
	bestD2 := math.Inf(1)
	var weightSum, valueSum float64
	found := false

	for by := cy - 1; by <= cy+1; by++ {
		if by < 0 || by >= idx.ny {
			continue
		}
		for bx := cx - 1; bx <= cx+1; bx++ {
			if bx < 0 || bx >= idx.nx {
				continue
			}
			for _, p := range idx.buckets[by*idx.nx+bx] {
				dx, dy := p.x-x, p.y-y
				d2 := dx*dx + dy*dy
				if d2 > r2 {
					continue
				}
				found = true
				switch method {
				case MethodWeighted:
					if d2 == 0 {
						// Exact hit: the target center coincides with a
						// source cell; use it directly.
						return p.val, true
					}
					w := 1 / d2
					weightSum += w
					valueSum += w * p.val
				default:
					if d2 < bestD2 || (d2 == bestD2 && p.ord < best.ord) {
						bestD2 = d2
						best = p
					}
				}
			}
		}
	}

	if !found {
		return 0, false
	}
	if method == MethodWeighted {
		return valueSum / weightSum, true
	}
	return best.val, true
}
