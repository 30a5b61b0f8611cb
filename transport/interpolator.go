package transport

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/rsaemann/GULLI-sub003/mesh"
	"github.com/rsaemann/GULLI-sub003/timeline"
)

// VelocityField provides per-cell velocities by timestep index.
// *flowfield.Store satisfies it.
type VelocityField interface {
	VelocityAtCell(cell int32, t int) (float32, float32)
	Steps() int
}

// InterpolationMode selects how cell velocities are blended at a particle position.
type InterpolationMode int

const (
	// CellNeighbor blends the own cell with its three across-edge neighbors.
	CellNeighbor InterpolationMode = iota
	// NodeWeighted builds a velocity per vertex from the cells around it and blends
	// the three vertex velocities barycentrically.
	NodeWeighted
)

// ParseInterpolationMode parses "cell_neighbor" or "node_weighted".
func ParseInterpolationMode(s string) (InterpolationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cell_neighbor", "":
		return CellNeighbor, nil
	case "node_weighted":
		return NodeWeighted, nil
	}
	return CellNeighbor, fmt.Errorf("unknown interpolation mode %q", s)
}

// NodeWeighting chooses the per-vertex weights of the surrounding cells.
type NodeWeighting int

const (
	// UniformWeights gives each touching cell 1/n.
	UniformWeights NodeWeighting = iota
	// AreaWeights weights each touching cell by its share of the total area.
	AreaWeights
)

// ParseNodeWeighting parses "uniform" or "area".
func ParseNodeWeighting(s string) (NodeWeighting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uniform", "":
		return UniformWeights, nil
	case "area":
		return AreaWeights, nil
	}
	return UniformWeights, fmt.Errorf("unknown node weighting %q", s)
}

// DefaultDivisor normalizes the own cell plus three discounted neighbors.
const DefaultDivisor = 4

// InterpolatorOptions configures an Interpolator.
type InterpolatorOptions struct {
	Mode      InterpolationMode
	Divisor   float64 // CellNeighbor only, DefaultDivisor when zero
	Weighting NodeWeighting

	// NodeWeights overrides Weighting: one weight per entry of mesh.NodeCells(v)
	// for every vertex v.
	NodeWeights [][]float64
}

// Interpolator evaluates the velocity at a particle position and simulation time.
// Safe for concurrent use when the field is.
type Interpolator struct {
	mesh    *mesh.Mesh
	field   VelocityField
	tl      *timeline.Timeline
	mode    InterpolationMode
	divisor float64
	weights [][]float64 // per vertex, aligned with mesh.NodeCells
}

// NewInterpolator builds an interpolator. The timeline must have one entry per
// field timestep.
func NewInterpolator(m *mesh.Mesh, field VelocityField, tl *timeline.Timeline, opts InterpolatorOptions) (*Interpolator, error) {
	if m == nil || field == nil || tl == nil {
		return nil, errors.New("transport: interpolator needs a mesh, field and timeline")
	}
	if tl.Len() != field.Steps() {
		return nil, fmt.Errorf("transport: timeline has %d steps, field has %d", tl.Len(), field.Steps())
	}
	if opts.Divisor == 0 {
		opts.Divisor = DefaultDivisor
	}
	if opts.Divisor < 0 || math.IsNaN(opts.Divisor) || math.IsInf(opts.Divisor, 0) {
		return nil, fmt.Errorf("transport: invalid divisor %v", opts.Divisor)
	}

	ip := &Interpolator{
		mesh:    m,
		field:   field,
		tl:      tl,
		mode:    opts.Mode,
		divisor: opts.Divisor,
	}
	if opts.Mode == NodeWeighted {
		w, err := nodeWeights(m, opts)
		if err != nil {
			return nil, err
		}
		ip.weights = w
	}
	return ip, nil
}

func nodeWeights(m *mesh.Mesh, opts InterpolatorOptions) ([][]float64, error) {
	n := m.NumVertices()
	if opts.NodeWeights != nil {
		if len(opts.NodeWeights) != n {
			return nil, fmt.Errorf("transport: %d node weight rows for %d vertices", len(opts.NodeWeights), n)
		}
		for v := range opts.NodeWeights {
			if len(opts.NodeWeights[v]) != len(m.NodeCells(int32(v))) {
				return nil, fmt.Errorf("transport: vertex %d has %d weights for %d cells", v, len(opts.NodeWeights[v]), len(m.NodeCells(int32(v))))
			}
		}
		return opts.NodeWeights, nil
	}

	out := make([][]float64, n)
	for v := range out {
		cells := m.NodeCells(int32(v))
		row := make([]float64, len(cells))
		switch opts.Weighting {
		case AreaWeights:
			var total float64
			for _, c := range cells {
				total += m.Area(c)
			}
			for j, c := range cells {
				if total > 0 {
					row[j] = m.Area(c) / total
				} else {
					row[j] = 1 / float64(len(cells))
				}
			}
		default:
			for j := range row {
				row[j] = 1 / float64(len(cells))
			}
		}
		out[v] = row
	}
	return out, nil
}

// VelocityAt returns the velocity at pos inside cell at simTime. Each contributing
// cell is blended in time first, then the cells are blended in space.
func (ip *Interpolator) VelocityAt(pos r2.Vec, cell int32, simTime float64) r2.Vec {
	if !ip.mesh.Valid(cell) {
		return r2.Vec{}
	}
	t0, frac := ip.tl.Index(simTime)
	w := clampWeights(ip.mesh.Barycentric(cell, pos))

	at := func(c int32) r2.Vec {
		x0, y0 := ip.field.VelocityAtCell(c, t0)
		if frac == 0 {
			return r2.Vec{X: float64(x0), Y: float64(y0)}
		}
		x1, y1 := ip.field.VelocityAtCell(c, t0+1)
		return r2.Vec{
			X: (1-frac)*float64(x0) + frac*float64(x1),
			Y: (1-frac)*float64(y0) + frac*float64(y1),
		}
	}

	var v r2.Vec
	switch ip.mode {
	case NodeWeighted:
		for k, vtx := range ip.mesh.Cell(cell).Vertices {
			var node r2.Vec
			for j, c := range ip.mesh.NodeCells(vtx) {
				node = r2.Add(node, r2.Scale(ip.weights[vtx][j], at(c)))
			}
			v = r2.Add(v, r2.Scale(w[k], node))
		}
	default:
		v = at(cell)
		for i := 0; i < 3; i++ {
			n := ip.mesh.Across(cell, i)
			if n == mesh.NoNeighbor {
				continue
			}
			v = r2.Add(v, r2.Scale(1-w[i], at(n)))
		}
		v = r2.Scale(1/ip.divisor, v)
	}
	return v
}

// clampWeights projects barycentric weights onto the triangle so positions
// slightly outside the cell still produce a convex blend.
func clampWeights(w [3]float64) [3]float64 {
	var sum float64
	for i := range w {
		if !(w[i] > 0) {
			w[i] = 0
		}
		sum += w[i]
	}
	if !(sum > 0) {
		return [3]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
