// Package transport moves particles over the surface mesh: it resolves which cell a
// displaced particle lands in and interpolates the velocity that drives it.
package transport

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/rsaemann/GULLI-sub003/mesh"
)

const (
	// insideTol absorbs round-off for points sitting on a shared edge.
	insideTol = 1e-12
	// crossTol widens the [0,1] acceptance window of edge intersections.
	crossTol = 1e-9
	// parallelTol is the relative cross product below which two segments are parallel.
	parallelTol = 1e-12
)

// Outcome tells how a Resolution was reached.
type Outcome uint8

const (
	// Inside means the new position lies in the starting cell.
	Inside Outcome = iota
	// Walked means the particle crossed one or more shared edges.
	Walked
	// Boundary means the position was clipped onto an edge of the final cell, either
	// a domain boundary or the edge where the hop budget ran out.
	Boundary
	// Snapped means no edge intersection was usable and the particle was moved to
	// the centroid of its cell.
	Snapped
)

func (o Outcome) String() string {
	switch o {
	case Inside:
		return "inside"
	case Walked:
		return "walked"
	case Boundary:
		return "boundary"
	case Snapped:
		return "snapped"
	}
	return "unknown"
}

// Resolution is the result of resolving a displacement against the mesh.
type Resolution struct {
	Cell    int32
	Pos     r2.Vec
	Hops    int
	Outcome Outcome
}

// Localizer tracks particles across mesh cells. It holds no mutable state and is
// safe for concurrent use.
type Localizer struct {
	mesh *mesh.Mesh
}

// NewLocalizer returns a localizer over m.
func NewLocalizer(m *mesh.Mesh) *Localizer {
	return &Localizer{mesh: m}
}

// Locate returns the cell holding the particle after it moved from oldPos to
// newPos, and its position, clipped back onto the mesh when it left the domain.
func (l *Localizer) Locate(cell int32, oldPos, newPos r2.Vec, maxHops int) (int32, r2.Vec) {
	r := l.Resolve(cell, oldPos, newPos, maxHops)
	return r.Cell, r.Pos
}

// Resolve is Locate with diagnostics. It never fails: the returned cell is always
// valid and the position always lies on the mesh.
func (l *Localizer) Resolve(cell int32, oldPos, newPos r2.Vec, maxHops int) Resolution {
	m := l.mesh
	if !m.Valid(cell) {
		cell = l.fallbackCell(oldPos)
	}

	cur := cell
	hops := 0
	for {
		w := m.Barycentric(cur, newPos)
		if math.IsNaN(w[0]) || math.IsNaN(w[1]) || math.IsNaN(w[2]) {
			return l.snap(cur, hops)
		}

		primary, secondary := violated(w)
		if primary < 0 {
			out := Inside
			if hops > 0 {
				out = Walked
			}
			return Resolution{Cell: cur, Pos: newPos, Hops: hops, Outcome: out}
		}

		if hops < maxHops {
			if next := m.Across(cur, primary); next != mesh.NoNeighbor {
				cur = next
				hops++
				continue
			}
		}

		if p, ok := l.clip(cur, primary, oldPos, newPos); ok {
			return Resolution{Cell: cur, Pos: p, Hops: hops, Outcome: Boundary}
		}
		if secondary >= 0 {
			if p, ok := l.clip(cur, secondary, oldPos, newPos); ok {
				return Resolution{Cell: cur, Pos: p, Hops: hops, Outcome: Boundary}
			}
		}
		return l.snap(cur, hops)
	}
}

// violated returns the vertex opposite the most negative barycentric weight and,
// if another weight is negative too, that one. -1 marks none.
func violated(w [3]float64) (primary, secondary int) {
	primary, secondary = -1, -1
	for i, wi := range w {
		if wi >= -insideTol {
			continue
		}
		switch {
		case primary < 0:
			primary = i
		case wi < w[primary]:
			primary, secondary = i, primary
		default:
			secondary = i
		}
	}
	return primary, secondary
}

// clip intersects the path with the edge opposite vertex i of cell and returns
// the crossing point.
func (l *Localizer) clip(cell int32, i int, oldPos, newPos r2.Vec) (r2.Vec, bool) {
	a, b := l.mesh.Edge(cell, i)
	s, ok := intersect(oldPos, r2.Sub(newPos, oldPos), a, r2.Sub(b, a))
	if !ok {
		return r2.Vec{}, false
	}
	return r2.Add(oldPos, r2.Scale(s, r2.Sub(newPos, oldPos))), true
}

// intersect returns the parameter s along p+s*r where it meets the segment a+u*e,
// requiring both s and u in [0,1].
func intersect(p, r, a, e r2.Vec) (float64, bool) {
	den := r2.Cross(r, e)
	scale := r2.Norm(r) * r2.Norm(e)
	if scale == 0 || math.Abs(den) <= parallelTol*scale {
		return 0, false
	}
	q := r2.Sub(a, p)
	s := r2.Cross(q, e) / den
	u := r2.Cross(q, r) / den
	if s < -crossTol || s > 1+crossTol || u < -crossTol || u > 1+crossTol {
		return 0, false
	}
	return math.Min(1, math.Max(0, s)), true
}

func (l *Localizer) snap(cell int32, hops int) Resolution {
	return Resolution{Cell: cell, Pos: l.mesh.Centroid(cell), Hops: hops, Outcome: Snapped}
}

// fallbackCell finds a starting cell for a particle whose cell id is unusable:
// the cell under p, or else the one with the nearest centroid.
func (l *Localizer) fallbackCell(p r2.Vec) int32 {
	if c := l.mesh.FindCell(p); c != mesh.NoNeighbor {
		return c
	}
	best, bestD := int32(0), math.Inf(1)
	for id := int32(0); id < int32(l.mesh.NumCells()); id++ {
		if d := r2.Norm2(r2.Sub(l.mesh.Centroid(id), p)); d < bestD {
			best, bestD = id, d
		}
	}
	return best
}
