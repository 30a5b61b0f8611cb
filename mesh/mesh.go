// Package mesh provides the immutable triangulated land surface that particles move over.
package mesh

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// NoNeighbor marks a cell edge on the domain boundary.
const NoNeighbor int32 = -1

// maxReportedErrors caps how many adjacency problems New reports at once.
const maxReportedErrors = 32

// Vertex is a mesh node. Z is the ground elevation.
type Vertex struct {
	X, Y, Z float64
}

// Cell is one triangle of the surface mesh.
// Neighbors holds up to three across-edge cells in arbitrary slot order.
type Cell struct {
	Vertices  [3]int32
	Neighbors [3]int32
}

// Bounds is an axis-aligned extent.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether p lies within the bounds.
func (b Bounds) Contains(p r2.Vec) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Width returns the x extent.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the y extent.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Mesh is safe for concurrent use; nothing is mutated after New returns.
type Mesh struct {
	vertices []Vertex
	cells    []Cell

	centroids []r2.Vec
	elevation []float64
	area      []float64
	across    [][3]int32   // neighbor across the edge opposite vertex i
	distance  [][3]float64 // centroid distance per neighbor slot
	nodeCells [][]int32

	bounds Bounds
	eps    float64 // coincidence tolerance for duplicated vertices
	index  *Index
}

// New validates the adjacency and builds the derived geometry.
// Any corrupt index or asymmetric neighbor link is returned as a joined error.
func New(vertices []Vertex, cells []Cell) (*Mesh, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("mesh needs at least 3 vertices, got %d", len(vertices))
	}
	if len(cells) == 0 {
		return nil, errors.New("mesh has no cells")
	}

	m := &Mesh{
		vertices: vertices,
		cells:    cells,
	}
	m.bounds = computeBounds(vertices)
	m.eps = 1e-9 * math.Max(1, math.Max(m.bounds.Width(), m.bounds.Height()))

	if err := m.validate(); err != nil {
		return nil, err
	}

	m.computeDerived()
	m.index = newIndex(m)
	return m, nil
}

func computeBounds(vertices []Vertex) Bounds {
	b := Bounds{
		MinX: math.MaxFloat64, MinY: math.MaxFloat64,
		MaxX: -math.MaxFloat64, MaxY: -math.MaxFloat64,
	}
	for _, v := range vertices {
		b.MinX = math.Min(b.MinX, v.X)
		b.MinY = math.Min(b.MinY, v.Y)
		b.MaxX = math.Max(b.MaxX, v.X)
		b.MaxY = math.Max(b.MaxY, v.Y)
	}
	return b
}

func (m *Mesh) validate() error {
	var errs []error
	report := func(err error) {
		if len(errs) < maxReportedErrors {
			errs = append(errs, err)
		}
	}

	nv, nc := int32(len(m.vertices)), int32(len(m.cells))
	for id, c := range m.cells {
		for k, v := range c.Vertices {
			if v < 0 || v >= nv {
				report(&TopologyError{Cell: int32(id), Slot: k, Err: fmt.Errorf("%w: vertex %d", ErrIndexOutOfRange, v)})
			}
		}
		for k, n := range c.Neighbors {
			if n == NoNeighbor {
				continue
			}
			if n < 0 || n >= nc {
				report(&TopologyError{Cell: int32(id), Slot: k, Err: fmt.Errorf("%w: neighbor %d", ErrIndexOutOfRange, n)})
			}
			if n == int32(id) {
				report(&TopologyError{Cell: int32(id), Slot: k, Err: ErrSelfNeighbor})
			}
		}
	}
	// Shared-edge and symmetry checks need every index in range.
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for id, c := range m.cells {
		for k, n := range c.Neighbors {
			if n == NoNeighbor || n == int32(id) {
				continue
			}
			if m.sharedVertices(int32(id), n) < 2 {
				report(&TopologyError{Cell: int32(id), Slot: k, Err: fmt.Errorf("%w: neighbor %d", ErrNotAdjacent, n)})
				continue
			}
			if slotOf(m.cells[n].Neighbors, int32(id)) < 0 {
				report(&TopologyError{Cell: int32(id), Slot: k, Err: fmt.Errorf("%w: neighbor %d does not list %d", ErrAsymmetricNeighbor, n, id)})
			}
		}
	}
	return errors.Join(errs...)
}

func slotOf(neighbors [3]int32, n int32) int {
	for k, id := range neighbors {
		if id == n {
			return k
		}
	}
	return -1
}

// sameVertex treats distinct indices at coincident coordinates as one node.
func (m *Mesh) sameVertex(a, b int32) bool {
	if a == b {
		return true
	}
	va, vb := m.vertices[a], m.vertices[b]
	return math.Abs(va.X-vb.X) <= m.eps && math.Abs(va.Y-vb.Y) <= m.eps
}

func (m *Mesh) hasVertex(cell, v int32) bool {
	for _, cv := range m.cells[cell].Vertices {
		if m.sameVertex(cv, v) {
			return true
		}
	}
	return false
}

func (m *Mesh) sharedVertices(a, b int32) int {
	n := 0
	for _, v := range m.cells[a].Vertices {
		if m.hasVertex(b, v) {
			n++
		}
	}
	return n
}

func (m *Mesh) computeDerived() {
	nc := len(m.cells)
	m.centroids = make([]r2.Vec, nc)
	m.elevation = make([]float64, nc)
	m.area = make([]float64, nc)
	m.across = make([][3]int32, nc)
	m.distance = make([][3]float64, nc)
	m.nodeCells = make([][]int32, len(m.vertices))

	for id, c := range m.cells {
		a, b, cc := m.vertices[c.Vertices[0]], m.vertices[c.Vertices[1]], m.vertices[c.Vertices[2]]
		m.centroids[id] = r2.Vec{X: (a.X + b.X + cc.X) / 3, Y: (a.Y + b.Y + cc.Y) / 3}
		m.elevation[id] = (a.Z + b.Z + cc.Z) / 3
		m.area[id] = math.Abs((b.X-a.X)*(cc.Y-a.Y)-(cc.X-a.X)*(b.Y-a.Y)) / 2

		for _, v := range c.Vertices {
			m.nodeCells[v] = append(m.nodeCells[v], int32(id))
		}
	}

	for id, c := range m.cells {
		for i := 0; i < 3; i++ {
			m.across[id][i] = m.neighborAcross(int32(id), c.Vertices[(i+1)%3], c.Vertices[(i+2)%3])
		}
		for k, n := range c.Neighbors {
			if n == NoNeighbor {
				continue
			}
			m.distance[id][k] = r2.Norm(r2.Sub(m.centroids[n], m.centroids[id]))
		}
	}
}

// neighborAcross scans the neighbor list for the cell holding both edge vertices.
func (m *Mesh) neighborAcross(cell, va, vb int32) int32 {
	for _, n := range m.cells[cell].Neighbors {
		if n == NoNeighbor {
			continue
		}
		if m.hasVertex(n, va) && m.hasVertex(n, vb) {
			return n
		}
	}
	return NoNeighbor
}

// NumCells returns the number of triangles.
func (m *Mesh) NumCells() int { return len(m.cells) }

// NumVertices returns the number of nodes.
func (m *Mesh) NumVertices() int { return len(m.vertices) }

// Valid reports whether id addresses a cell.
func (m *Mesh) Valid(id int32) bool { return id >= 0 && int(id) < len(m.cells) }

// Cell returns the raw cell definition.
func (m *Mesh) Cell(id int32) Cell { return m.cells[id] }

// Vertex returns node i.
func (m *Mesh) Vertex(i int32) Vertex { return m.vertices[i] }

// Centroid returns the planform centroid of a cell.
func (m *Mesh) Centroid(id int32) r2.Vec { return m.centroids[id] }

// Elevation returns the mean ground elevation of a cell.
func (m *Mesh) Elevation(id int32) float64 { return m.elevation[id] }

// Area returns the planform area of a cell.
func (m *Mesh) Area(id int32) float64 { return m.area[id] }

// Neighbors returns the neighbor slots of a cell.
func (m *Mesh) Neighbors(id int32) [3]int32 { return m.cells[id].Neighbors }

// NeighborDistance returns the centroid-to-centroid distance for a neighbor slot,
// zero on boundary slots.
func (m *Mesh) NeighborDistance(id int32, slot int) float64 { return m.distance[id][slot] }

// Across returns the neighbor across the edge opposite vertex i, or NoNeighbor.
func (m *Mesh) Across(id int32, i int) int32 { return m.across[id][i] }

// NodeCells returns the cells touching vertex v. The slice must not be modified.
func (m *Mesh) NodeCells(v int32) []int32 { return m.nodeCells[v] }

// Bounds returns the planform extent of the mesh.
func (m *Mesh) Bounds() Bounds { return m.bounds }

// Corners returns the planform coordinates of a cell's vertices.
func (m *Mesh) Corners(id int32) [3]r2.Vec {
	c := m.cells[id]
	var out [3]r2.Vec
	for k, v := range c.Vertices {
		out[k] = r2.Vec{X: m.vertices[v].X, Y: m.vertices[v].Y}
	}
	return out
}

// Edge returns the edge opposite vertex i.
func (m *Mesh) Edge(id int32, i int) (a, b r2.Vec) {
	p := m.Corners(id)
	return p[(i+1)%3], p[(i+2)%3]
}

// Barycentric returns the weights of p against the cell's three vertices.
// A negative weight means p lies beyond the edge opposite that vertex.
// Degenerate (zero-area) cells yield NaN weights.
func (m *Mesh) Barycentric(id int32, p r2.Vec) [3]float64 {
	v := m.Corners(id)
	det := (v[1].Y-v[2].Y)*(v[0].X-v[2].X) + (v[2].X-v[1].X)*(v[0].Y-v[2].Y)
	if det == 0 {
		nan := math.NaN()
		return [3]float64{nan, nan, nan}
	}
	w0 := ((v[1].Y-v[2].Y)*(p.X-v[2].X) + (v[2].X-v[1].X)*(p.Y-v[2].Y)) / det
	w1 := ((v[2].Y-v[0].Y)*(p.X-v[2].X) + (v[0].X-v[2].X)*(p.Y-v[2].Y)) / det
	return [3]float64{w0, w1, 1 - w0 - w1}
}

// Contains reports whether p lies inside or on the cell, within tol in weight space.
func (m *Mesh) Contains(id int32, p r2.Vec, tol float64) bool {
	w := m.Barycentric(id, p)
	return w[0] >= -tol && w[1] >= -tol && w[2] >= -tol
}

// FindCell returns the cell containing p, or NoNeighbor when p is off the mesh.
func (m *Mesh) FindCell(p r2.Vec) int32 {
	return m.index.Find(p)
}
