package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// containsTol accepts points sitting on a shared edge.
const containsTol = 1e-9

// Index is a uniform bucket grid over cell bounding boxes for point location.
type Index struct {
	mesh     *Mesh
	origin   r2.Vec
	cellSize float64
	cols     int
	rows     int
	buckets  [][]int32
}

func newIndex(m *Mesh) *Index {
	b := m.bounds

	// Bucket edge of roughly two mean triangles keeps lists short.
	var total float64
	for _, a := range m.area {
		total += a
	}
	cellSize := 2 * math.Sqrt(total/float64(len(m.area)))
	if cellSize <= 0 || math.IsNaN(cellSize) {
		cellSize = math.Max(b.Width(), b.Height())
	}
	if cellSize <= 0 {
		cellSize = 1
	}

	cols := int(b.Width()/cellSize) + 1
	rows := int(b.Height()/cellSize) + 1

	idx := &Index{
		mesh:     m,
		origin:   r2.Vec{X: b.MinX, Y: b.MinY},
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		buckets:  make([][]int32, cols*rows),
	}

	for id := range m.cells {
		p := m.Corners(int32(id))
		minX := math.Min(p[0].X, math.Min(p[1].X, p[2].X))
		maxX := math.Max(p[0].X, math.Max(p[1].X, p[2].X))
		minY := math.Min(p[0].Y, math.Min(p[1].Y, p[2].Y))
		maxY := math.Max(p[0].Y, math.Max(p[1].Y, p[2].Y))

		c0, r0 := idx.colRow(minX, minY)
		c1, r1 := idx.colRow(maxX, maxY)
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				k := r*cols + c
				idx.buckets[k] = append(idx.buckets[k], int32(id))
			}
		}
	}
	return idx
}

// colRow returns the clamped bucket coordinates for a world position.
func (idx *Index) colRow(x, y float64) (int, int) {
	col := int((x - idx.origin.X) / idx.cellSize)
	row := int((y - idx.origin.Y) / idx.cellSize)

	if col < 0 {
		col = 0
	} else if col >= idx.cols {
		col = idx.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= idx.rows {
		row = idx.rows - 1
	}
	return col, row
}

// Find returns the first cell containing p, or NoNeighbor.
func (idx *Index) Find(p r2.Vec) int32 {
	if !idx.mesh.bounds.Contains(p) {
		return NoNeighbor
	}
	col, row := idx.colRow(p.X, p.Y)
	for _, id := range idx.buckets[row*idx.cols+col] {
		if idx.mesh.Contains(id, p, containsTol) {
			return id
		}
	}
	return NoNeighbor
}
