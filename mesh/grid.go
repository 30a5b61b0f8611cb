package mesh

import "fmt"

// Grid builds a rectangle of nx by ny squares of edge dx, each split into two
// counter-clockwise triangles. Ground falls by slope per unit x.
//
// Square (i,j) yields cells 2k (lower right) and 2k+1 (upper left), k = j*nx+i.
func Grid(nx, ny int, dx, slope float64) (*Mesh, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("grid needs at least one square, got %dx%d", nx, ny)
	}
	if dx <= 0 {
		return nil, fmt.Errorf("grid spacing must be positive, got %v", dx)
	}

	node := func(i, j int) int32 { return int32(j*(nx+1) + i) }
	lower := func(i, j int) int32 {
		if i < 0 || j < 0 || i >= nx || j >= ny {
			return NoNeighbor
		}
		return int32(2 * (j*nx + i))
	}
	upper := func(i, j int) int32 {
		if i < 0 || j < 0 || i >= nx || j >= ny {
			return NoNeighbor
		}
		return int32(2*(j*nx+i) + 1)
	}

	vertices := make([]Vertex, 0, (nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			x, y := float64(i)*dx, float64(j)*dx
			vertices = append(vertices, Vertex{X: x, Y: y, Z: -slope * x})
		}
	}

	cells := make([]Cell, 0, 2*nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v00, v10, v01, v11 := node(i, j), node(i+1, j), node(i, j+1), node(i+1, j+1)
			cells = append(cells,
				Cell{
					Vertices:  [3]int32{v00, v10, v11},
					Neighbors: [3]int32{upper(i, j-1), upper(i+1, j), upper(i, j)},
				},
				Cell{
					Vertices:  [3]int32{v00, v11, v01},
					Neighbors: [3]int32{lower(i, j), lower(i, j+1), lower(i-1, j)},
				},
			)
		}
	}
	return New(vertices, cells)
}
