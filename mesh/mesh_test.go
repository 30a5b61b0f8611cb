package mesh

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// twoTriangles is a unit square split along its diagonal.
// Cell 0 = (0,0),(1,0),(1,1); cell 1 = (0,0),(1,1),(0,1).
func twoTriangles(t *testing.T) *Mesh {
	t.Helper()
	m, err := New(
		[]Vertex{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		[]Cell{
			{Vertices: [3]int32{0, 1, 2}, Neighbors: [3]int32{1, -1, -1}},
			{Vertices: [3]int32{0, 2, 3}, Neighbors: [3]int32{0, -1, -1}},
		},
	)
	require.NoError(t, err)
	return m
}

func TestNewDerivedGeometry(t *testing.T) {
	m := twoTriangles(t)

	assert.Equal(t, 2, m.NumCells())
	assert.InDelta(t, 2.0/3, m.Centroid(0).X, 1e-12)
	assert.InDelta(t, 1.0/3, m.Centroid(0).Y, 1e-12)
	assert.InDelta(t, 0.5, m.Area(0), 1e-12)
	assert.InDelta(t, math.Sqrt2/3, m.NeighborDistance(0, 0), 1e-12)
	assert.Zero(t, m.NeighborDistance(0, 1))

	// Vertex 1 of cell 0 is (1,0); its opposite edge (1,1)-(0,0) is shared.
	assert.Equal(t, int32(1), m.Across(0, 1))
	assert.Equal(t, NoNeighbor, m.Across(0, 0))
	assert.Equal(t, NoNeighbor, m.Across(0, 2))

	assert.ElementsMatch(t, []int32{0, 1}, m.NodeCells(0))
	assert.ElementsMatch(t, []int32{0}, m.NodeCells(1))
}

func TestBarycentric(t *testing.T) {
	m := twoTriangles(t)

	tests := []struct {
		name string
		p    r2.Vec
		want [3]float64
	}{
		{"vertex 0", r2.Vec{X: 0, Y: 0}, [3]float64{1, 0, 0}},
		{"vertex 2", r2.Vec{X: 1, Y: 1}, [3]float64{0, 0, 1}},
		{"centroid", r2.Vec{X: 2.0 / 3, Y: 1.0 / 3}, [3]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}},
		{"beyond diagonal", r2.Vec{X: 0.2, Y: 0.8}, [3]float64{0.8, -0.6, 0.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := m.Barycentric(0, tt.p)
			for i := range w {
				assert.InDelta(t, tt.want[i], w[i], 1e-12, "weight %d", i)
			}
		})
	}
}

func TestNewRejectsCorruptAdjacency(t *testing.T) {
	verts := []Vertex{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {5, 5, 0}}

	tests := []struct {
		name  string
		cells []Cell
		want  error
	}{
		{
			name: "asymmetric link",
			cells: []Cell{
				{Vertices: [3]int32{0, 1, 2}, Neighbors: [3]int32{1, -1, -1}},
				{Vertices: [3]int32{0, 2, 3}, Neighbors: [3]int32{-1, -1, -1}},
			},
			want: ErrAsymmetricNeighbor,
		},
		{
			name: "vertex out of range",
			cells: []Cell{
				{Vertices: [3]int32{0, 1, 9}, Neighbors: [3]int32{-1, -1, -1}},
			},
			want: ErrIndexOutOfRange,
		},
		{
			name: "neighbor out of range",
			cells: []Cell{
				{Vertices: [3]int32{0, 1, 2}, Neighbors: [3]int32{7, -1, -1}},
			},
			want: ErrIndexOutOfRange,
		},
		{
			name: "single shared vertex",
			cells: []Cell{
				{Vertices: [3]int32{0, 1, 2}, Neighbors: [3]int32{1, -1, -1}},
				{Vertices: [3]int32{2, 4, 3}, Neighbors: [3]int32{0, -1, -1}},
			},
			want: ErrNotAdjacent,
		},
		{
			name: "self link",
			cells: []Cell{
				{Vertices: [3]int32{0, 1, 2}, Neighbors: [3]int32{0, -1, -1}},
			},
			want: ErrSelfNeighbor,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(verts, tt.cells)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))

			var te *TopologyError
			assert.True(t, errors.As(err, &te))
		})
	}
}

func TestDuplicatedVerticesStillAdjacent(t *testing.T) {
	// Cell 1 references copies of the diagonal nodes instead of the originals.
	m, err := New(
		[]Vertex{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0, 0, 0}, {1, 1, 0}},
		[]Cell{
			{Vertices: [3]int32{0, 1, 2}, Neighbors: [3]int32{1, -1, -1}},
			{Vertices: [3]int32{4, 5, 3}, Neighbors: [3]int32{0, -1, -1}},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, int32(1), m.Across(0, 1))
	assert.Equal(t, int32(0), m.Across(1, 2))
}

func TestGridAdjacency(t *testing.T) {
	m, err := Grid(4, 3, 10, 0.01)
	require.NoError(t, err)

	assert.Equal(t, 24, m.NumCells())
	assert.Equal(t, 20, m.NumVertices())
	assert.Equal(t, Bounds{MinX: 0, MinY: 0, MaxX: 40, MaxY: 30}, m.Bounds())

	// Interior cells have three neighbors, every link symmetric.
	for id := int32(0); id < int32(m.NumCells()); id++ {
		for i := 0; i < 3; i++ {
			n := m.Across(id, i)
			if n == NoNeighbor {
				continue
			}
			found := false
			for j := 0; j < 3; j++ {
				if m.Across(n, j) == id {
					found = true
				}
			}
			assert.True(t, found, "cell %d -> %d not mirrored", id, n)
		}
	}

	// Ground falls with x.
	assert.Greater(t, m.Elevation(0), m.Elevation(6))
}

func TestFindCell(t *testing.T) {
	m, err := Grid(5, 5, 2, 0)
	require.NoError(t, err)

	for id := int32(0); id < int32(m.NumCells()); id++ {
		c := m.Centroid(id)
		assert.Equal(t, id, m.FindCell(c), "centroid of %d", id)
	}
	assert.Equal(t, NoNeighbor, m.FindCell(r2.Vec{X: -1, Y: 3}))
	assert.Equal(t, NoNeighbor, m.FindCell(r2.Vec{X: 3, Y: 11}))
}

func TestGridRejectsBadInput(t *testing.T) {
	_, err := Grid(0, 3, 1, 0)
	assert.Error(t, err)
	_, err = Grid(2, 2, 0, 0)
	assert.Error(t, err)
}
