package transport

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/rsaemann/GULLI-sub003/mesh"
)

const defaultHops = 8

// twoTriangles: cell 0 = (0,0),(1,0),(1,1); cell 1 = (0,0),(1,1),(0,1).
func twoTriangles(t testing.TB) *mesh.Mesh {
	t.Helper()
	m, err := mesh.New(
		[]mesh.Vertex{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		[]mesh.Cell{
			{Vertices: [3]int32{0, 1, 2}, Neighbors: [3]int32{1, -1, -1}},
			{Vertices: [3]int32{0, 2, 3}, Neighbors: [3]int32{0, -1, -1}},
		},
	)
	require.NoError(t, err)
	return m
}

func grid(t testing.TB, nx, ny int) *mesh.Mesh {
	t.Helper()
	m, err := mesh.Grid(nx, ny, 1, 0)
	require.NoError(t, err)
	return m
}

func vec(x, y float64) r2.Vec { return r2.Vec{X: x, Y: y} }

func inBounds(b mesh.Bounds, p r2.Vec, tol float64) bool {
	return p.X >= b.MinX-tol && p.X <= b.MaxX+tol && p.Y >= b.MinY-tol && p.Y <= b.MaxY+tol
}

func TestLocateCrossesSharedEdge(t *testing.T) {
	m := twoTriangles(t)
	l := NewLocalizer(m)

	from := m.Centroid(0)
	to := vec(0.25, 0.6)
	cell, pos := l.Locate(0, from, to, defaultHops)

	assert.Equal(t, int32(1), cell)
	assert.Equal(t, to, pos)
	assert.True(t, m.Contains(1, pos, 0))

	r := l.Resolve(0, from, to, defaultHops)
	assert.Equal(t, Walked, r.Outcome)
	assert.Equal(t, 1, r.Hops)
}

func TestLocateContainment(t *testing.T) {
	m := grid(t, 6, 4)
	l := NewLocalizer(m)
	rng := rand.New(rand.NewPCG(1, 2))

	for id := int32(0); id < int32(m.NumCells()); id++ {
		p := m.Corners(id)
		for k := 0; k < 20; k++ {
			a := 0.01 + 0.98*rng.Float64()
			b := 0.01 + 0.98*rng.Float64()*(1-a)
			c := 1 - a - b
			if c <= 0.001 {
				continue
			}
			q := r2.Add(r2.Add(r2.Scale(a, p[0]), r2.Scale(b, p[1])), r2.Scale(c, p[2]))

			r := l.Resolve(id, m.Centroid(id), q, defaultHops)
			assert.Equal(t, id, r.Cell)
			assert.Equal(t, q, r.Pos)
			assert.Equal(t, Inside, r.Outcome)
			assert.Zero(t, r.Hops)
		}
	}
}

func TestLocateBoundary(t *testing.T) {
	m := grid(t, 2, 2)
	l := NewLocalizer(m)

	tests := []struct {
		name     string
		cell     int32
		from, to r2.Vec
		want     r2.Vec
	}{
		{"exit bottom", 0, vec(2.0/3, 1.0/3), vec(2.0/3, -0.5), vec(2.0/3, 0)},
		{"exit right", 2, vec(1.5, 0.25), vec(3, 0.25), vec(2, 0.25)},
		// Weight against the right edge is most negative, but the path leaves
		// through the bottom; the secondary edge catches it.
		{"double violation", 2, vec(1.5, 0.05), vec(2.8, -0.2), vec(1.76, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := l.Resolve(tt.cell, tt.from, tt.to, defaultHops)
			assert.Equal(t, Boundary, r.Outcome)
			assert.InDelta(t, tt.want.X, r.Pos.X, 1e-9)
			assert.InDelta(t, tt.want.Y, r.Pos.Y, 1e-9)
			assert.True(t, inBounds(m.Bounds(), r.Pos, 1e-9))
			assert.True(t, m.Contains(r.Cell, r.Pos, 1e-9))
		})
	}
}

func TestLocateBoundaryConservationRandom(t *testing.T) {
	m := grid(t, 5, 5)
	l := NewLocalizer(m)
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 500; i++ {
		start := vec(0.1+4.8*rng.Float64(), 0.1+4.8*rng.Float64())
		cell := m.FindCell(start)
		require.NotEqual(t, mesh.NoNeighbor, cell)
		end := r2.Add(start, vec(12*(rng.Float64()-0.5), 12*(rng.Float64()-0.5)))

		r := l.Resolve(cell, start, end, 64)
		require.True(t, m.Valid(r.Cell))
		assert.True(t, m.Contains(r.Cell, r.Pos, 1e-9), "step %d: %v -> %v gave %+v", i, start, end, r)
		if r.Outcome == Boundary && r.Hops < 64 {
			b := m.Bounds()
			onEdge := r.Pos.X < b.MinX+1e-9 || r.Pos.X > b.MaxX-1e-9 || r.Pos.Y < b.MinY+1e-9 || r.Pos.Y > b.MaxY-1e-9
			assert.True(t, onEdge, "clipped position %v is not on the domain edge", r.Pos)
		}
	}
}

func TestLocateParallelToBoundarySnaps(t *testing.T) {
	m := grid(t, 1, 1)
	l := NewLocalizer(m)

	// Already a hair outside the bottom edge and moving along it.
	r := l.Resolve(0, vec(0.3, -1e-3), vec(0.8, -1e-3), defaultHops)
	assert.Equal(t, Snapped, r.Outcome)
	assert.Equal(t, int32(0), r.Cell)
	assert.Equal(t, m.Centroid(0), r.Pos)
}

func TestLocateHopBudget(t *testing.T) {
	m := grid(t, 10, 1)
	l := NewLocalizer(m)
	from := m.Centroid(0)
	to := vec(9.5, 0.3)

	r := l.Resolve(0, from, to, 50)
	assert.Equal(t, m.FindCell(to), r.Cell)
	assert.Equal(t, to, r.Pos)
	assert.Equal(t, Walked, r.Outcome)
	assert.LessOrEqual(t, r.Hops, 50)

	r = l.Resolve(0, from, to, 2)
	assert.Equal(t, 2, r.Hops)
	assert.Equal(t, Boundary, r.Outcome)
	assert.True(t, m.Contains(r.Cell, r.Pos, 1e-9))
	assert.InDelta(t, 2.0, r.Pos.X, 1e-9)

	r = l.Resolve(0, from, to, 0)
	assert.Equal(t, int32(0), r.Cell)
	assert.Zero(t, r.Hops)
	assert.InDelta(t, 1.0, r.Pos.X, 1e-9)
}

func TestLocateDegenerateCellSnaps(t *testing.T) {
	m, err := mesh.New(
		[]mesh.Vertex{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}},
		[]mesh.Cell{{Vertices: [3]int32{0, 1, 2}, Neighbors: [3]int32{-1, -1, -1}}},
	)
	require.NoError(t, err)
	l := NewLocalizer(m)

	r := l.Resolve(0, vec(1, 0), vec(1.5, 0.5), defaultHops)
	assert.Equal(t, Snapped, r.Outcome)
	assert.Equal(t, vec(1, 0), r.Pos)
}

func TestLocateDuplicatedVertices(t *testing.T) {
	m, err := mesh.New(
		[]mesh.Vertex{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0}, {X: 1, Y: 1}},
		[]mesh.Cell{
			{Vertices: [3]int32{0, 1, 2}, Neighbors: [3]int32{1, -1, -1}},
			{Vertices: [3]int32{4, 5, 3}, Neighbors: [3]int32{0, -1, -1}},
		},
	)
	require.NoError(t, err)

	cell, _ := NewLocalizer(m).Locate(0, m.Centroid(0), vec(0.2, 0.7), defaultHops)
	assert.Equal(t, int32(1), cell)
}

func TestLocateInvalidStartCell(t *testing.T) {
	m := grid(t, 3, 3)
	l := NewLocalizer(m)

	to := vec(1.2, 1.7)
	r := l.Resolve(-1, vec(1.1, 1.6), to, defaultHops)
	assert.Equal(t, m.FindCell(to), r.Cell)

	r = l.Resolve(999, vec(-5, -5), vec(-4, -4), defaultHops)
	assert.True(t, m.Valid(r.Cell))
	assert.True(t, m.Contains(r.Cell, r.Pos, 1e-9))
}

func TestViolated(t *testing.T) {
	tests := []struct {
		w         [3]float64
		primary   int
		secondary int
	}{
		{[3]float64{0.2, 0.3, 0.5}, -1, -1},
		{[3]float64{-0.1, 0.6, 0.5}, 0, -1},
		{[3]float64{-0.1, -0.5, 1.6}, 1, 0},
		{[3]float64{-0.5, 1.6, -0.1}, 0, 2},
		{[3]float64{1, 0, 0}, -1, -1},
	}
	for _, tt := range tests {
		p, s := violated(tt.w)
		assert.Equal(t, tt.primary, p, "%v", tt.w)
		assert.Equal(t, tt.secondary, s, "%v", tt.w)
	}
}

func BenchmarkLocate(b *testing.B) {
	m, err := mesh.Grid(50, 50, 1, 0)
	require.NoError(b, err)
	l := NewLocalizer(m)
	rng := rand.New(rand.NewPCG(3, 4))

	type move struct {
		cell     int32
		from, to r2.Vec
	}
	moves := make([]move, 1024)
	for i := range moves {
		from := vec(1+48*rng.Float64(), 1+48*rng.Float64())
		moves[i] = move{m.FindCell(from), from, r2.Add(from, vec(2*rng.Float64()-1, 2*rng.Float64()-1))}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mv := moves[i%len(moves)]
		l.Locate(mv.cell, mv.from, mv.to, defaultHops)
	}
}
