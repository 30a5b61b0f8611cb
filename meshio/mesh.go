// Package meshio reads and writes surface meshes and per-cell flow series as CSV.
package meshio

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/rsaemann/GULLI-sub003/mesh"
)

// VertexRecord is one row of vertices.csv.
type VertexRecord struct {
	X float64 `csv:"x"`
	Y float64 `csv:"y"`
	Z float64 `csv:"z"`
}

// CellRecord is one row of cells.csv. Neighbor columns hold -1 on the boundary.
type CellRecord struct {
	V0 int32 `csv:"v0"`
	V1 int32 `csv:"v1"`
	V2 int32 `csv:"v2"`
	N0 int32 `csv:"n0"`
	N1 int32 `csv:"n1"`
	N2 int32 `csv:"n2"`
}

// LoadMesh reads a mesh from a vertex table and a cell table.
func LoadMesh(verticesPath, cellsPath string) (*mesh.Mesh, error) {
	var vrows []VertexRecord
	if err := readTable(verticesPath, &vrows); err != nil {
		return nil, err
	}
	var crows []CellRecord
	if err := readTable(cellsPath, &crows); err != nil {
		return nil, err
	}

	vertices := make([]mesh.Vertex, len(vrows))
	for i, r := range vrows {
		vertices[i] = mesh.Vertex{X: r.X, Y: r.Y, Z: r.Z}
	}
	cells := make([]mesh.Cell, len(crows))
	for i, r := range crows {
		cells[i] = mesh.Cell{
			Vertices:  [3]int32{r.V0, r.V1, r.V2},
			Neighbors: [3]int32{r.N0, r.N1, r.N2},
		}
	}

	m, err := mesh.New(vertices, cells)
	if err != nil {
		return nil, fmt.Errorf("building mesh from %s: %w", cellsPath, err)
	}
	return m, nil
}

// WriteMesh writes m in the layout LoadMesh reads.
func WriteMesh(m *mesh.Mesh, verticesPath, cellsPath string) error {
	vrows := make([]VertexRecord, m.NumVertices())
	for i := range vrows {
		v := m.Vertex(int32(i))
		vrows[i] = VertexRecord{X: v.X, Y: v.Y, Z: v.Z}
	}
	crows := make([]CellRecord, m.NumCells())
	for i := range crows {
		c := m.Cell(int32(i))
		crows[i] = CellRecord{
			V0: c.Vertices[0], V1: c.Vertices[1], V2: c.Vertices[2],
			N0: c.Neighbors[0], N1: c.Neighbors[1], N2: c.Neighbors[2],
		}
	}

	if err := writeTable(verticesPath, vrows); err != nil {
		return err
	}
	return writeTable(cellsPath, crows)
}

func readTable(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

func writeTable(path string, records any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := gocsv.MarshalFile(records, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
