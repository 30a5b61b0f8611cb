package meshio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// DepthRecord is one row of <cell>.csv.
type DepthRecord struct {
	Step  int     `csv:"step"`
	Depth float32 `csv:"depth"`
}

// VelocityRecord is one row of <cell>.vel.csv.
type VelocityRecord struct {
	Step int     `csv:"step"`
	VX   float32 `csv:"vx"`
	VY   float32 `csv:"vy"`
}

// DirSource serves flow series from one directory with a file per cell.
// Files are read only when the store asks for a cell. Steps missing from a
// file stay zero.
type DirSource struct {
	Dir   string
	Steps int
}

// NewDirSource checks that dir exists.
func NewDirSource(dir string, steps int) (*DirSource, error) {
	if steps < 1 {
		return nil, fmt.Errorf("flow source needs at least one timestep, got %d", steps)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("flow directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("flow directory %s is not a directory", dir)
	}
	return &DirSource{Dir: dir, Steps: steps}, nil
}

func (s *DirSource) depthPath(cell int32) string {
	return filepath.Join(s.Dir, strconv.Itoa(int(cell))+".csv")
}

func (s *DirSource) velocityPath(cell int32) string {
	return filepath.Join(s.Dir, strconv.Itoa(int(cell))+".vel.csv")
}

// LoadDepth reads <dir>/<cell>.csv.
func (s *DirSource) LoadDepth(cell int32) ([]float32, error) {
	var rows []DepthRecord
	if err := readTable(s.depthPath(cell), &rows); err != nil {
		return nil, err
	}
	out := make([]float32, s.Steps)
	for _, r := range rows {
		if r.Step < 0 || r.Step >= s.Steps {
			return nil, fmt.Errorf("cell %d: step %d outside [0,%d)", cell, r.Step, s.Steps)
		}
		out[r.Step] = r.Depth
	}
	return out, nil
}

// LoadVelocity reads <dir>/<cell>.vel.csv. A missing file means the cell has
// no measured velocity.
func (s *DirSource) LoadVelocity(cell int32) ([][2]float32, error) {
	var rows []VelocityRecord
	if err := readTable(s.velocityPath(cell), &rows); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([][2]float32, s.Steps)
	for _, r := range rows {
		if r.Step < 0 || r.Step >= s.Steps {
			return nil, fmt.Errorf("cell %d: step %d outside [0,%d)", cell, r.Step, s.Steps)
		}
		out[r.Step] = [2]float32{r.VX, r.VY}
	}
	return out, nil
}

// WriteSeries writes the files DirSource reads for one cell. A nil velocity
// writes no velocity file.
func WriteSeries(dir string, cell int32, depth []float32, velocity [][2]float32) error {
	s := &DirSource{Dir: dir}

	rows := make([]DepthRecord, len(depth))
	for i, d := range depth {
		rows[i] = DepthRecord{Step: i, Depth: d}
	}
	if err := writeTable(s.depthPath(cell), rows); err != nil {
		return err
	}

	if velocity == nil {
		return nil
	}
	vrows := make([]VelocityRecord, len(velocity))
	for i, v := range velocity {
		vrows[i] = VelocityRecord{Step: i, VX: v[0], VY: v[1]}
	}
	return writeTable(s.velocityPath(cell), vrows)
}
