package flowfield

import "fmt"

// Source supplies per-cell time series on demand.
//
// LoadVelocity may return (nil, nil) when a cell has no measured velocity; the
// store then reconstructs one from the neighbor-edge velocities.
type Source interface {
	LoadDepth(cell int32) ([]float32, error)
	LoadVelocity(cell int32) ([][2]float32, error)
}

// EdgeSource is implemented by sources that carry measured neighbor-edge velocities,
// one [3]float32 per timestep in the cell's neighbor slot order. (nil, nil) means
// absent and the store falls back to the diffusive-wave estimate.
type EdgeSource interface {
	LoadEdgeVelocity(cell int32) ([][3]float32, error)
}

// MemorySource serves series held in memory, indexed by cell id.
// Nil Velocity or Edge entries are reported as absent.
type MemorySource struct {
	Depth    [][]float32
	Velocity [][][2]float32
	Edge     [][][3]float32
}

func (s *MemorySource) LoadDepth(cell int32) ([]float32, error) {
	if cell < 0 || int(cell) >= len(s.Depth) {
		return nil, fmt.Errorf("no depth series for cell %d", cell)
	}
	return s.Depth[cell], nil
}

func (s *MemorySource) LoadVelocity(cell int32) ([][2]float32, error) {
	if cell < 0 || int(cell) >= len(s.Velocity) {
		return nil, nil
	}
	return s.Velocity[cell], nil
}

func (s *MemorySource) LoadEdgeVelocity(cell int32) ([][3]float32, error) {
	if cell < 0 || int(cell) >= len(s.Edge) {
		return nil, nil
	}
	return s.Edge[cell], nil
}
