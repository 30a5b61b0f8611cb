package mesh

import (
	"errors"
	"fmt"
)

// Adjacency errors. These indicate corrupt input data and are fatal at startup.
var (
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrSelfNeighbor       = errors.New("cell lists itself as neighbor")
	ErrNotAdjacent        = errors.New("neighbor does not share an edge")
	ErrAsymmetricNeighbor = errors.New("asymmetric neighbor link")
)

// TopologyError locates an adjacency problem in the input mesh.
type TopologyError struct {
	Cell int32
	Slot int
	Err  error
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("cell %d slot %d: %v", e.Cell, e.Slot, e.Err)
}

func (e *TopologyError) Unwrap() error { return e.Err }
