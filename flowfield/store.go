// Package flowfield holds the per-cell water depth and velocity time series that
// drive surface transport, loaded eagerly or on first access.
package flowfield

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/rsaemann/GULLI-sub003/mesh"
)

// Mode selects when cell series are pulled from the Source.
type Mode int

const (
	// Dense loads every cell when the store is built.
	Dense Mode = iota
	// Sparse loads a cell on first read and caches it forever.
	Sparse
)

func (m Mode) String() string {
	switch m {
	case Dense:
		return "dense"
	case Sparse:
		return "sparse"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "dense" or "sparse".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dense", "":
		return Dense, nil
	case "sparse":
		return Sparse, nil
	}
	return Dense, fmt.Errorf("unknown flow mode %q", s)
}

// Options configures a Store.
type Options struct {
	Mode      Mode
	Roughness float64 // diffusive-wave coefficient, DefaultRoughness when zero

	// Cells shallower than DryDepth report zero cell velocity when ZeroDryCells is set.
	DryDepth     float64
	ZeroDryCells bool
}

// edgeSeries is the per-cell edge layer: outward velocity per neighbor slot and
// the resulting cell velocity, one entry per timestep.
type edgeSeries struct {
	edge [][3]float32
	cell [][2]float32
}

// Store serves depth and velocity samples by cell and timestep index.
// It is safe for concurrent use; each cell is loaded at most once.
type Store struct {
	mesh  *mesh.Mesh
	src   Source
	steps int
	opts  Options

	depth    []lazy[[]float32]
	velocity []lazy[[][2]float32]
	edges    []lazy[edgeSeries]

	warned sync.Map // warnKey -> struct{}
	loads  atomic.Int64
}

type warnKey struct {
	cell int32
	what string
}

// New creates a store over m with steps timesteps per series. In Dense mode every
// cell is loaded before New returns.
func New(m *mesh.Mesh, src Source, steps int, opts Options) (*Store, error) {
	if m == nil {
		return nil, errors.New("flowfield: nil mesh")
	}
	if src == nil {
		return nil, errors.New("flowfield: nil source")
	}
	if steps < 1 {
		return nil, fmt.Errorf("flowfield: need at least one timestep, got %d", steps)
	}
	if opts.Roughness <= 0 {
		opts.Roughness = DefaultRoughness
	}

	n := m.NumCells()
	s := &Store{
		mesh:     m,
		src:      src,
		steps:    steps,
		opts:     opts,
		depth:    make([]lazy[[]float32], n),
		velocity: make([]lazy[[][2]float32], n),
		edges:    make([]lazy[edgeSeries], n),
	}

	if opts.Mode == Dense {
		for id := int32(0); id < int32(n); id++ {
			s.edgeLayer(id)
		}
		slog.Info("flow field loaded", "mode", opts.Mode.String(), "cells", n, "steps", steps)
	}
	return s, nil
}

// Steps returns the number of timesteps per series.
func (s *Store) Steps() int { return s.steps }

// Loads returns how many cell series have been pulled from the source so far.
func (s *Store) Loads() int64 { return s.loads.Load() }

// Depth returns the water depth of cell at timestep t.
func (s *Store) Depth(cell int32, t int) float32 {
	if !s.checkCell(cell) {
		return 0
	}
	return s.depthSeries(cell)[s.clamp(t)]
}

// VelocityToNeighbor returns the outward velocity from cell toward its neighbor in
// the given slot at timestep t. Boundary slots report zero.
func (s *Store) VelocityToNeighbor(cell int32, slot int, t int) float32 {
	if !s.checkCell(cell) || slot < 0 || slot > 2 {
		return 0
	}
	return s.edgeLayer(cell).edge[s.clamp(t)][slot]
}

// VelocityAtCell returns the cell's velocity vector at timestep t.
func (s *Store) VelocityAtCell(cell int32, t int) (float32, float32) {
	if !s.checkCell(cell) {
		return 0, 0
	}
	t = s.clamp(t)
	if s.opts.ZeroDryCells && float64(s.depthSeries(cell)[t]) < s.opts.DryDepth {
		return 0, 0
	}
	v := s.edgeLayer(cell).cell[t]
	return v[0], v[1]
}

func (s *Store) clamp(t int) int {
	if t < 0 {
		return 0
	}
	if t >= s.steps {
		return s.steps - 1
	}
	return t
}

func (s *Store) checkCell(cell int32) bool {
	if s.mesh.Valid(cell) {
		return true
	}
	s.warnOnce(cell, "cell", "flow sample requested for unknown cell, using zero flow")
	return false
}

// warnOnce logs msg the first time a (cell, what) pair is seen.
func (s *Store) warnOnce(cell int32, what, msg string, args ...any) {
	if _, seen := s.warned.LoadOrStore(warnKey{cell, what}, struct{}{}); seen {
		return
	}
	slog.Warn(msg, append([]any{"cell", cell}, args...)...)
}

func (s *Store) depthSeries(cell int32) []float32 {
	return s.depth[cell].get(func() []float32 { return s.loadDepth(cell) })
}

func (s *Store) velocitySeries(cell int32) [][2]float32 {
	return s.velocity[cell].get(func() [][2]float32 { return s.loadVelocity(cell) })
}

func (s *Store) edgeLayer(cell int32) edgeSeries {
	return s.edges[cell].get(func() edgeSeries { return s.buildEdges(cell) })
}

func (s *Store) loadDepth(cell int32) (out []float32) {
	s.loads.Add(1)
	defer func() {
		if r := recover(); r != nil {
			s.warnOnce(cell, "depth", "depth source panicked, using zero flow", "panic", r)
			out = make([]float32, s.steps)
		}
	}()

	d, err := s.src.LoadDepth(cell)
	switch {
	case err != nil:
		s.warnOnce(cell, "depth", "depth load failed, using zero flow", "err", err)
		return make([]float32, s.steps)
	case len(d) != s.steps:
		s.warnOnce(cell, "depth", "depth series has wrong length, using zero flow", "got", len(d), "want", s.steps)
		return make([]float32, s.steps)
	}
	return d
}

// loadVelocity returns nil when the source has no measured cell velocity.
func (s *Store) loadVelocity(cell int32) (out [][2]float32) {
	defer func() {
		if r := recover(); r != nil {
			s.warnOnce(cell, "velocity", "velocity source panicked, using zero flow", "panic", r)
			out = make([][2]float32, s.steps)
		}
	}()

	v, err := s.src.LoadVelocity(cell)
	switch {
	case err != nil:
		s.warnOnce(cell, "velocity", "velocity load failed, using zero flow", "err", err)
		return make([][2]float32, s.steps)
	case v == nil:
		return nil
	case len(v) != s.steps:
		s.warnOnce(cell, "velocity", "velocity series has wrong length, using zero flow", "got", len(v), "want", s.steps)
		return make([][2]float32, s.steps)
	}
	return v
}

// loadEdges returns measured edge velocities, or nil when they must be derived.
func (s *Store) loadEdges(cell int32) (out [][3]float32) {
	es, ok := s.src.(EdgeSource)
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.warnOnce(cell, "edge", "edge source panicked, deriving from depth", "panic", r)
			out = nil
		}
	}()

	e, err := es.LoadEdgeVelocity(cell)
	switch {
	case err != nil:
		s.warnOnce(cell, "edge", "edge velocity load failed, deriving from depth", "err", err)
		return nil
	case e != nil && len(e) != s.steps:
		s.warnOnce(cell, "edge", "edge series has wrong length, deriving from depth", "got", len(e), "want", s.steps)
		return nil
	}
	return e
}

// buildEdges fills the edge layer of one cell. Neighbor depths come through their
// own lazy slots, so no cell ever waits on another cell's edge layer.
func (s *Store) buildEdges(cell int32) edgeSeries {
	out := edgeSeries{edge: s.loadEdges(cell)}
	neighbors := s.mesh.Neighbors(cell)

	if out.edge == nil {
		out.edge = make([][3]float32, s.steps)
		own := s.depthSeries(cell)
		e0 := s.mesh.Elevation(cell)
		for k, n := range neighbors {
			if n == mesh.NoNeighbor {
				continue
			}
			other := s.depthSeries(n)
			e1 := s.mesh.Elevation(n)
			dist := s.mesh.NeighborDistance(cell, k)
			for t := 0; t < s.steps; t++ {
				v := DiffusiveWave(e0, float64(own[t]), e1, float64(other[t]), dist, s.opts.Roughness)
				out.edge[t][k] = float32(v)
			}
		}
	}

	if measured := s.velocitySeries(cell); measured != nil {
		out.cell = measured
		return out
	}

	var dirs []r2.Vec
	var slots []int
	c := s.mesh.Centroid(cell)
	for k, n := range neighbors {
		if n == mesh.NoNeighbor {
			continue
		}
		d := r2.Sub(s.mesh.Centroid(n), c)
		if r2.Norm(d) == 0 {
			continue
		}
		dirs = append(dirs, r2.Unit(d))
		slots = append(slots, k)
	}

	out.cell = make([][2]float32, s.steps)
	speeds := make([]float64, len(slots))
	for t := 0; t < s.steps; t++ {
		for i, k := range slots {
			speeds[i] = float64(out.edge[t][k])
		}
		v := fitCellVelocity(dirs, speeds)
		out.cell[t] = [2]float32{float32(v.X), float32(v.Y)}
	}
	return out
}
