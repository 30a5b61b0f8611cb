// Package sim steps a particle cloud over the surface mesh.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"

	"github.com/mlange-42/ark/ecs"

	"github.com/rsaemann/GULLI-sub003/components"
	"github.com/rsaemann/GULLI-sub003/flowfield"
	"github.com/rsaemann/GULLI-sub003/mesh"
	"github.com/rsaemann/GULLI-sub003/release"
	"github.com/rsaemann/GULLI-sub003/telemetry"
	"github.com/rsaemann/GULLI-sub003/transport"
)

// Options configures the stepping harness.
type Options struct {
	StartTime  float64 // simulation time of step 0
	DT         float64 // seconds per step
	MaxHops    int
	Workers    int     // 0 = GOMAXPROCS
	Dispersion float64 // random-walk coefficient, 0 = pure advection
	Seed       uint64

	TrailLength   int // positions kept per traced particle
	WindowSteps   int // steps per stats window
	SnapshotEvery int // steps between GeoJSON snapshots, 0 disables
	PerfWindow    int
	LogStats      bool
}

// Deps are the shared read-only components a simulation moves particles with.
type Deps struct {
	Mesh         *mesh.Mesh
	Interpolator *transport.Interpolator
	Store        *flowfield.Store         // optional, reports lazy loads
	Output       *telemetry.OutputManager // optional
}

// Simulation holds the particle world and the stepping state.
// It is driven from one goroutine; only the compute phase fans out.
type Simulation struct {
	world *ecs.World

	particleMapper *ecs.Map5[
		components.Position,
		components.Velocity,
		components.Location,
		components.Payload,
		components.Trail,
	]
	particleFilter *ecs.Filter5[
		components.Position,
		components.Velocity,
		components.Location,
		components.Payload,
		components.Trail,
	]

	posMap   *ecs.Map1[components.Position]
	velMap   *ecs.Map1[components.Velocity]
	locMap   *ecs.Map1[components.Location]
	trailMap *ecs.Map1[components.Trail]

	mesh      *mesh.Mesh
	interp    *transport.Interpolator
	localizer *transport.Localizer
	store     *flowfield.Store
	opts      Options

	// Release queue sorted by release time
	pending     []release.Particle
	nextPending int
	active      int
	activeMass  float64

	// State
	step      int32
	time      float64
	speeds    []float64
	lastFlush int32

	counters  *telemetry.CellCounters
	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	output    *telemetry.OutputManager
	bookmarks *telemetry.BookmarkDetector
	marks     []telemetry.Bookmark

	parallel *parallelState

	statsCallback func(telemetry.WindowStats)
}

// New creates a simulation that releases particles as their time comes.
// particles must be sorted by release time, as release.Scheduler.ReleaseAll returns them.
func New(deps Deps, particles []release.Particle, opts Options) (*Simulation, error) {
	if deps.Mesh == nil || deps.Interpolator == nil {
		return nil, errors.New("sim: mesh and interpolator are required")
	}
	if !(opts.DT > 0) || math.IsInf(opts.DT, 0) {
		return nil, fmt.Errorf("sim: invalid time step %v", opts.DT)
	}
	for i := 1; i < len(particles); i++ {
		if particles[i].ReleaseTime < particles[i-1].ReleaseTime {
			return nil, errors.New("sim: particles are not sorted by release time")
		}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.MaxHops < 0 {
		opts.MaxHops = 0
	}
	if opts.PerfWindow <= 0 {
		opts.PerfWindow = 120
	}

	world := ecs.NewWorld()
	s := &Simulation{
		world: world,
		particleMapper: ecs.NewMap5[
			components.Position,
			components.Velocity,
			components.Location,
			components.Payload,
			components.Trail,
		](world),
		particleFilter: ecs.NewFilter5[
			components.Position,
			components.Velocity,
			components.Location,
			components.Payload,
			components.Trail,
		](world),
		posMap:   ecs.NewMap1[components.Position](world),
		velMap:   ecs.NewMap1[components.Velocity](world),
		locMap:   ecs.NewMap1[components.Location](world),
		trailMap: ecs.NewMap1[components.Trail](world),

		mesh:      deps.Mesh,
		interp:    deps.Interpolator,
		localizer: transport.NewLocalizer(deps.Mesh),
		store:     deps.Store,
		opts:      opts,
		pending:   particles,
		time:      opts.StartTime,

		counters:  telemetry.NewCellCounters(deps.Mesh.NumCells()),
		collector: telemetry.NewCollector(opts.WindowSteps),
		perf:      telemetry.NewPerfCollector(opts.PerfWindow),
		output:    deps.Output,
		bookmarks: telemetry.NewBookmarkDetector(10),
		parallel:  newParallelState(opts.Workers),
	}
	return s, nil
}

// SetStatsCallback registers fn to receive every flushed stats window.
func (s *Simulation) SetStatsCallback(fn func(telemetry.WindowStats)) {
	s.statsCallback = fn
}

// Step advances the simulation by one time step.
func (s *Simulation) Step() {
	s.perf.StartStep()

	s.perf.StartPhase(telemetry.PhaseRelease)
	s.releaseDue()

	s.moveParticles()

	s.step++
	s.time = s.opts.StartTime + float64(s.step)*s.opts.DT

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.flushTelemetry(false)
	s.maybeSnapshot()

	s.perf.EndStep()
}

// Run advances up to steps time steps. Cancellation is checked between steps;
// a step in progress always completes.
func (s *Simulation) Run(ctx context.Context, steps int) error {
	slog.Info("simulation started",
		"steps", steps,
		"dt", s.opts.DT,
		"particles", len(s.pending),
		"workers", s.parallel.numWorkers,
	)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			slog.Warn("simulation interrupted", "step", s.step, "error", err)
			return err
		}
		s.Step()
	}
	return nil
}

// Finish flushes the last partial stats window and writes the per-cell counters.
func (s *Simulation) Finish() error {
	s.flushTelemetry(true)
	if err := s.output.WriteCells(s.counters); err != nil {
		return fmt.Errorf("writing cell counters: %w", err)
	}
	if err := s.output.WriteBookmarks(s.marks); err != nil {
		return fmt.Errorf("writing bookmarks: %w", err)
	}
	slog.Info("simulation finished",
		"step", s.step,
		"sim_time", s.time,
		"active", s.active,
		"pending", s.Pending(),
		"active_mass", s.activeMass,
	)
	return nil
}

// Close stops the worker pool. The simulation must not be stepped afterwards.
func (s *Simulation) Close() {
	s.stopParallelWorkers()
}

// StepCount returns the number of completed steps.
func (s *Simulation) StepCount() int32 { return s.step }

// Time returns the current simulation time.
func (s *Simulation) Time() float64 { return s.time }

// Active returns the number of released particles.
func (s *Simulation) Active() int { return s.active }

// Pending returns the number of particles not yet released.
func (s *Simulation) Pending() int { return len(s.pending) - s.nextPending }

// ActiveMass returns the mass carried by released particles.
func (s *Simulation) ActiveMass() float64 { return s.activeMass }

// Counters returns the per-cell counters.
func (s *Simulation) Counters() *telemetry.CellCounters { return s.counters }

// Bookmarks returns the notable moments detected so far.
func (s *Simulation) Bookmarks() []telemetry.Bookmark { return s.marks }

// Perf returns step timing statistics.
func (s *Simulation) Perf() telemetry.PerfStats { return s.perf.Stats() }

// Particles returns the state of every released particle ordered by sequence id.
func (s *Simulation) Particles() []telemetry.ParticleState {
	out := make([]telemetry.ParticleState, 0, s.active)
	query := s.particleFilter.Query()
	for query.Next() {
		pos, _, loc, payload, trail := query.Get()

		var name string
		if payload.Injection != nil {
			name = payload.Injection.Name
		}
		st := telemetry.ParticleState{
			Seq:       payload.Seq,
			Injection: name,
			Cell:      loc.Cell,
			X:         pos.X,
			Y:         pos.Y,
			Mass:      payload.Mass,
		}
		if len(trail.Points) > 0 {
			st.Trail = append([][2]float64(nil), trail.Points...)
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
