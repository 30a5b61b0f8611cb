package sim

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/rsaemann/GULLI-sub003/telemetry"
	"github.com/rsaemann/GULLI-sub003/transport"
)

// parallelThreshold is the minimum particle count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// particleSnapshot captures read-only state for parallel processing.
type particleSnapshot struct {
	Entity ecs.Entity
	Seq    uint64
	Pos    r2.Vec
	Cell   int32
	Mass   float64
	Trace  bool
	T0     float64 // time the move starts, later than the step start on release
	DT     float64 // effective step length
}

// intent captures computed outputs to apply after the parallel phase.
type intent struct {
	Pos     r2.Vec
	Cell    int32
	Vel     r2.Vec
	Outcome transport.Outcome
	Hops    int
	Failed  bool
}

// workerScratch holds per-worker reusable state.
type workerScratch struct {
	pcg *rand.PCG
	rng *rand.Rand
}

// workChunk represents a range of particles for a worker to process.
type workChunk struct {
	start, end int
	step       int32
}

// parallelState holds resources for the parallel move computation.
type parallelState struct {
	snapshots  []particleSnapshot
	intents    []intent
	scratches  []workerScratch
	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState(numWorkers int) *parallelState {
	if numWorkers < 1 {
		numWorkers = 1
	}
	scratches := make([]workerScratch, numWorkers)
	for i := range scratches {
		pcg := rand.NewPCG(0, 0)
		scratches[i] = workerScratch{pcg: pcg, rng: rand.New(pcg)}
	}
	return &parallelState{
		numWorkers: numWorkers,
		scratches:  scratches,
		snapshots:  make([]particleSnapshot, 0, 512),
		intents:    make([]intent, 0, 512),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(s *Simulation) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(s, i)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(s *Simulation, workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			s.computeChunk(chunk.start, chunk.end, scratch, chunk.step)
			p.doneChan <- struct{}{}
		}
	}
}

// moveParticles runs the snapshot, compute and apply phases for one step.
func (s *Simulation) moveParticles() {
	// Phase A: Build snapshots (single-threaded)
	s.perf.StartPhase(telemetry.PhaseSnapshot)
	s.snapshotParticles()

	n := len(s.parallel.snapshots)
	if n == 0 {
		return
	}

	// Resize intents slice
	if cap(s.parallel.intents) < n {
		s.parallel.intents = make([]intent, n)
	}
	s.parallel.intents = s.parallel.intents[:n]

	// Phase B: Compute - choose single or parallel based on particle count
	s.perf.StartPhase(telemetry.PhaseCompute)
	if n < parallelThreshold || s.parallel.numWorkers == 1 {
		s.computeChunk(0, n, &s.parallel.scratches[0], s.step)
	} else {
		s.computeParallel(n)
	}

	// Phase C: Apply intents (single-threaded, preserves determinism)
	s.perf.StartPhase(telemetry.PhaseApply)
	s.applyIntents()
}

// snapshotParticles copies the state of every active particle.
func (s *Simulation) snapshotParticles() {
	s.parallel.snapshots = s.parallel.snapshots[:0]
	stepEnd := s.time + s.opts.DT

	query := s.particleFilter.Query()
	for query.Next() {
		pos, _, loc, payload, _ := query.Get()

		t0 := max(s.time, payload.ReleaseTime)
		s.parallel.snapshots = append(s.parallel.snapshots, particleSnapshot{
			Entity: query.Entity(),
			Seq:    payload.Seq,
			Pos:    r2.Vec{X: pos.X, Y: pos.Y},
			Cell:   loc.Cell,
			Mass:   payload.Mass,
			Trace:  payload.Trace,
			T0:     t0,
			DT:     stepEnd - t0,
		})
	}
}

// computeParallel dispatches work to the worker pool.
func (s *Simulation) computeParallel(n int) {
	// Ensure workers are running
	if !s.parallel.running {
		s.parallel.startWorkers(s)
	}

	numWorkers := s.parallel.numWorkers
	chunkSize := (n + numWorkers - 1) / numWorkers

	// Dispatch chunks to workers
	chunksDispatched := 0
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}

		s.parallel.workChan <- workChunk{start: start, end: end, step: s.step}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-s.parallel.doneChan
	}
}

// computeChunk processes a range of particles for a single worker.
func (s *Simulation) computeChunk(i0, i1 int, scratch *workerScratch, step int32) {
	for i := i0; i < i1; i++ {
		s.computeParticle(&s.parallel.snapshots[i], &s.parallel.intents[i], scratch, step)
	}
}

// computeParticle advects one particle and resolves its new cell. A panic
// leaves the particle where it was.
func (s *Simulation) computeParticle(snap *particleSnapshot, in *intent, scratch *workerScratch, step int32) {
	defer func() {
		if r := recover(); r != nil {
			*in = intent{Pos: snap.Pos, Cell: snap.Cell, Failed: true}
		}
	}()

	pos, cell := snap.Pos, snap.Cell
	if !s.mesh.Valid(cell) {
		r := s.localizer.Resolve(cell, pos, pos, 0)
		pos, cell = r.Pos, r.Cell
	}

	vel := s.interp.VelocityAt(pos, cell, snap.T0)
	d := r2.Scale(snap.DT, vel)

	if s.opts.Dispersion > 0 && snap.DT > 0 {
		// Seeded per particle and step so results do not depend on the chunking.
		scratch.pcg.Seed(s.opts.Seed, snap.Seq*0x9e3779b97f4a7c15^uint64(step))
		sigma := math.Sqrt(2 * s.opts.Dispersion * snap.DT)
		d.X += sigma * scratch.rng.NormFloat64()
		d.Y += sigma * scratch.rng.NormFloat64()
	}

	r := s.localizer.Resolve(cell, pos, r2.Add(pos, d), s.opts.MaxHops)
	*in = intent{
		Pos:     r.Pos,
		Cell:    r.Cell,
		Vel:     vel,
		Outcome: r.Outcome,
		Hops:    r.Hops,
	}
}

// applyIntents writes computed results back to ECS components.
func (s *Simulation) applyIntents() {
	s.speeds = s.speeds[:0]

	for i := range s.parallel.snapshots {
		snap := &s.parallel.snapshots[i]
		in := &s.parallel.intents[i]

		// Get live component pointers
		pos := s.posMap.Get(snap.Entity)
		vel := s.velMap.Get(snap.Entity)
		loc := s.locMap.Get(snap.Entity)
		if pos == nil || vel == nil || loc == nil {
			continue
		}

		if in.Failed {
			s.collector.RecordFailure()
		} else {
			s.collector.RecordResolution(in.Outcome, in.Hops)
		}

		pos.X, pos.Y = in.Pos.X, in.Pos.Y
		vel.X, vel.Y = in.Vel.X, in.Vel.Y
		loc.Cell = in.Cell

		s.counters.Record(in.Cell, snap.Mass, snap.DT)
		s.speeds = append(s.speeds, r2.Norm(in.Vel))

		if snap.Trace {
			if trail := s.trailMap.Get(snap.Entity); trail != nil {
				trail.Push(pos.X, pos.Y)
			}
		}
	}
}

// stopParallelWorkers should be called when shutting down the simulation.
func (s *Simulation) stopParallelWorkers() {
	if s.parallel != nil {
		s.parallel.stopWorkers()
	}
}
