package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"slices"
	"sync"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"

	"github.com/rsaemann/GULLI-sub003/config"
	"github.com/rsaemann/GULLI-sub003/sim"
	"github.com/rsaemann/GULLI-sub003/telemetry"
)

// Observation is one row of the observed cloud CSV.
type Observation struct {
	X    float64 `csv:"x"`
	Y    float64 `csv:"y"`
	Mass float64 `csv:"mass"`
}

// Moments summarizes a mass-weighted point cloud.
type Moments struct {
	CX, CY float64 // centroid
	SX, SY float64 // standard deviation per axis
}

// LoadObservations reads the observed cloud from path.
func LoadObservations(path string) ([]Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening observations: %w", err)
	}
	defer f.Close()

	var obs []Observation
	if err := gocsv.UnmarshalFile(f, &obs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%s holds no observations", path)
	}
	return obs, nil
}

// cloudMoments computes mass-weighted moments. Equal weights are used when no
// point carries mass.
func cloudMoments(xs, ys, ws []float64) Moments {
	if len(xs) == 0 {
		return Moments{CX: math.NaN(), CY: math.NaN()}
	}
	if !slices.ContainsFunc(ws, func(w float64) bool { return w > 0 }) {
		ws = nil
	}
	cx, sx := stat.PopMeanStdDev(xs, ws)
	cy, sy := stat.PopMeanStdDev(ys, ws)
	return Moments{CX: cx, CY: cy, SX: sx, SY: sy}
}

func observedMoments(obs []Observation) Moments {
	xs := make([]float64, len(obs))
	ys := make([]float64, len(obs))
	ws := make([]float64, len(obs))
	for i, o := range obs {
		xs[i], ys[i], ws[i] = o.X, o.Y, o.Mass
	}
	return cloudMoments(xs, ys, ws)
}

func particleMoments(ps []telemetry.ParticleState) Moments {
	xs := make([]float64, len(ps))
	ys := make([]float64, len(ps))
	ws := make([]float64, len(ps))
	for i, p := range ps {
		xs[i], ys[i], ws[i] = p.X, p.Y, p.Mass
	}
	return cloudMoments(xs, ys, ws)
}

// misfit is the squared distance between two moment vectors in m².
func misfit(a, b Moments) float64 {
	d := (a.CX-b.CX)*(a.CX-b.CX) +
		(a.CY-b.CY)*(a.CY-b.CY) +
		(a.SX-b.SX)*(a.SX-b.SX) +
		(a.SY-b.SY)*(a.SY-b.SY)
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}

// FitnessEvaluator runs simulations and scores them against the observed cloud.
type FitnessEvaluator struct {
	params     *ParamVector
	seeds      []uint64
	baseConfig *config.Config
	target     Moments

	mu   sync.Mutex
	last Moments // simulated moments of the most recent evaluation
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, seeds []uint64, baseCfg *config.Config, target Moments) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		seeds:      seeds,
		baseConfig: baseCfg,
		target:     target,
	}
}

// LastMoments returns the simulated moments averaged over the seeds of the
// most recent evaluation.
func (fe *FitnessEvaluator) LastMoments() Moments {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// Evaluate computes the misfit for a parameter vector (lower = better),
// averaged over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]Moments, len(fe.seeds))
	errs := make([]error, len(fe.seeds))
	var wg sync.WaitGroup

	// Run all seeds in parallel
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s uint64) {
			defer wg.Done()
			results[idx], errs[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	var total float64
	var avg Moments
	for i, m := range results {
		if errs[i] != nil {
			return math.Inf(1)
		}
		total += misfit(m, fe.target)
		avg.CX += m.CX
		avg.CY += m.CY
		avg.SX += m.SX
		avg.SY += m.SY
	}

	n := float64(len(fe.seeds))
	avg.CX /= n
	avg.CY /= n
	avg.SX /= n
	avg.SY /= n
	fe.mu.Lock()
	fe.last = avg
	fe.mu.Unlock()

	return total / n
}

// runSimulation runs one headless simulation to its configured end.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed uint64) (Moments, error) {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)
	cfg.Simulation.Seed = seed
	cfg.Simulation.Workers = 1 // seeds already run in parallel
	cfg.Telemetry.LogStats = false
	cfg.Telemetry.SnapshotEvery = 0
	if err := cfg.Refresh(); err != nil {
		return Moments{}, err
	}

	s, err := sim.FromConfig(cfg, nil)
	if err != nil {
		return Moments{}, err
	}
	defer s.Close()

	if err := s.Run(context.Background(), cfg.Derived.Steps); err != nil {
		return Moments{}, err
	}
	return particleMoments(s.Particles()), nil
}

// copyConfig creates a deep copy of the base config.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Release.Injections = slices.Clone(fe.baseConfig.Release.Injections)
	cfg.Telemetry.OutputDir = ""
	return &cfg
}
