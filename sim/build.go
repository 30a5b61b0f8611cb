package sim

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/rsaemann/GULLI-sub003/config"
	"github.com/rsaemann/GULLI-sub003/flowfield"
	"github.com/rsaemann/GULLI-sub003/mesh"
	"github.com/rsaemann/GULLI-sub003/meshio"
	"github.com/rsaemann/GULLI-sub003/release"
	"github.com/rsaemann/GULLI-sub003/telemetry"
	"github.com/rsaemann/GULLI-sub003/timeline"
	"github.com/rsaemann/GULLI-sub003/transport"
)

// profileBins is the resolution of the release profile logged per injection.
const profileBins = 10

// FromConfig builds the mesh, flow field, interpolator and release schedule
// described by cfg. Every failure here is a configuration error.
func FromConfig(cfg *config.Config, output *telemetry.OutputManager) (*Simulation, error) {
	m, err := loadMesh(cfg.Mesh)
	if err != nil {
		return nil, err
	}
	slog.Info("mesh loaded", "cells", m.NumCells(), "vertices", m.NumVertices())

	tc := cfg.Flow.Timeline
	tl, err := timeline.Uniform(tc.Start, tc.Step, tc.Count)
	if err != nil {
		return nil, fmt.Errorf("flow timeline: %w", err)
	}

	src, err := flowSource(cfg.Flow, m, tl.Len())
	if err != nil {
		return nil, err
	}
	store, err := flowfield.New(m, src, tl.Len(), flowfield.Options{
		Mode:         cfg.Derived.FlowMode,
		Roughness:    cfg.Flow.Roughness,
		DryDepth:     cfg.Flow.DryDepth,
		ZeroDryCells: cfg.Flow.ZeroDryCells,
	})
	if err != nil {
		return nil, fmt.Errorf("flow field: %w", err)
	}

	interp, err := transport.NewInterpolator(m, store, tl, transport.InterpolatorOptions{
		Mode:      cfg.Derived.InterpMode,
		Divisor:   cfg.Interpolation.Divisor,
		Weighting: cfg.Derived.NodeWeighting,
	})
	if err != nil {
		return nil, fmt.Errorf("interpolator: %w", err)
	}

	injections, err := buildInjections(cfg.Release.Injections, m)
	if err != nil {
		return nil, err
	}
	particles := release.NewScheduler(cfg.Release.TraceEvery).ReleaseAll(injections)
	logProfiles(injections, particles)

	if err := output.WriteConfig(cfg); err != nil {
		return nil, err
	}
	if err := output.WriteReleases(telemetry.ReleaseRecords(particles)); err != nil {
		return nil, err
	}

	return New(Deps{
		Mesh:         m,
		Interpolator: interp,
		Store:        store,
		Output:       output,
	}, particles, Options{
		StartTime:     tc.Start,
		DT:            cfg.Simulation.DT,
		MaxHops:       cfg.Mesh.MaxHops,
		Workers:       cfg.Derived.Workers,
		Dispersion:    cfg.Simulation.Dispersion,
		Seed:          cfg.Simulation.Seed,
		TrailLength:   cfg.Release.TrailLength,
		WindowSteps:   cfg.Telemetry.WindowSteps,
		SnapshotEvery: cfg.Telemetry.SnapshotEvery,
		PerfWindow:    cfg.Telemetry.PerfWindow,
		LogStats:      cfg.Telemetry.LogStats,
	})
}

func loadMesh(mc config.MeshConfig) (*mesh.Mesh, error) {
	if mc.Vertices != "" {
		return meshio.LoadMesh(mc.Vertices, mc.Cells)
	}
	g := mc.Grid
	m, err := mesh.Grid(g.NX, g.NY, g.DX, g.Slope)
	if err != nil {
		return nil, fmt.Errorf("generating grid mesh: %w", err)
	}
	return m, nil
}

// flowSource reads per-cell files when a directory is configured and
// otherwise serves a constant depth everywhere.
func flowSource(fc config.FlowConfig, m *mesh.Mesh, steps int) (flowfield.Source, error) {
	if fc.Dir != "" {
		src, err := meshio.NewDirSource(fc.Dir, steps)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	depth := make([][]float32, m.NumCells())
	series := make([]float32, steps)
	for i := range series {
		series[i] = float32(fc.UniformDepth)
	}
	for i := range depth {
		depth[i] = series
	}
	return &flowfield.MemorySource{Depth: depth}, nil
}

func buildInjections(ics []config.InjectionConfig, m *mesh.Mesh) ([]*release.Injection, error) {
	out := make([]*release.Injection, 0, len(ics))
	for _, ic := range ics {
		pos := r2.Vec{X: ic.X, Y: ic.Y}
		cell := m.FindCell(pos)
		if cell < 0 {
			return nil, fmt.Errorf("%w: injection %q at (%v, %v) is outside the mesh", config.ErrInvalid, ic.Name, ic.X, ic.Y)
		}
		out = append(out, &release.Injection{
			Name:           ic.Name,
			Position:       pos,
			Cell:           cell,
			Mass:           ic.Mass,
			Particles:      ic.Particles,
			Start:          ic.Start,
			Duration:       ic.Duration,
			StartIntensity: ic.StartIntensity,
			EndIntensity:   ic.EndIntensity,
		})
	}
	return out, nil
}

func logProfiles(injections []*release.Injection, particles []release.Particle) {
	byInjection := make(map[*release.Injection][]release.Particle, len(injections))
	for _, p := range particles {
		byInjection[p.Injection] = append(byInjection[p.Injection], p)
	}
	for _, inj := range injections {
		ps := byInjection[inj]
		slog.Info("injection scheduled",
			"name", inj.Name,
			"cell", inj.Cell,
			"particles", len(ps),
			"mass", release.TotalMass(ps),
			"regime", release.Classify(inj.Duration, inj.StartIntensity, inj.EndIntensity).String(),
			"profile", telemetry.MassProfile(ps, inj.Start, inj.Duration, profileBins),
		)
	}
}
