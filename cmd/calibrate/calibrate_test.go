package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsaemann/GULLI-sub003/config"
)

func TestParamVectorRoundTrip(t *testing.T) {
	pv := NewParamVector()
	def := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		assert.InDelta(t, def[i], back[i], 1e-12, pv.Specs[i].Name)
	}

	clamped := pv.Clamp([]float64{-1, 100, 60})
	assert.Equal(t, []float64{0, 8, 60}, clamped)

	cfg, err := config.Load("")
	require.NoError(t, err)
	pv.ApplyToConfig(cfg, []float64{0.2, 2, 30})
	assert.Equal(t, []float64{0.2, 2, 30}, pv.ExtractFromConfig(cfg))
}

func TestCloudMoments(t *testing.T) {
	tests := []struct {
		name       string
		xs, ys, ws []float64
		want       Moments
	}{
		{"unweighted", []float64{0, 2}, []float64{1, 1}, []float64{0, 0}, Moments{CX: 1, CY: 1, SX: 1, SY: 0}},
		{"weighted", []float64{0, 4}, []float64{0, 0}, []float64{3, 1}, Moments{CX: 1, CY: 0, SX: math.Sqrt(3), SY: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cloudMoments(tt.xs, tt.ys, tt.ws)
			assert.InDelta(t, tt.want.CX, got.CX, 1e-12)
			assert.InDelta(t, tt.want.CY, got.CY, 1e-12)
			assert.InDelta(t, tt.want.SX, got.SX, 1e-12)
			assert.InDelta(t, tt.want.SY, got.SY, 1e-12)
		})
	}

	assert.True(t, math.IsInf(misfit(cloudMoments(nil, nil, nil), Moments{}), 1))
	assert.Equal(t, 2.0, misfit(Moments{CX: 1, SY: 1}, Moments{}))
}

func TestLoadObservations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "obs.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,y,mass\n1,2,0.5\n3,4,0.5\n"), 0644))

	obs, err := LoadObservations(path)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, Observation{X: 3, Y: 4, Mass: 0.5}, obs[1])

	_, err = LoadObservations(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestEvaluatePrefersMatchingDispersion(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Mesh.Grid = config.GridConfig{NX: 20, NY: 6, DX: 5, Slope: 0.01}
	cfg.Release.Injections[0].Particles = 200
	cfg.Release.Injections[0].Duration = 0
	cfg.Simulation.Steps = 20
	cfg.Telemetry.LogStats = false
	require.NoError(t, cfg.Refresh())

	pv := NewParamVector()
	truth := []float64{0.3, 4, 50}

	// The observed cloud is a run at the true parameters with another seed.
	gen := NewFitnessEvaluator(pv, []uint64{7}, cfg, Moments{})
	target, err := gen.runSimulation(truth, 7)
	require.NoError(t, err)

	fe := NewFitnessEvaluator(pv, []uint64{1, 2}, cfg, target)
	near := fe.Evaluate(truth)
	assert.InDelta(t, target.CX, fe.LastMoments().CX, 5)
	far := fe.Evaluate([]float64{0, 4, 50})
	assert.Less(t, near, far)
}
