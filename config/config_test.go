package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsaemann/GULLI-sub003/flowfield"
	"github.com/rsaemann/GULLI-sub003/transport"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Mesh.MaxHops)
	assert.Equal(t, flowfield.Sparse, cfg.Derived.FlowMode)
	assert.Equal(t, transport.CellNeighbor, cfg.Derived.InterpMode)
	assert.Greater(t, cfg.Derived.Workers, 0)
	require.Len(t, cfg.Release.Injections, 1)

	// 12 intervals of 300 s at dt 10 s
	assert.Equal(t, 360, cfg.Derived.Steps)
	assert.InDelta(t, 3600.0, cfg.Derived.EndTime, 1e-9)
}

func TestLoadOverridesOnlyPresentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte(`
flow:
  mode: dense
interpolation:
  mode: node_weighted
  node_weighting: area
simulation:
  steps: 5
  workers: 3
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, flowfield.Dense, cfg.Derived.FlowMode)
	assert.Equal(t, transport.NodeWeighted, cfg.Derived.InterpMode)
	assert.Equal(t, transport.AreaWeights, cfg.Derived.NodeWeighting)
	assert.Equal(t, 3, cfg.Derived.Workers)
	assert.Equal(t, 5, cfg.Derived.Steps)
	// untouched defaults survive
	assert.Equal(t, 50.0, cfg.Flow.Roughness)
	assert.Equal(t, 10.0, cfg.Simulation.DT)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Mesh.Cells = "cells.csv"
	cfg.Flow.Mode = "streaming"
	cfg.Simulation.DT = 0
	cfg.Release.Injections = append(cfg.Release.Injections, cfg.Release.Injections[0])
	cfg.Telemetry.WindowSteps = 0

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	msg := err.Error()
	for _, want := range []string{"mesh.vertices", "flow.mode", "simulation.dt", "duplicate name", "telemetry.window_steps"} {
		assert.Contains(t, msg, want)
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "simulation: [1, 2"},
		{"unknown mode", "interpolation:\n  mode: bilinear\n"},
		{"negative hops", "mesh:\n  max_hops: -1\n"},
		{"empty timeline", "flow:\n  timeline:\n    count: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Simulation.Seed = 7

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), back.Simulation.Seed)
	assert.Equal(t, cfg.Release.Injections, back.Release.Injections)
}

func TestRefresh(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Simulation.Steps = 12
	require.NoError(t, cfg.Refresh())
	assert.Equal(t, 12, cfg.Derived.Steps)

	cfg.Simulation.Workers = -2
	assert.True(t, errors.Is(cfg.Refresh(), ErrInvalid))
}
