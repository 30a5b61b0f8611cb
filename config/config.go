// Package config provides configuration loading for the particle transport run.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/rsaemann/GULLI-sub003/flowfield"
	"github.com/rsaemann/GULLI-sub003/transport"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all run configuration parameters.
type Config struct {
	Mesh          MeshConfig          `yaml:"mesh"`
	Flow          FlowConfig          `yaml:"flow"`
	Interpolation InterpolationConfig `yaml:"interpolation"`
	Simulation    SimulationConfig    `yaml:"simulation"`
	Release       ReleaseConfig       `yaml:"release"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// MeshConfig locates the surface mesh.
// When Vertices is empty a regular grid is generated from Grid.
type MeshConfig struct {
	Vertices string     `yaml:"vertices"` // CSV: x,y,z
	Cells    string     `yaml:"cells"`    // CSV: v0,v1,v2,n0,n1,n2
	MaxHops  int        `yaml:"max_hops"` // cell walk budget per step
	Grid     GridConfig `yaml:"grid"`
}

// GridConfig describes a synthetic sloped rectangle.
type GridConfig struct {
	NX    int     `yaml:"nx"`
	NY    int     `yaml:"ny"`
	DX    float64 `yaml:"dx"`    // square side in meters
	Slope float64 `yaml:"slope"` // elevation drop per meter along +x
}

// FlowConfig holds flow field loading parameters.
type FlowConfig struct {
	Mode         string         `yaml:"mode"` // dense or sparse
	Dir          string         `yaml:"dir"`  // per-cell CSV directory
	UniformDepth float64        `yaml:"uniform_depth"`
	Roughness    float64        `yaml:"roughness"`
	DryDepth     float64        `yaml:"dry_depth"`
	ZeroDryCells bool           `yaml:"zero_dry_cells"`
	Timeline     TimelineConfig `yaml:"timeline"`
}

// TimelineConfig describes the timesteps the flow samples belong to.
type TimelineConfig struct {
	Start float64 `yaml:"start"` // seconds
	Step  float64 `yaml:"step"`
	Count int     `yaml:"count"`
}

// InterpolationConfig selects the velocity interpolation scheme.
type InterpolationConfig struct {
	Mode          string  `yaml:"mode"` // cell_neighbor or node_weighted
	Divisor       float64 `yaml:"divisor"`
	NodeWeighting string  `yaml:"node_weighting"` // uniform or area
}

// SimulationConfig holds stepping parameters.
type SimulationConfig struct {
	DT         float64 `yaml:"dt"`         // seconds per step
	Steps      int     `yaml:"steps"`      // 0 runs until the last timestep
	Workers    int     `yaml:"workers"`    // 0 = GOMAXPROCS
	Dispersion float64 `yaml:"dispersion"` // random-walk coefficient in m²/s
	Seed       uint64  `yaml:"seed"`
}

// ReleaseConfig lists the contaminant injections.
type ReleaseConfig struct {
	TraceEvery  int               `yaml:"trace_every"`  // flag every Nth particle, 0 disables
	TrailLength int               `yaml:"trail_length"` // positions kept per traced particle
	Injections  []InjectionConfig `yaml:"injections"`
}

// InjectionConfig is one release event.
type InjectionConfig struct {
	Name           string  `yaml:"name"`
	X              float64 `yaml:"x"`
	Y              float64 `yaml:"y"`
	Mass           float64 `yaml:"mass"`
	Particles      uint32  `yaml:"particles"`
	Start          float64 `yaml:"start"`
	Duration       float64 `yaml:"duration"`
	StartIntensity float64 `yaml:"start_intensity"`
	EndIntensity   float64 `yaml:"end_intensity"`
}

// TelemetryConfig holds output parameters.
type TelemetryConfig struct {
	OutputDir     string `yaml:"output_dir"`
	WindowSteps   int    `yaml:"window_steps"`
	SnapshotEvery int    `yaml:"snapshot_every"` // steps between GeoJSON snapshots, 0 disables
	LogStats      bool   `yaml:"log_stats"`
	PerfWindow    int    `yaml:"perf_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	FlowMode      flowfield.Mode
	InterpMode    transport.InterpolationMode
	NodeWeighting transport.NodeWeighting
	Workers       int     // resolved worker count
	Steps         int     // resolved step count
	EndTime       float64 // simulation time after Steps
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate reports every problem at once. Each error wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if (c.Mesh.Vertices == "") != (c.Mesh.Cells == "") {
		bad("mesh.vertices and mesh.cells must be set together")
	}
	if c.Mesh.Vertices == "" {
		g := c.Mesh.Grid
		if g.NX < 1 || g.NY < 1 || !(g.DX > 0) {
			bad("mesh.grid needs nx, ny >= 1 and dx > 0")
		}
	}
	if c.Mesh.MaxHops < 0 {
		bad("mesh.max_hops must not be negative")
	}

	if _, err := flowfield.ParseMode(c.Flow.Mode); err != nil {
		bad("flow.mode: %v", err)
	}
	if c.Flow.Roughness < 0 || !finite(c.Flow.Roughness) {
		bad("flow.roughness must be a non-negative number")
	}
	if c.Flow.Dir == "" && (c.Flow.UniformDepth < 0 || !finite(c.Flow.UniformDepth)) {
		bad("flow.uniform_depth must be a non-negative number")
	}
	if tl := c.Flow.Timeline; tl.Count < 1 || !(tl.Step > 0) || !finite(tl.Start) {
		bad("flow.timeline needs count >= 1 and step > 0")
	}

	if _, err := transport.ParseInterpolationMode(c.Interpolation.Mode); err != nil {
		bad("interpolation.mode: %v", err)
	}
	if _, err := transport.ParseNodeWeighting(c.Interpolation.NodeWeighting); err != nil {
		bad("interpolation.node_weighting: %v", err)
	}
	if c.Interpolation.Divisor < 0 || !finite(c.Interpolation.Divisor) {
		bad("interpolation.divisor must be a non-negative number")
	}

	if !(c.Simulation.DT > 0) || !finite(c.Simulation.DT) {
		bad("simulation.dt must be positive")
	}
	if c.Simulation.Steps < 0 {
		bad("simulation.steps must not be negative")
	}
	if c.Simulation.Workers < 0 {
		bad("simulation.workers must not be negative")
	}
	if c.Simulation.Dispersion < 0 || !finite(c.Simulation.Dispersion) {
		bad("simulation.dispersion must be a non-negative number")
	}

	if c.Release.TraceEvery < 0 {
		bad("release.trace_every must not be negative")
	}
	names := make(map[string]bool, len(c.Release.Injections))
	for i, inj := range c.Release.Injections {
		if inj.Name == "" {
			bad("release.injections[%d]: name is required", i)
		} else if names[inj.Name] {
			bad("release.injections[%d]: duplicate name %q", i, inj.Name)
		}
		names[inj.Name] = true
		if !finite(inj.X) || !finite(inj.Y) {
			bad("release.injections[%d]: position must be finite", i)
		}
		if inj.Mass < 0 || !finite(inj.Mass) {
			bad("release.injections[%d]: mass must be a non-negative number", i)
		}
		if !finite(inj.Start) || !finite(inj.Duration) || !finite(inj.StartIntensity) || !finite(inj.EndIntensity) {
			bad("release.injections[%d]: timing and intensities must be finite", i)
		}
	}

	if c.Telemetry.WindowSteps < 1 {
		bad("telemetry.window_steps must be at least 1")
	}
	if c.Telemetry.SnapshotEvery < 0 {
		bad("telemetry.snapshot_every must not be negative")
	}

	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
// Call only after Validate succeeded.
func (c *Config) computeDerived() {
	c.Derived.FlowMode, _ = flowfield.ParseMode(c.Flow.Mode)
	c.Derived.InterpMode, _ = transport.ParseInterpolationMode(c.Interpolation.Mode)
	c.Derived.NodeWeighting, _ = transport.ParseNodeWeighting(c.Interpolation.NodeWeighting)

	c.Derived.Workers = c.Simulation.Workers
	if c.Derived.Workers == 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}

	// Steps default to covering the flow timeline
	c.Derived.Steps = c.Simulation.Steps
	if c.Derived.Steps == 0 {
		span := c.Flow.Timeline.Step * float64(c.Flow.Timeline.Count-1)
		c.Derived.Steps = max(1, int(math.Ceil(span/c.Simulation.DT)))
	}
	c.Derived.EndTime = c.Flow.Timeline.Start + float64(c.Derived.Steps)*c.Simulation.DT
}

// Refresh re-validates and recomputes derived values after fields were changed
// in code, e.g. by command line overrides.
func (c *Config) Refresh() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
