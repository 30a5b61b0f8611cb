// Package telemetry aggregates transport statistics, per-cell counters and run
// outputs (CSV tables and GeoJSON snapshots).
package telemetry

import "github.com/rsaemann/GULLI-sub003/transport"

// Collector accumulates events within windows of steps and produces WindowStats.
type Collector struct {
	windowSteps int32

	// Current window tracking
	windowStartStep int32

	// Event counters for current window
	released int
	inside   int
	walked   int
	boundary int
	snapped  int
	failures int
	maxHops  int
}

// NewCollector creates a new stats collector.
// windowSteps: how many steps each window spans
func NewCollector(windowSteps int) *Collector {
	if windowSteps < 1 {
		windowSteps = 1
	}
	return &Collector{
		windowSteps: int32(windowSteps),
	}
}

// RecordRelease records particles entering the mesh.
func (c *Collector) RecordRelease(n int) {
	c.released += n
}

// RecordResolution records how one particle's move was resolved.
func (c *Collector) RecordResolution(o transport.Outcome, hops int) {
	switch o {
	case transport.Inside:
		c.inside++
	case transport.Walked:
		c.walked++
	case transport.Boundary:
		c.boundary++
	case transport.Snapped:
		c.snapped++
	}
	if hops > c.maxHops {
		c.maxHops = hops
	}
}

// RecordFailure records a particle left in place after its step failed.
func (c *Collector) RecordFailure() {
	c.failures++
}

// ShouldFlush returns true if enough steps have passed to flush the window.
func (c *Collector) ShouldFlush(currentStep int32) bool {
	return currentStep-c.windowStartStep >= c.windowSteps
}

// Population is the particle state sampled at window end.
type Population struct {
	Active      int
	Pending     int
	ActiveMass  float64
	Speeds      []float64
	CellsLoaded int64
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentStep int32, simTime float64, pop Population) WindowStats {
	mean, p50, p90, peak := ComputeSpeedStats(pop.Speeds)

	stats := WindowStats{
		WindowStartStep: c.windowStartStep,
		WindowEndStep:   currentStep,
		SimTimeSec:      simTime,

		Active:     pop.Active,
		Pending:    pop.Pending,
		ActiveMass: pop.ActiveMass,

		Released: c.released,
		Inside:   c.inside,
		Walked:   c.walked,
		Boundary: c.boundary,
		Snapped:  c.snapped,
		Failures: c.failures,
		MaxHops:  c.maxHops,

		SpeedMean: mean,
		SpeedP50:  p50,
		SpeedP90:  p90,
		SpeedMax:  peak,

		CellsLoaded: pop.CellsLoaded,
	}

	// Reset for next window
	c.windowStartStep = currentStep
	c.released = 0
	c.inside = 0
	c.walked = 0
	c.boundary = 0
	c.snapped = 0
	c.failures = 0
	c.maxHops = 0

	return stats
}

// WindowSteps returns the number of steps per window.
func (c *Collector) WindowSteps() int32 {
	return c.windowSteps
}
