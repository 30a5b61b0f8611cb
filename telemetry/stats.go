package telemetry

import (
	"log/slog"
	"sort"
)

// WindowStats holds aggregated transport statistics for a window of steps.
type WindowStats struct {
	WindowStartStep int32   `csv:"-"`
	WindowEndStep   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Particle population at window end
	Active     int     `csv:"active"`
	Pending    int     `csv:"pending"`
	ActiveMass float64 `csv:"active_mass"`

	// Events during window
	Released int `csv:"released"`
	Inside   int `csv:"inside"`
	Walked   int `csv:"walked"`
	Boundary int `csv:"boundary"`
	Snapped  int `csv:"snapped"`
	Failures int `csv:"failures"`
	MaxHops  int `csv:"max_hops"`

	// Speed distribution (sampled at window end), m/s
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Flow field
	CellsLoaded int64 `csv:"cells_loaded"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeSpeedStats calculates mean, median, 90th percentile and maximum.
func ComputeSpeedStats(values []float64) (mean, p50, p90, peak float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return mean, Percentile(sorted, 0.50), Percentile(sorted, 0.90), sorted[n-1]
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartStep)),
		slog.Int("window_end", int(s.WindowEndStep)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("active", s.Active),
		slog.Int("pending", s.Pending),
		slog.Float64("active_mass", s.ActiveMass),
		slog.Int("released", s.Released),
		slog.Int("inside", s.Inside),
		slog.Int("walked", s.Walked),
		slog.Int("boundary", s.Boundary),
		slog.Int("snapped", s.Snapped),
		slog.Int("failures", s.Failures),
		slog.Int("max_hops", s.MaxHops),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Int64("cells_loaded", s.CellsLoaded),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
