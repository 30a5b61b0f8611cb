package sim

import (
	"log/slog"

	"github.com/rsaemann/GULLI-sub003/telemetry"
)

// flushTelemetry flushes the stats window when it is due, or whenever it holds
// at least one step if force is set.
func (s *Simulation) flushTelemetry(force bool) {
	if !s.collector.ShouldFlush(s.step) && !(force && s.step > s.lastFlush) {
		return
	}
	s.lastFlush = s.step

	var loaded int64
	if s.store != nil {
		loaded = s.store.Loads()
	}

	stats := s.collector.Flush(s.step, s.time, telemetry.Population{
		Active:      s.active,
		Pending:     s.Pending(),
		ActiveMass:  s.activeMass,
		Speeds:      s.speeds,
		CellsLoaded: loaded,
	})
	perfStats := s.perf.Stats()

	// Call stats callback if provided
	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	if s.opts.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	for _, b := range s.bookmarks.Check(stats) {
		b.LogBookmark()
		s.marks = append(s.marks, b)
	}

	if err := s.output.WriteStats(stats); err != nil {
		slog.Error("failed to write stats", "error", err)
	}
	if err := s.output.WritePerf(perfStats, stats.WindowEndStep); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}

// maybeSnapshot writes a GeoJSON snapshot every SnapshotEvery steps.
func (s *Simulation) maybeSnapshot() {
	if s.output == nil || s.opts.SnapshotEvery <= 0 || int(s.step)%s.opts.SnapshotEvery != 0 {
		return
	}
	if err := s.output.WriteSnapshot(s.step, s.time, s.Particles()); err != nil {
		slog.Error("failed to write snapshot", "step", s.step, "error", err)
	}
}
