package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/rsaemann/GULLI-sub003/config"
)

// OutputManager handles structured run output: CSV tables, the effective config
// and GeoJSON snapshots. A nil manager discards everything.
type OutputManager struct {
	dir       string
	stepsFile *os.File
	perfFile  *os.File

	// Track if headers have been written
	stepsHeaderWritten bool
	perfHeaderWritten  bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "steps.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating steps.csv: %w", err)
	}
	om.stepsFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.stepsFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteStats appends a window stats record to steps.csv.
func (om *OutputManager) WriteStats(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := appendCSV([]WindowStats{stats}, om.stepsFile, &om.stepsHeaderWritten); err != nil {
		return fmt.Errorf("writing steps: %w", err)
	}
	return nil
}

// WritePerf appends a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int32) error {
	if om == nil {
		return nil
	}
	if err := appendCSV([]PerfStatsCSV{stats.ToCSV(windowEnd)}, om.perfFile, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// appendCSV writes headers with the first batch only.
func appendCSV(records any, f *os.File, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}

// WriteCells writes the per-cell counters to cells.csv.
func (om *OutputManager) WriteCells(c *CellCounters) error {
	if om == nil || c == nil {
		return nil
	}
	return om.writeTable("cells.csv", c.Records())
}

// WriteReleases writes the release schedule to releases.csv.
func (om *OutputManager) WriteReleases(records []ReleaseRecord) error {
	if om == nil {
		return nil
	}
	return om.writeTable("releases.csv", records)
}

// WriteBookmarks writes the detected bookmarks to bookmarks.csv.
func (om *OutputManager) WriteBookmarks(bookmarks []Bookmark) error {
	if om == nil {
		return nil
	}
	if bookmarks == nil {
		bookmarks = []Bookmark{}
	}
	return om.writeTable("bookmarks.csv", bookmarks)
}

func (om *OutputManager) writeTable(name string, records any) error {
	f, err := os.Create(filepath.Join(om.dir, name))
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if err := gocsv.MarshalFile(records, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return f.Close()
}

// WriteSnapshot saves particle positions as snapshot_<step>.geojson.
func (om *OutputManager) WriteSnapshot(step int32, simTime float64, particles []ParticleState) error {
	if om == nil {
		return nil
	}
	data, err := SnapshotCollection(step, simTime, particles).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	path := filepath.Join(om.dir, fmt.Sprintf("snapshot_%06d.geojson", step))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.stepsFile, om.perfFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
