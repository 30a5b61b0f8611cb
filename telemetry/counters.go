package telemetry

// CellCounters accumulates per-cell particle statistics. It is written from the
// single-threaded apply phase only.
type CellCounters struct {
	visits   []int64
	massTime []float64
}

// CellRecord is one row of cells.csv.
type CellRecord struct {
	Cell     int32   `csv:"cell"`
	Visits   int64   `csv:"particle_steps"`
	MassTime float64 `csv:"mass_seconds"`
}

// NewCellCounters creates counters for n cells.
func NewCellCounters(n int) *CellCounters {
	return &CellCounters{
		visits:   make([]int64, n),
		massTime: make([]float64, n),
	}
}

// Record adds one particle of the given mass spending dt seconds in cell.
func (c *CellCounters) Record(cell int32, mass, dt float64) {
	if cell < 0 || int(cell) >= len(c.visits) {
		return
	}
	c.visits[cell]++
	c.massTime[cell] += mass * dt
}

// Visits returns the number of particle-steps spent in cell.
func (c *CellCounters) Visits(cell int32) int64 { return c.visits[cell] }

// MassTime returns the accumulated mass times residence time of cell.
func (c *CellCounters) MassTime(cell int32) float64 { return c.massTime[cell] }

// Len returns the number of cells tracked.
func (c *CellCounters) Len() int { return len(c.visits) }

// Records returns a row per visited cell.
func (c *CellCounters) Records() []CellRecord {
	var out []CellRecord
	for i, v := range c.visits {
		if v == 0 {
			continue
		}
		out = append(out, CellRecord{Cell: int32(i), Visits: v, MassTime: c.massTime[i]})
	}
	return out
}
