package telemetry

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rsaemann/GULLI-sub003/release"
)

// ReleaseRecord is one row of releases.csv.
type ReleaseRecord struct {
	Seq         uint64  `csv:"seq"`
	Injection   string  `csv:"injection"`
	ReleaseTime float64 `csv:"release_time"`
	Mass        float64 `csv:"mass"`
	Trace       bool    `csv:"trace"`
}

// ReleaseRecords flattens scheduled particles for CSV export.
func ReleaseRecords(ps []release.Particle) []ReleaseRecord {
	out := make([]ReleaseRecord, len(ps))
	for i, p := range ps {
		var name string
		if p.Injection != nil {
			name = p.Injection.Name
		}
		out[i] = ReleaseRecord{
			Seq:         p.Seq,
			Injection:   name,
			ReleaseTime: p.ReleaseTime,
			Mass:        p.Mass,
			Trace:       p.Trace,
		}
	}
	return out
}

// ReleaseHistogram counts release times in bins equal intervals of
// [start, start+duration]. Times outside the interval are ignored.
func ReleaseHistogram(times []float64, start, duration float64, bins int) []float64 {
	if bins < 1 {
		bins = 1
	}
	end := start + math.Max(duration, 0)

	x := make([]float64, 0, len(times))
	for _, t := range times {
		if t >= start && t <= end {
			x = append(x, t)
		}
	}
	sort.Float64s(x)

	return stat.Histogram(nil, binDividers(start, end, bins), x, nil)
}

// MassProfile returns the released mass per bin, in the same bins as ReleaseHistogram.
func MassProfile(ps []release.Particle, start, duration float64, bins int) []float64 {
	if bins < 1 {
		bins = 1
	}
	sorted := make([]release.Particle, len(ps))
	copy(sorted, ps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ReleaseTime < sorted[j].ReleaseTime })

	end := start + math.Max(duration, 0)
	var x, w []float64
	for _, p := range sorted {
		if p.ReleaseTime >= start && p.ReleaseTime <= end {
			x = append(x, p.ReleaseTime)
			w = append(w, p.Mass)
		}
	}

	return stat.Histogram(nil, binDividers(start, end, bins), x, w)
}

// binDividers spans [start, end] with bins equal intervals. stat.Histogram treats
// the last divider as exclusive, so it is nudged past end.
func binDividers(start, end float64, bins int) []float64 {
	dividers := make([]float64, bins+1)
	if end > start {
		floats.Span(dividers, start, end)
	} else {
		for i := range dividers {
			dividers[i] = start + float64(i)
		}
	}
	dividers[bins] = math.Nextafter(dividers[bins], math.Inf(1))
	return dividers
}
