// Package release turns injection events into particles with release times whose
// density follows the injection intensity profile.
package release

import (
	"math"
)

const (
	// InstantThreshold is the duration in seconds below which an injection is a pulse.
	InstantThreshold = 0.1
	// ConstantTolerance is the intensity difference below which a profile is flat.
	ConstantTolerance = 1e-6
)

// Regime is the shape of an injection profile.
type Regime uint8

const (
	Instant Regime = iota
	Constant
	Ramp
)

func (r Regime) String() string {
	switch r {
	case Instant:
		return "instant"
	case Constant:
		return "constant"
	case Ramp:
		return "ramp"
	}
	return "unknown"
}

// Classify returns the regime Schedule uses for a profile.
func Classify(duration, startIntensity, endIntensity float64) Regime {
	_, duration, startIntensity, endIntensity = sanitize(0, duration, startIntensity, endIntensity)
	switch {
	case duration < InstantThreshold:
		return Instant
	case math.Abs(endIntensity-startIntensity) < ConstantTolerance:
		return Constant
	default:
		return Ramp
	}
}

// sanitize replaces inputs that would otherwise produce NaN release times.
func sanitize(start, duration, i0, i1 float64) (float64, float64, float64, float64) {
	if math.IsNaN(start) || math.IsInf(start, 0) {
		start = 0
	}
	if !(duration > 0) || math.IsInf(duration, 0) {
		duration = 0
	}
	if math.IsNaN(i0) || math.IsInf(i0, 0) || math.IsNaN(i1) || math.IsInf(i1, 0) {
		i0, i1 = 1, 1
	}
	i0, i1 = math.Max(i0, 0), math.Max(i1, 0)
	if i0 == 0 && i1 == 0 {
		i0, i1 = 1, 1
	}
	return start, duration, i0, i1
}

// Schedule returns n release times in [start, start+duration] whose density follows
// an intensity changing linearly from startIntensity to endIntensity. Times are
// ascending. A zero count is raised to one particle.
func Schedule(n uint32, massPerParticle, start, duration, startIntensity, endIntensity float64) []float64 {
	if n == 0 {
		n = 1
	}
	start, duration, i0, i1 := sanitize(start, duration, startIntensity, endIntensity)

	times := make([]float64, n)
	switch Classify(duration, i0, i1) {
	case Instant:
		for i := range times {
			times[i] = start
		}
		return times
	case Constant:
		for i := range times {
			times[i] = start + float64(i)/float64(n)*duration
		}
		return times
	}

	if n == 1 {
		times[0] = start
		return times
	}

	mpp := massPerParticle
	if !(mpp > 0) || math.IsInf(mpp, 0) {
		mpp = 1
	}

	// Scale the profile so it carries exactly the particle mass; the shape is kept.
	f := float64(n) * mpp / ((i0 + i1) / 2 * duration)
	lo, hi := math.Min(i0, i1)*f, math.Max(i0, i1)*f
	k := (hi - lo) / duration
	rising := i1 > i0

	// Solve in the frame where intensity rises, counting mass from the low end.
	// For a falling profile that frame runs backwards from the end of the injection.
	offsets := make([]float64, n)
	for i := range offsets {
		target := float64(i) * mpp
		if !rising {
			target = float64(int(n)-1-i) * mpp
		}
		offsets[i] = invertRamp(lo, k, target)
	}

	var extent float64
	for _, o := range offsets {
		extent = math.Max(extent, o)
	}
	scale := 1.0
	if extent > 0 {
		scale = duration / extent
	}

	for i, o := range offsets {
		t := o * scale
		if !rising {
			t = duration - t
		}
		times[i] = start + math.Min(duration, math.Max(0, t))
	}
	return times
}

// invertRamp returns t with lo*t + k*t*t/2 = m, the root reachable from t = 0.
func invertRamp(lo, k, m float64) float64 {
	if m <= 0 {
		return 0
	}
	return 2 * m / (lo + math.Sqrt(lo*lo+2*k*m))
}
