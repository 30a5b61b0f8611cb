// Package timeline maps continuous simulation time onto the discrete timesteps of
// a flow field. Surface and pipe flow fields share the same contract so both stay aligned.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrEmpty         = errors.New("timeline has no timesteps")
	ErrNotIncreasing = errors.New("timesteps must be strictly increasing")
)

// Timeline is a strictly increasing sequence of timestep times in seconds.
type Timeline struct {
	times []float64

	// Uniform timelines resolve indices in O(1).
	uniform     bool
	start, step float64
}

// New builds a timeline from explicit timestep times.
func New(times []float64) (*Timeline, error) {
	if len(times) == 0 {
		return nil, ErrEmpty
	}
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("timestep %d is not finite: %v", i, t)
		}
		if i > 0 && t <= times[i-1] {
			return nil, fmt.Errorf("%w: t[%d]=%v after t[%d]=%v", ErrNotIncreasing, i, t, i-1, times[i-1])
		}
	}
	cp := make([]float64, len(times))
	copy(cp, times)
	return &Timeline{times: cp}, nil
}

// Uniform builds count timesteps starting at start, step seconds apart.
func Uniform(start, step float64, count int) (*Timeline, error) {
	if count < 1 {
		return nil, ErrEmpty
	}
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: step %v", ErrNotIncreasing, step)
	}
	times := make([]float64, count)
	for i := range times {
		times[i] = start + float64(i)*step
	}
	return &Timeline{times: times, uniform: true, start: start, step: step}, nil
}

// Len returns the number of timesteps.
func (t *Timeline) Len() int { return len(t.times) }

// Time returns the time of timestep i.
func (t *Timeline) Time(i int) float64 { return t.times[i] }

// Start returns the first timestep time.
func (t *Timeline) Start() float64 { return t.times[0] }

// End returns the last timestep time.
func (t *Timeline) End() float64 { return t.times[len(t.times)-1] }

// Index splits simTime into a timestep index and the fraction toward the next one.
// frac is in [0,1); times before the first step clamp to (0,0) and times at or
// after the last step clamp to (Len()-1, 0).
func (t *Timeline) Index(simTime float64) (floor int, frac float64) {
	last := len(t.times) - 1
	if math.IsNaN(simTime) || simTime <= t.times[0] {
		return 0, 0
	}
	if simTime >= t.times[last] {
		return last, 0
	}

	if t.uniform {
		x := (simTime - t.start) / t.step
		floor = int(x)
		frac = x - float64(floor)
	} else {
		i := sort.SearchFloat64s(t.times, simTime)
		if t.times[i] == simTime {
			return i, 0
		}
		floor = i - 1
		frac = (simTime - t.times[floor]) / (t.times[i] - t.times[floor])
	}

	if floor >= last {
		return last, 0
	}
	if frac >= 1 {
		return floor + 1, 0
	}
	if frac < 0 {
		frac = 0
	}
	return floor, frac
}

// FractionalIndex returns floor+frac as a single value.
func (t *Timeline) FractionalIndex(simTime float64) float64 {
	i, f := t.Index(simTime)
	return float64(i) + f
}
