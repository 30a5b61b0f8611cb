package release

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// Injection is one contaminant release event.
type Injection struct {
	Name      string
	Position  r2.Vec
	Cell      int32 // resolved by the caller, -1 if unknown
	Mass      float64
	Particles uint32

	Start          float64 // seconds
	Duration       float64
	StartIntensity float64
	EndIntensity   float64
}

// Particle is a scheduled release. Injection is shared and must not be modified.
type Particle struct {
	Seq         uint64
	Mass        float64
	ReleaseTime float64
	Trace       bool
	Injection   *Injection
}

// Scheduler hands out particles with globally increasing sequence ids.
// It is not safe for concurrent use.
type Scheduler struct {
	traceEvery uint64
	next       uint64
}

// NewScheduler flags every traceEvery-th particle for tracing; zero disables tracing.
func NewScheduler(traceEvery int) *Scheduler {
	if traceEvery < 0 {
		traceEvery = 0
	}
	return &Scheduler{traceEvery: uint64(traceEvery)}
}

// Issued returns how many particles the scheduler has created.
func (s *Scheduler) Issued() uint64 { return s.next }

// Release schedules the particles of one injection.
func (s *Scheduler) Release(inj *Injection) []Particle {
	n := inj.Particles
	if n == 0 {
		n = 1
	}
	mass := inj.Mass
	if math.IsNaN(mass) || math.IsInf(mass, 0) || mass < 0 {
		mass = 0
	}
	mpp := mass / float64(n)

	times := Schedule(n, mpp, inj.Start, inj.Duration, inj.StartIntensity, inj.EndIntensity)
	out := make([]Particle, len(times))
	for i, t := range times {
		seq := s.next
		s.next++
		out[i] = Particle{
			Seq:         seq,
			Mass:        mpp,
			ReleaseTime: t,
			Trace:       s.traceEvery > 0 && seq%s.traceEvery == 0,
			Injection:   inj,
		}
	}
	return out
}

// ReleaseAll schedules every injection in order and returns one list sorted by
// release time, ties kept in sequence order.
func (s *Scheduler) ReleaseAll(injections []*Injection) []Particle {
	var out []Particle
	for _, inj := range injections {
		out = append(out, s.Release(inj)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReleaseTime < out[j].ReleaseTime })
	return out
}

// TotalMass sums particle masses.
func TotalMass(ps []Particle) float64 {
	var sum float64
	for _, p := range ps {
		sum += p.Mass
	}
	return sum
}
