package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestReleaseMassAndSequence(t *testing.T) {
	s := NewScheduler(10)
	inj := &Injection{
		Name:      "spill",
		Position:  r2.Vec{X: 5, Y: 5},
		Mass:      250,
		Particles: 1000,
		Duration:  600, StartIntensity: 1, EndIntensity: 4,
	}

	ps := s.Release(inj)
	require.Len(t, ps, 1000)
	assert.InDelta(t, 250, TotalMass(ps), 1e-9)

	traced := 0
	for i, p := range ps {
		assert.Equal(t, uint64(i), p.Seq)
		assert.Equal(t, 0.25, p.Mass)
		assert.Same(t, inj, p.Injection)
		if p.Trace {
			traced++
			assert.Zero(t, p.Seq%10)
		}
	}
	assert.Equal(t, 100, traced)
	assert.Equal(t, uint64(1000), s.Issued())
}

func TestReleaseAllSortedAndUnique(t *testing.T) {
	s := NewScheduler(0)
	late := &Injection{Name: "late", Mass: 10, Particles: 5, Start: 100, Duration: 50, StartIntensity: 1, EndIntensity: 1}
	early := &Injection{Name: "early", Mass: 4, Particles: 4, Start: 0, Duration: 200, StartIntensity: 2, EndIntensity: 0}
	pulse := &Injection{Name: "pulse", Mass: 1, Particles: 3, Start: 120}

	ps := s.ReleaseAll([]*Injection{late, early, pulse})
	require.Len(t, ps, 12)

	seen := map[uint64]bool{}
	for i, p := range ps {
		assert.False(t, seen[p.Seq], "duplicate seq %d", p.Seq)
		seen[p.Seq] = true
		assert.False(t, p.Trace)
		if i > 0 {
			assert.LessOrEqual(t, ps[i-1].ReleaseTime, p.ReleaseTime)
			if ps[i-1].ReleaseTime == p.ReleaseTime {
				assert.Less(t, ps[i-1].Seq, p.Seq)
			}
		}
	}
	assert.InDelta(t, 15, TotalMass(ps), 1e-12)
}

func TestReleaseZeroParticlesClampsToOne(t *testing.T) {
	ps := NewScheduler(1).Release(&Injection{Mass: 3, Duration: 10, StartIntensity: 1, EndIntensity: 2})
	require.Len(t, ps, 1)
	assert.Equal(t, 3.0, ps[0].Mass)
	assert.True(t, ps[0].Trace)
}
