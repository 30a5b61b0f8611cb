package sim

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/rsaemann/GULLI-sub003/components"
	"github.com/rsaemann/GULLI-sub003/release"
)

// releaseDue activates every pending particle released before the end of the
// current step.
func (s *Simulation) releaseDue() {
	stepEnd := s.time + s.opts.DT
	released := 0
	for s.nextPending < len(s.pending) && s.pending[s.nextPending].ReleaseTime < stepEnd {
		s.spawnParticle(&s.pending[s.nextPending])
		s.nextPending++
		released++
	}
	if released > 0 {
		s.collector.RecordRelease(released)
	}
}

// spawnParticle creates the entity for a scheduled particle at its injection point.
func (s *Simulation) spawnParticle(p *release.Particle) {
	var at r2.Vec
	cell := int32(-1)
	if p.Injection != nil {
		at = p.Injection.Position
		cell = p.Injection.Cell
	}
	if !s.mesh.Valid(cell) {
		cell = s.mesh.FindCell(at)
	}

	pos := components.Position{X: at.X, Y: at.Y}
	vel := components.Velocity{}
	loc := components.Location{Cell: cell}
	payload := components.Payload{
		Seq:         p.Seq,
		Mass:        p.Mass,
		ReleaseTime: p.ReleaseTime,
		Trace:       p.Trace,
		Injection:   p.Injection,
	}
	trail := components.Trail{}
	if p.Trace {
		trail.Max = s.opts.TrailLength
		trail.Push(at.X, at.Y)
	}

	s.particleMapper.NewEntity(&pos, &vel, &loc, &payload, &trail)
	s.active++
	s.activeMass += p.Mass
}
