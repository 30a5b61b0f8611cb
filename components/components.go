// Package components defines ECS components for particles.
package components

import "github.com/rsaemann/GULLI-sub003/release"

// Payload is the contaminant a particle carries. Injection is shared between
// every particle of one release and must not be modified.
type Payload struct {
	Seq         uint64
	Mass        float64
	ReleaseTime float64
	Trace       bool
	Injection   *release.Injection
}

// Trail keeps the most recent positions of a traced particle, oldest first.
type Trail struct {
	Points [][2]float64
	Max    int
}

// Push appends p, dropping the oldest point once Max is reached.
func (t *Trail) Push(x, y float64) {
	if t.Max <= 0 {
		return
	}
	if len(t.Points) >= t.Max {
		copy(t.Points, t.Points[1:])
		t.Points = t.Points[:len(t.Points)-1]
	}
	t.Points = append(t.Points, [2]float64{x, y})
}
