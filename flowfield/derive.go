package flowfield

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultRoughness is the Strickler-type coefficient of a smooth paved surface.
const DefaultRoughness = 50

// DiffusiveWave estimates the velocity from cell 0 toward cell 1 from their ground
// elevations and water depths. Positive values flow outward from cell 0.
//
//	v = sign(g) * sqrt(|g|) * k * mean(depth)^(2/3),  g = -(dElevation + dDepth) / dist
func DiffusiveWave(elev0, depth0, elev1, depth1, dist, k float64) float64 {
	if !(dist > 0) {
		return 0
	}
	mean := (depth0 + depth1) / 2
	if !(mean > 0) {
		return 0
	}
	grad := -((elev1 - elev0) + (depth1 - depth0)) / dist
	if grad == 0 || math.IsNaN(grad) {
		return 0
	}
	v := math.Sqrt(math.Abs(grad)) * k * math.Pow(mean, 2.0/3.0)
	if grad < 0 {
		return -v
	}
	return v
}

// fitCellVelocity finds the vector whose projections onto the unit directions
// best match the given edge speeds in the least-squares sense.
func fitCellVelocity(dirs []r2.Vec, speeds []float64) r2.Vec {
	var sxx, sxy, syy float64
	var b r2.Vec
	for i, u := range dirs {
		sxx += u.X * u.X
		sxy += u.X * u.Y
		syy += u.Y * u.Y
		b = r2.Add(b, r2.Scale(speeds[i], u))
	}

	det := sxx*syy - sxy*sxy
	trace := sxx + syy
	if trace == 0 {
		return r2.Vec{}
	}
	// A single neighbor or collinear neighbors leave the normal equations singular;
	// project onto the one direction that is constrained.
	if math.Abs(det) <= 1e-9*trace*trace {
		return r2.Scale(1/trace, b)
	}
	return r2.Vec{
		X: (syy*b.X - sxy*b.Y) / det,
		Y: (sxx*b.Y - sxy*b.X) / det,
	}
}
