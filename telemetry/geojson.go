package telemetry

import (
	geojson "github.com/paulmach/go.geojson"
)

// ParticleState is the position of one active particle at snapshot time.
type ParticleState struct {
	Seq       uint64
	Injection string
	Cell      int32
	X, Y      float64
	Mass      float64
	Trail     [][2]float64 // traced particles only, oldest first
}

// SnapshotCollection builds a GeoJSON feature collection with one point per
// particle and a line string for every trail.
func SnapshotCollection(step int32, simTime float64, particles []ParticleState) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range particles {
		f := geojson.NewPointFeature([]float64{p.X, p.Y})
		f.SetProperty("seq", p.Seq)
		f.SetProperty("injection", p.Injection)
		f.SetProperty("cell", p.Cell)
		f.SetProperty("mass", p.Mass)
		f.SetProperty("step", step)
		f.SetProperty("sim_time", simTime)
		fc.AddFeature(f)

		if len(p.Trail) < 2 {
			continue
		}
		coords := make([][]float64, len(p.Trail))
		for i, pt := range p.Trail {
			coords[i] = []float64{pt[0], pt[1]}
		}
		line := geojson.NewLineStringFeature(coords)
		line.SetProperty("seq", p.Seq)
		line.SetProperty("kind", "trail")
		fc.AddFeature(line)
	}
	return fc
}
