package components

// Position is a particle's location in mesh coordinates.
type Position struct {
	X, Y float64
}

// Velocity is the advective velocity sampled at the last step.
type Velocity struct {
	X, Y float64
}

// Location is the mesh cell containing Position.
type Location struct {
	Cell int32
}
