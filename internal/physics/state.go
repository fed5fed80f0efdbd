package physics

import "gonum.org/v1/gonum/spatial/r3"

// State is the per-particle data of a fluid stored as parallel arrays
// indexed by particle id.
type State struct {
	Position   []r3.Vec // committed
	Velocity   []r3.Vec
	Candidate  []r3.Vec // predicted position during a step
	Density    []float64
	Constraint []float64
	Lambda     []float64
	GradNorm   []float64
	Correction []r3.Vec
	// Neighbors holds the lists built from candidate positions at the
	// start of the last step. They stay fixed for all Jacobi iterations.
	Neighbors [][]int
}

func newState(n int) *State {
	return &State{
		Position:   make([]r3.Vec, n),
		Velocity:   make([]r3.Vec, n),
		Candidate:  make([]r3.Vec, n),
		Density:    make([]float64, n),
		Constraint: make([]float64, n),
		Lambda:     make([]float64, n),
		GradNorm:   make([]float64, n),
		Correction: make([]r3.Vec, n),
		Neighbors:  make([][]int, n),
	}
}

func (s *State) Len() int { return len(s.Position) }

// Particle is a copy of one particle's fields.
type Particle struct {
	Index      int
	Position   r3.Vec
	Velocity   r3.Vec
	Candidate  r3.Vec
	Correction r3.Vec
	Density    float64
	Constraint float64
	Lambda     float64
	GradNorm   float64
	Neighbors  []int
}

// Particle returns the record view of particle i. Neighbors aliases the
// state and must not be modified.
func (s *State) Particle(i int) Particle {
	return Particle{
		Index:      i,
		Position:   s.Position[i],
		Velocity:   s.Velocity[i],
		Candidate:  s.Candidate[i],
		Correction: s.Correction[i],
		Density:    s.Density[i],
		Constraint: s.Constraint[i],
		Lambda:     s.Lambda[i],
		GradNorm:   s.GradNorm[i],
		Neighbors:  s.Neighbors[i],
	}
}
