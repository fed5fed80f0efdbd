package dynamo

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Color is an RGB triple in [0, 1].
type Color [3]float64

var (
	Red   = Color{1, 0, 0}
	Green = Color{0, 1, 0}
	Blue  = Color{0, 0, 1}
)

// Stage names one phase of a solver step.
type Stage string

const (
	StageForces      Stage = "forces"
	StageNeighbors   Stage = "neighbors"
	StageConstraints Stage = "constraints"
	StageCorrection  Stage = "correction"
	StageCollision   Stage = "collision"
	StageVelocity    Stage = "velocity"
	StageExtensions  Stage = "extensions"
	StageCommit      Stage = "commit"
	StageTotal       Stage = "total"
)

// StageTimer receives the wall time spent in each stage. Stages inside the
// Jacobi loop are reported once per iteration.
type StageTimer func(stage Stage, d time.Duration)

// Frame is a read-only view of solver state taken right after a step.
// The slices alias solver buffers and are only valid during the callback.
type Frame struct {
	Step       int
	Time       float64
	Mass       float64
	Lower      float64
	Upper      float64
	Positions  []r3.Vec
	Velocities []r3.Vec
	Density    []float64
	Constraint []float64
	Lambda     []float64
}

type Observer interface {
	OnFrame(f Frame)
}

type Metric interface {
	Observer
	Name() string
	Value() float64
	Reset()
}

// Result is the outcome of a multi-frame run.
type Result struct {
	Frames     []Snapshot
	Metrics    map[string]float64
	Series     map[string][]float64
	StepsTaken int
	Elapsed    time.Duration
}

// Snapshot is a copied position buffer recorded during a run.
type Snapshot struct {
	Step      int
	Time      float64
	Positions []r3.Vec
}

// ClonePositions returns an independent copy of ps.
func ClonePositions(ps []r3.Vec) []r3.Vec {
	c := make([]r3.Vec, len(ps))
	copy(c, ps)
	return c
}

// ValidPositions reports whether every coordinate is finite.
func ValidPositions(ps []r3.Vec) bool {
	for _, p := range ps {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
