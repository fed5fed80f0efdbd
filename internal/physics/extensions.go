package physics

import (
	"github.com/san-kum/pbfsim/internal/dynamo"
	"github.com/san-kum/pbfsim/internal/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Extension is an optional pass over the velocities, run after the
// velocity update and before the positions are committed. Extensions see
// the candidate positions and the frame neighbor lists.
type Extension interface {
	Name() string
	// Apply runs the pass on at most workers goroutines.
	Apply(s *State, cfg Config, workers int)
}

// XSPHViscosity blends each velocity toward the poly6 weighted average of
// its neighbors' velocities.
type XSPHViscosity struct {
	C       float64
	scratch []r3.Vec
}

func NewXSPHViscosity(c float64) *XSPHViscosity {
	return &XSPHViscosity{C: c}
}

func (x *XSPHViscosity) Name() string { return "xsph_viscosity" }

func (x *XSPHViscosity) Apply(s *State, cfg Config, workers int) {
	n := s.Len()
	x.scratch = grow(x.scratch, n)
	h := cfg.H

	dynamo.ParallelFor(workers, n, minChunk, func(start, end int) {
		for p := start; p < end; p++ {
			var avg r3.Vec
			wsum := 0.0
			for _, q := range s.Neighbors[p] {
				w := kernel.Poly6(r3.Sub(s.Candidate[p], s.Candidate[q]), h)
				avg = r3.Add(avg, r3.Scale(w, s.Velocity[q]))
				wsum += w
			}
			v := s.Velocity[p]
			if wsum > 0 {
				avg = r3.Scale(1/wsum, avg)
				v = r3.Add(v, r3.Scale(x.C, r3.Sub(avg, v)))
			}
			x.scratch[p] = v
		}
	})
	copy(s.Velocity, x.scratch)
}

// VorticityConfinement adds a corrective force along the normalized
// gradient of the vorticity magnitude.
type VorticityConfinement struct {
	Epsilon float64

	Omega []r3.Vec // curl estimate
	Eta   []r3.Vec // gradient of |Omega|
	Force []r3.Vec
}

func NewVorticityConfinement(epsilon float64) *VorticityConfinement {
	return &VorticityConfinement{Epsilon: epsilon}
}

func (vc *VorticityConfinement) Name() string { return "vorticity_confinement" }

func (vc *VorticityConfinement) Apply(s *State, cfg Config, workers int) {
	n := s.Len()
	vc.Omega = grow(vc.Omega, n)
	vc.Eta = grow(vc.Eta, n)
	vc.Force = grow(vc.Force, n)
	h := cfg.H
	volume := cfg.Mass / cfg.RestDensity

	dynamo.ParallelFor(workers, n, minChunk, func(start, end int) {
		for p := start; p < end; p++ {
			var w r3.Vec
			for _, q := range s.Neighbors[p] {
				vpq := r3.Sub(s.Velocity[q], s.Velocity[p])
				w = r3.Add(w, r3.Cross(vpq, kernel.SpikyGradient(r3.Sub(s.Candidate[p], s.Candidate[q]), h)))
			}
			vc.Omega[p] = w
		}
	})

	dynamo.ParallelFor(workers, n, minChunk, func(start, end int) {
		for p := start; p < end; p++ {
			mp := r3.Norm(vc.Omega[p])
			var eta r3.Vec
			for _, q := range s.Neighbors[p] {
				grad := kernel.SpikyGradient(r3.Sub(s.Candidate[p], s.Candidate[q]), h)
				eta = r3.Add(eta, r3.Scale(volume*(r3.Norm(vc.Omega[q])-mp), grad))
			}
			vc.Eta[p] = eta

			var force r3.Vec
			if l := r3.Norm(eta); l > 1e-12 {
				force = r3.Scale(vc.Epsilon, r3.Cross(r3.Scale(1/l, eta), vc.Omega[p]))
			}
			vc.Force[p] = force
		}
	})

	step := cfg.Dt / cfg.Mass
	for p := range s.Velocity {
		s.Velocity[p] = r3.Add(s.Velocity[p], r3.Scale(step, vc.Force[p]))
	}
}

func grow(buf []r3.Vec, n int) []r3.Vec {
	if cap(buf) < n {
		return make([]r3.Vec, n)
	}
	return buf[:n]
}
