package physics

import (
	"math"

	"github.com/san-kum/pbfsim/internal/dynamo"
	"github.com/san-kum/pbfsim/internal/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// applyForces integrates gravity and any queued impulse into the velocities
// and predicts candidate positions.
func (f *Fluid) applyForces() {
	s, cfg := f.state, f.cfg
	g := cfg.Mass * cfg.Gravity
	impulse := f.push
	f.push = r3.Vec{}

	dynamo.ParallelFor(f.workers, len(s.Velocity), minChunk, func(start, end int) {
		for p := start; p < end; p++ {
			v := s.Velocity[p]
			v.Y -= g
			v = r3.Add(v, impulse)
			s.Velocity[p] = v
			s.Candidate[p] = r3.Add(s.Position[p], r3.Scale(cfg.Dt, v))
		}
	})
}

// solveConstraints computes density, constraint, gradient norm and lambda
// for every particle from the current candidate positions. Every slot is
// overwritten, so nothing carries over from the previous iteration.
func (f *Fluid) solveConstraints() {
	s, cfg := f.state, f.cfg
	h, rho0, m, eps := cfg.H, cfg.RestDensity, cfg.Mass, cfg.CFMEpsilon

	dynamo.ParallelFor(f.workers, len(s.Candidate), minChunk, func(start, end int) {
		for p := start; p < end; p++ {
			xp := s.Candidate[p]
			nbrs := s.Neighbors[p]
			density, gradNorm := 0.0, 0.0

			for _, q := range nbrs {
				r := r3.Sub(xp, s.Candidate[q])
				density += m * kernel.Poly6(r, h)

				var grad r3.Vec
				if q == p {
					for _, k := range nbrs {
						grad = r3.Add(grad, kernel.SpikyGradient(r3.Sub(xp, s.Candidate[k]), h))
					}
				} else {
					grad = kernel.SpikyGradient(r, h)
				}
				gradNorm += r3.Norm(r3.Scale(1/rho0, grad))
			}

			c := density/rho0 - 1
			s.Density[p] = density
			s.GradNorm[p] = gradNorm
			s.Constraint[p] = c
			s.Lambda[p] = -c / (gradNorm + eps)
		}
	})
}

// solveCorrections accumulates the position correction of every particle.
// It reads lambda of all neighbors and must start after solveConstraints
// has finished for every particle.
func (f *Fluid) solveCorrections() {
	s, cfg := f.state, f.cfg
	h, rho0 := cfg.H, cfg.RestDensity
	k, n, denom := cfg.TensileK, float64(cfg.TensileN), f.tensileDenom
	tensile := k != 0 && denom > 0

	dynamo.ParallelFor(f.workers, len(s.Candidate), minChunk, func(start, end int) {
		for p := start; p < end; p++ {
			xp := s.Candidate[p]
			lp := s.Lambda[p]
			var dp r3.Vec

			for _, q := range s.Neighbors[p] {
				r := r3.Sub(xp, s.Candidate[q])
				corr := 0.0
				if tensile {
					corr = -k * math.Pow(kernel.Poly6(r, h)/denom, n)
				}
				dp = r3.Add(dp, r3.Scale(lp+s.Lambda[q]+corr, kernel.SpikyGradient(r, h)))
			}
			s.Correction[p] = r3.Scale(1/rho0, dp)
		}
	})
}

// applyCorrections moves candidates by the damped correction and resolves
// collisions with the bounds.
func (f *Fluid) applyCorrections() {
	s, scale := f.state, f.cfg.CorrectionScale

	dynamo.ParallelFor(f.workers, len(s.Candidate), minChunk, func(start, end int) {
		for p := start; p < end; p++ {
			s.Candidate[p] = r3.Add(s.Candidate[p], r3.Scale(scale, s.Correction[p]))
			f.collide(p)
		}
	})
}

func (f *Fluid) clampAll() {
	for p := range f.state.Candidate {
		f.collide(p)
	}
}

// collide clamps a candidate into the box and reflects the velocity
// component that points out of a wall it touched.
func (f *Fluid) collide(p int) {
	x, v := &f.state.Candidate[p], &f.state.Velocity[p]
	lo, hi := f.cfg.Lower, f.cfg.Upper
	clampAxis(&x.X, &v.X, lo, hi)
	clampAxis(&x.Y, &v.Y, lo, hi)
	clampAxis(&x.Z, &v.Z, lo, hi)
}

func clampAxis(x, v *float64, lo, hi float64) {
	if *x < lo {
		*x = lo
		if *v < 0 {
			*v = -*v
		}
	}
	if *x > hi {
		*x = hi
		if *v > 0 {
			*v = -*v
		}
	}
}

// updateVelocity recovers the velocity implied by the net displacement.
func (f *Fluid) updateVelocity() {
	s, dt := f.state, f.cfg.Dt
	dynamo.ParallelFor(f.workers, len(s.Velocity), minChunk, func(start, end int) {
		for p := start; p < end; p++ {
			s.Velocity[p] = r3.Scale(1/dt, r3.Sub(s.Candidate[p], s.Position[p]))
		}
	})
}
