// Package kernel evaluates the radially symmetric smoothing kernels used by
// the fluid solver. All functions are pure and safe to call at r = 0.
package kernel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// minDist is the separation below which the direction of r is undefined and
// gradients are taken to be zero.
const minDist = 1e-9

// Poly6 evaluates the poly6 density kernel for displacement r.
func Poly6(r r3.Vec, h float64) float64 {
	return poly6(r3.Norm2(r), h)
}

// Poly6Radius evaluates the poly6 kernel at scalar distance d.
func Poly6Radius(d, h float64) float64 {
	return poly6(d*d, h)
}

func poly6(r2, h float64) float64 {
	h2 := h * h
	if r2 >= h2 || h <= 0 {
		return 0
	}
	d := h2 - r2
	return 315.0 / (64.0 * math.Pi * math.Pow(h, 9)) * d * d * d
}

// SpikyGradient evaluates the gradient of the spiky kernel for displacement r.
// The result lies on the line of r, points from the particle toward its
// neighbor and vanishes at |r| >= h and at r = 0.
func SpikyGradient(r r3.Vec, h float64) r3.Vec {
	d := r3.Norm(r)
	if d >= h || d < minDist {
		return r3.Vec{}
	}
	x := h - d
	coeff := -45.0 / (math.Pi * math.Pow(h, 6)) * x * x / d
	return r3.Scale(coeff, r)
}
