package viz

import (
	"math"

	"github.com/mazznoer/colorgrad"

	"github.com/san-kum/pbfsim/internal/dynamo"
)

// ColorMap maps scalar values in [Lo, Hi] onto a gradient. Values outside
// the range take the end colors.
type ColorMap struct {
	grad   colorgrad.Gradient
	Lo, Hi float64
}

func NewColorMap(grad colorgrad.Gradient, lo, hi float64) *ColorMap {
	return &ColorMap{grad: grad, Lo: lo, Hi: hi}
}

// NewDensityColorMap spans densities from zero to twice rest density, so
// rest density sits at the middle of the gradient.
func NewDensityColorMap(grad colorgrad.Gradient, rho0 float64) *ColorMap {
	return NewColorMap(grad, 0, 2*rho0)
}

func (cm *ColorMap) norm(v float64) float64 {
	if cm.Hi <= cm.Lo {
		return 0.5
	}
	t := (v - cm.Lo) / (cm.Hi - cm.Lo)
	switch {
	case t < 0 || math.IsNaN(t):
		return 0
	case t > 1:
		return 1
	}
	return t
}

func (cm *ColorMap) Color(v float64) dynamo.Color {
	c := cm.grad.At(cm.norm(v))
	return dynamo.Color{c.R, c.G, c.B}
}

func (cm *ColorMap) Hex(v float64) string {
	return cm.grad.At(cm.norm(v)).Hex()
}

// Paint writes one color per value into out.
func (cm *ColorMap) Paint(values []float64, out []dynamo.Color) {
	for i, v := range values {
		if i >= len(out) {
			return
		}
		out[i] = cm.Color(v)
	}
}
