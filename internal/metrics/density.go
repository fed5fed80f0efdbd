package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/pbfsim/internal/dynamo"
)

// DensityError tracks the largest |density/rho0 - 1| seen across a run.
type DensityError struct {
	name   string
	maxErr float64
}

func NewDensityError() *DensityError {
	return &DensityError{name: "density_error"}
}

func (d *DensityError) Name() string { return d.name }

func (d *DensityError) OnFrame(f dynamo.Frame) {
	for _, c := range f.Constraint {
		d.maxErr = math.Max(d.maxErr, math.Abs(c))
	}
}

func (d *DensityError) Value() float64 { return d.maxErr }

func (d *DensityError) Reset() { d.maxErr = 0 }

// MeanDensity reports the average particle density of the latest frame.
type MeanDensity struct {
	name  string
	value float64
}

func NewMeanDensity() *MeanDensity {
	return &MeanDensity{name: "mean_density"}
}

func (m *MeanDensity) Name() string { return m.name }

func (m *MeanDensity) OnFrame(f dynamo.Frame) {
	if len(f.Density) == 0 {
		m.value = 0
		return
	}
	m.value = floats.Sum(f.Density) / float64(len(f.Density))
}

func (m *MeanDensity) Value() float64 { return m.value }
func (m *MeanDensity) Reset()         { m.value = 0 }
