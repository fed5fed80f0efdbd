package metrics

import (
	"github.com/san-kum/pbfsim/internal/dynamo"
)

// BoundsViolations counts coordinates found outside the box across a run.
// The solver clamps every step, so anything but zero is a defect.
type BoundsViolations struct {
	name       string
	violations int
}

func NewBoundsViolations() *BoundsViolations {
	return &BoundsViolations{name: "bounds_violations"}
}

func (b *BoundsViolations) Name() string {
	return b.name
}

func (b *BoundsViolations) OnFrame(f dynamo.Frame) {
	for _, p := range f.Positions {
		for _, c := range [3]float64{p.X, p.Y, p.Z} {
			if c < f.Lower || c > f.Upper {
				b.violations++
			}
		}
	}
}

func (b *BoundsViolations) Value() float64 {
	return float64(b.violations)
}

func (b *BoundsViolations) Reset() {
	b.violations = 0
}

// Defaults returns the metrics recorded for every run.
func Defaults() []dynamo.Metric {
	return []dynamo.Metric{
		NewDensityError(),
		NewMeanDensity(),
		NewKineticEnergy(),
		NewMomentum(),
		NewBoundsViolations(),
	}
}
