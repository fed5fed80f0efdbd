package metrics

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbfsim/internal/dynamo"
)

// KineticEnergy reports the kinetic energy of the latest frame.
type KineticEnergy struct {
	name  string
	value float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (e *KineticEnergy) Name() string { return e.name }

func (e *KineticEnergy) OnFrame(f dynamo.Frame) {
	sum := 0.0
	for _, v := range f.Velocities {
		sum += r3.Norm2(v)
	}
	e.value = 0.5 * f.Mass * sum
}

func (e *KineticEnergy) Value() float64 { return e.value }
func (e *KineticEnergy) Reset()         { e.value = 0 }

// Momentum reports the magnitude of the total linear momentum of the
// latest frame.
type Momentum struct {
	name  string
	value float64
}

func NewMomentum() *Momentum {
	return &Momentum{name: "momentum"}
}

func (m *Momentum) Name() string { return m.name }

func (m *Momentum) OnFrame(f dynamo.Frame) {
	var p r3.Vec
	for _, v := range f.Velocities {
		p = r3.Add(p, v)
	}
	m.value = f.Mass * r3.Norm(p)
}

func (m *Momentum) Value() float64 { return m.value }
func (m *Momentum) Reset()         { m.value = 0 }
