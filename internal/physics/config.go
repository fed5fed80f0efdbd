package physics

import (
	"math"

	"github.com/san-kum/pbfsim/internal/dynamo"
	"github.com/san-kum/pbfsim/internal/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Config holds the immutable parameters of a fluid.
type Config struct {
	Particles   int
	Mass        float64
	RestDensity float64
	// Gravity is the per-frame velocity change along -Y, scaled by Mass.
	Gravity float64
	// UserForce is the magnitude of an impulse queued with Fluid.Push.
	UserForce  float64
	Iterations int
	CFMEpsilon float64
	H          float64

	TensileK      float64
	TensileDeltaQ float64 // fraction of H
	TensileN      int

	Viscosity        float64
	VorticityEpsilon float64

	Lower, Upper float64
	Dt           float64

	// CorrectionScale damps each Jacobi position correction.
	CorrectionScale float64
}

const (
	DefaultParticles  = 1000
	DefaultH          = 0.1
	DefaultMass       = 1.0
	DefaultDt         = 0.01
	DefaultIterations = 4
)

// DefaultConfig returns a unit box whose rest density matches a cubic
// lattice at half the smoothing radius.
func DefaultConfig() Config {
	return Config{
		Particles:        DefaultParticles,
		Mass:             DefaultMass,
		RestDensity:      LatticeDensity(DefaultH/2, DefaultH, DefaultMass),
		Gravity:          0.098,
		UserForce:        1.0,
		Iterations:       DefaultIterations,
		CFMEpsilon:       1.0,
		H:                DefaultH,
		TensileK:         0.1,
		TensileDeltaQ:    0.2,
		TensileN:         4,
		Viscosity:        0.01,
		VorticityEpsilon: 1e-4,
		Lower:            0,
		Upper:            1,
		Dt:               DefaultDt,
		CorrectionScale:  0.005,
	}
}

// Validate returns a *dynamo.ConfigError wrapping dynamo.ErrInvalidConfig
// for the first field that cannot be simulated.
func (c Config) Validate() error {
	switch {
	case c.Particles <= 0:
		return invalid("particles", float64(c.Particles), "must be positive")
	case !(c.H > 0):
		return invalid("h", c.H, "must be positive")
	case !(c.RestDensity > 0):
		return invalid("rest_density", c.RestDensity, "must be positive")
	case !(c.Dt > 0):
		return invalid("dt", c.Dt, "must be positive")
	case !(c.Lower < c.Upper):
		return invalid("lower", c.Lower, "must be below upper bound")
	case !(c.Mass > 0):
		return invalid("mass", c.Mass, "must be positive")
	case c.Iterations < 0:
		return invalid("iterations", float64(c.Iterations), "must not be negative")
	case !(c.CFMEpsilon > 0):
		return invalid("cfm_epsilon", c.CFMEpsilon, "must be positive")
	case c.TensileN < 0:
		return invalid("tensile_n", float64(c.TensileN), "must not be negative")
	case !(c.TensileDeltaQ >= 0 && c.TensileDeltaQ < 1):
		return invalid("tensile_delta_q", c.TensileDeltaQ, "must be in [0, 1)")
	case !(c.CorrectionScale >= 0):
		return invalid("correction_scale", c.CorrectionScale, "must not be negative")
	case !(c.Viscosity >= 0 && c.Viscosity <= 1):
		return invalid("viscosity", c.Viscosity, "must be in [0, 1]")
	case math.IsNaN(c.Gravity) || math.IsNaN(c.UserForce) || math.IsNaN(c.TensileK) || math.IsNaN(c.VorticityEpsilon):
		return invalid("force", math.NaN(), "must be a number")
	}
	return nil
}

func invalid(field string, v float64, reason string) error {
	return &dynamo.ConfigError{Field: field, Value: v, Reason: reason}
}

// LatticeDensity is the density seen by a particle inside an infinite cubic
// lattice with the given spacing.
func LatticeDensity(spacing, h, mass float64) float64 {
	reach := int(math.Ceil(h / spacing))
	rho := 0.0
	for i := -reach; i <= reach; i++ {
		for j := -reach; j <= reach; j++ {
			for k := -reach; k <= reach; k++ {
				r := r3.Vec{X: float64(i) * spacing, Y: float64(j) * spacing, Z: float64(k) * spacing}
				rho += mass * kernel.Poly6(r, h)
			}
		}
	}
	return rho
}

// GetParams exposes the tunable scalars for display.
func (c Config) GetParams() map[string]float64 {
	return map[string]float64{
		"particles":  float64(c.Particles),
		"h":          c.H,
		"rho0":       c.RestDensity,
		"gravity":    c.Gravity,
		"iterations": float64(c.Iterations),
		"dt":         c.Dt,
		"cfm":        c.CFMEpsilon,
		"tensile_k":  c.TensileK,
	}
}
