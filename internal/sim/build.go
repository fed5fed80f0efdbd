package sim

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbfsim/internal/config"
	"github.com/san-kum/pbfsim/internal/dynamo"
	"github.com/san-kum/pbfsim/internal/metrics"
	"github.com/san-kum/pbfsim/internal/neighbors"
	"github.com/san-kum/pbfsim/internal/physics"
	"github.com/san-kum/pbfsim/internal/scene"
)

// Build assembles an initialized fluid and its position buffer from cfg.
// seed overrides cfg.Seed for the scene jitter.
func Build(cfg *config.Config, seed int64) (*physics.Fluid, []r3.Vec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	p := cfg.Physics()

	var idx neighbors.Index
	workers := cfg.Workers
	if workers == 0 {
		workers = dynamo.DefaultWorkers
	}
	switch cfg.Index {
	case "brute":
		b := neighbors.NewBruteForce(p.H)
		b.Workers = workers
		idx = b
	default:
		g := neighbors.NewGrid(p.Lower, p.H)
		g.Workers = workers
		idx = g
	}

	fluid, err := physics.New(p, idx)
	if err != nil {
		return nil, nil, err
	}
	fluid.SetWorkers(workers)
	if cfg.Has(config.ExtXSPH) {
		fluid.Enable(physics.NewXSPHViscosity(p.Viscosity))
	}
	if cfg.Has(config.ExtVorticity) {
		fluid.Enable(physics.NewVorticityConfinement(p.VorticityEpsilon))
	}

	positions, err := scene.Build(cfg.Scene, p.Particles, cfg.Box(), cfg.Spacing, seed)
	if err != nil {
		return nil, nil, err
	}
	if err := fluid.InitState(positions); err != nil {
		return nil, nil, err
	}
	return fluid, positions, nil
}

// NewFactory returns an ensemble factory that builds cfg once per seed with
// the default metrics attached.
func NewFactory(cfg *config.Config) Factory {
	return func(seed int64) (Stepper, []r3.Vec, []dynamo.Metric, error) {
		fluid, positions, err := Build(cfg, seed)
		if err != nil {
			return nil, nil, nil, err
		}
		return fluid, positions, metrics.Defaults(), nil
	}
}

// RunConfig returns the run settings stored in cfg, with state validation on.
func RunConfig(cfg *config.Config) Config {
	return Config{
		Frames:        cfg.Frames,
		RecordEvery:   cfg.RecordEvery,
		ValidateState: true,
	}
}
