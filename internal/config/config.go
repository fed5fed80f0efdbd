package config

import (
	"fmt"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pbfsim/internal/physics"
	"github.com/san-kum/pbfsim/internal/scene"
)

const (
	DefaultScene       = "dam_break"
	DefaultFrames      = 200
	DefaultRecordEvery = 10
	DefaultIndex       = "grid"
)

// Config is the on-disk description of a run.
type Config struct {
	Scene       string      `yaml:"scene"`
	Spacing     float64     `yaml:"spacing"`
	Seed        int64       `yaml:"seed"`
	Frames      int         `yaml:"frames"`
	RecordEvery int         `yaml:"record_every"`
	Workers     int         `yaml:"workers"`
	Index       string      `yaml:"index"`
	Extensions  []string    `yaml:"extensions"`
	Fluid       FluidConfig `yaml:"fluid"`
}

type FluidConfig struct {
	Particles        int     `yaml:"particles"`
	Mass             float64 `yaml:"mass"`
	RestDensity      float64 `yaml:"rest_density"`
	Gravity          float64 `yaml:"gravity"`
	UserForce        float64 `yaml:"user_force"`
	Iterations       int     `yaml:"iterations"`
	CFMEpsilon       float64 `yaml:"cfm_epsilon"`
	H                float64 `yaml:"h"`
	TensileK         float64 `yaml:"tensile_k"`
	TensileDeltaQ    float64 `yaml:"tensile_delta_q"`
	TensileN         int     `yaml:"tensile_n"`
	Viscosity        float64 `yaml:"viscosity"`
	VorticityEpsilon float64 `yaml:"vorticity_epsilon"`
	Lower            float64 `yaml:"lower"`
	Upper            float64 `yaml:"upper"`
	Dt               float64 `yaml:"dt"`
	CorrectionScale  float64 `yaml:"correction_scale"`
}

// Extension names accepted in Config.Extensions.
const (
	ExtXSPH      = "xsph_viscosity"
	ExtVorticity = "vorticity_confinement"
)

var extensionNames = []string{ExtXSPH, ExtVorticity}

var indexNames = []string{"grid", "brute"}

func DefaultConfig() *Config {
	p := physics.DefaultConfig()
	return &Config{
		Scene:       DefaultScene,
		Spacing:     p.H / 2,
		Frames:      DefaultFrames,
		RecordEvery: DefaultRecordEvery,
		Index:       DefaultIndex,
		Extensions:  []string{},
		Fluid:       fromPhysics(p),
	}
}

func fromPhysics(p physics.Config) FluidConfig {
	return FluidConfig{
		Particles:        p.Particles,
		Mass:             p.Mass,
		RestDensity:      p.RestDensity,
		Gravity:          p.Gravity,
		UserForce:        p.UserForce,
		Iterations:       p.Iterations,
		CFMEpsilon:       p.CFMEpsilon,
		H:                p.H,
		TensileK:         p.TensileK,
		TensileDeltaQ:    p.TensileDeltaQ,
		TensileN:         p.TensileN,
		Viscosity:        p.Viscosity,
		VorticityEpsilon: p.VorticityEpsilon,
		Lower:            p.Lower,
		Upper:            p.Upper,
		Dt:               p.Dt,
		CorrectionScale:  p.CorrectionScale,
	}
}

// Load reads a YAML file on top of DefaultConfig, so omitted keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Physics converts the fluid section into solver parameters.
func (c *Config) Physics() physics.Config {
	f := c.Fluid
	return physics.Config{
		Particles:        f.Particles,
		Mass:             f.Mass,
		RestDensity:      f.RestDensity,
		Gravity:          f.Gravity,
		UserForce:        f.UserForce,
		Iterations:       f.Iterations,
		CFMEpsilon:       f.CFMEpsilon,
		H:                f.H,
		TensileK:         f.TensileK,
		TensileDeltaQ:    f.TensileDeltaQ,
		TensileN:         f.TensileN,
		Viscosity:        f.Viscosity,
		VorticityEpsilon: f.VorticityEpsilon,
		Lower:            f.Lower,
		Upper:            f.Upper,
		Dt:               f.Dt,
		CorrectionScale:  f.CorrectionScale,
	}
}

func (c *Config) Box() scene.Box {
	return scene.Box{Lower: c.Fluid.Lower, Upper: c.Fluid.Upper}
}

// Validate checks the run settings and then the fluid parameters.
func (c *Config) Validate() error {
	if !slices.Contains(scene.Names(), c.Scene) {
		return fmt.Errorf("unknown scene: %s (available: %v)", c.Scene, scene.Names())
	}
	if !slices.Contains(indexNames, c.Index) {
		return fmt.Errorf("unknown index: %s (available: %v)", c.Index, indexNames)
	}
	for _, ext := range c.Extensions {
		if !slices.Contains(extensionNames, ext) {
			return fmt.Errorf("unknown extension: %s (available: %v)", ext, extensionNames)
		}
	}
	if !(c.Spacing > 0) {
		return fmt.Errorf("spacing must be positive, got %g", c.Spacing)
	}
	if c.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", c.Frames)
	}
	if c.RecordEvery < 0 {
		return fmt.Errorf("record_every must not be negative, got %d", c.RecordEvery)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return c.Physics().Validate()
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Extensions = slices.Clone(c.Extensions)
	return &out
}

// Has reports whether the named extension is enabled.
func (c *Config) Has(ext string) bool {
	return slices.Contains(c.Extensions, ext)
}

// GetParams flattens the run for metadata and display.
func (c *Config) GetParams() map[string]float64 {
	params := c.Physics().GetParams()
	params["spacing"] = c.Spacing
	params["frames"] = float64(c.Frames)
	params["seed"] = float64(c.Seed)
	params["lower"] = c.Fluid.Lower
	params["upper"] = c.Fluid.Upper
	return params
}

// Set assigns a fluid or run parameter by its YAML name. Integer fields are
// rounded.
func (c *Config) Set(name string, v float64) error {
	f := &c.Fluid
	switch name {
	case "particles":
		f.Particles = int(math.Round(v))
	case "iterations":
		f.Iterations = int(math.Round(v))
	case "mass":
		f.Mass = v
	case "rest_density":
		f.RestDensity = v
	case "gravity":
		f.Gravity = v
	case "cfm_epsilon":
		f.CFMEpsilon = v
	case "h":
		f.H = v
	case "tensile_k":
		f.TensileK = v
	case "tensile_delta_q":
		f.TensileDeltaQ = v
	case "viscosity":
		f.Viscosity = v
	case "vorticity_epsilon":
		f.VorticityEpsilon = v
	case "dt":
		f.Dt = v
	case "correction_scale":
		f.CorrectionScale = v
	case "spacing":
		c.Spacing = v
	default:
		return fmt.Errorf("unknown parameter: %s", name)
	}
	return nil
}
