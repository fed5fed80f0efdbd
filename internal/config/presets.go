package config

import (
	"sort"
)

// Presets are named starting points for common runs.
var Presets = map[string]func() *Config{
	"dam_break": func() *Config {
		return DefaultConfig()
	},
	"drop": func() *Config {
		c := DefaultConfig()
		c.Scene = "drop"
		c.Fluid.Particles = 512
		return c
	},
	"calm": func() *Config {
		c := DefaultConfig()
		c.Scene = "block"
		c.Fluid.Particles = 512
		c.Fluid.Gravity = 0
		return c
	},
	"splash": func() *Config {
		c := DefaultConfig()
		c.Fluid.Iterations = 6
		c.Frames = 400
		c.Extensions = []string{ExtXSPH, ExtVorticity}
		return c
	},
	"quick": func() *Config {
		c := DefaultConfig()
		c.Fluid.Particles = 125
		c.Frames = 50
		c.RecordEvery = 5
		return c
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
