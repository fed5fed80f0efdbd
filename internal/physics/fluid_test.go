package physics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/san-kum/pbfsim/internal/dynamo"
	"github.com/san-kum/pbfsim/internal/kernel"
	"github.com/san-kum/pbfsim/internal/neighbors"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero particles", func(c *Config) { c.Particles = 0 }, "particles"},
		{"negative particles", func(c *Config) { c.Particles = -3 }, "particles"},
		{"zero radius", func(c *Config) { c.H = 0 }, "h"},
		{"NaN radius", func(c *Config) { c.H = math.NaN() }, "h"},
		{"zero rest density", func(c *Config) { c.RestDensity = 0 }, "rest_density"},
		{"negative dt", func(c *Config) { c.Dt = -0.01 }, "dt"},
		{"equal bounds", func(c *Config) { c.Lower, c.Upper = 1, 1 }, "lower"},
		{"inverted bounds", func(c *Config) { c.Lower, c.Upper = 2, 1 }, "lower"},
		{"zero mass", func(c *Config) { c.Mass = 0 }, "mass"},
		{"negative iterations", func(c *Config) { c.Iterations = -1 }, "iterations"},
		{"zero cfm", func(c *Config) { c.CFMEpsilon = 0 }, "cfm_epsilon"},
		{"delta q at radius", func(c *Config) { c.TensileDeltaQ = 1 }, "tensile_delta_q"},
		{"viscosity above one", func(c *Config) { c.Viscosity = 2 }, "viscosity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, nil)
			if !errors.Is(err, dynamo.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			var ce *dynamo.ConfigError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("expected field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestLargeBoxSmallRadius(t *testing.T) {
	cfg := configFor(8)
	cfg.Lower, cfg.Upper, cfg.H = 0, 1000, 0.01
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}
	f, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ps := block(2, 2, 2, r3.Vec{X: 500, Y: 500, Z: 500}, cfg.H/2)
	if err := f.InitState(ps); err != nil {
		t.Fatal(err)
	}
	if got := len(f.Neighbors(0)); got != 8 {
		t.Errorf("expected all 8 particles to be neighbors, got %d", got)
	}
	if err := f.Step(ps, nil); err != nil {
		t.Fatal(err)
	}
	if !dynamo.ValidPositions(ps) {
		t.Error("positions not finite after step")
	}
}

func TestShapeMismatch(t *testing.T) {
	cfg := configFor(8)
	f, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.InitState(make([]r3.Vec, 7)); !errors.Is(err, dynamo.ErrShapeMismatch) {
		t.Errorf("InitState: expected ErrShapeMismatch, got %v", err)
	}

	ps := block(2, 2, 2, r3.Vec{X: 0.4, Y: 0.4, Z: 0.4}, 0.05)
	if err := f.Step(ps, nil); !errors.Is(err, dynamo.ErrNotInitialized) {
		t.Errorf("Step before init: expected ErrNotInitialized, got %v", err)
	}
	if err := f.InitState(ps); err != nil {
		t.Fatal(err)
	}
	if err := f.Step(ps[:5], nil); !errors.Is(err, dynamo.ErrShapeMismatch) {
		t.Errorf("Step positions: expected ErrShapeMismatch, got %v", err)
	}
	if err := f.Step(ps, make([]dynamo.Color, 3)); !errors.Is(err, dynamo.ErrShapeMismatch) {
		t.Errorf("Step colors: expected ErrShapeMismatch, got %v", err)
	}
}

func TestDebugColors(t *testing.T) {
	cfg := configFor(3)
	cfg.Gravity = 0
	ps := []r3.Vec{
		{X: 0.5, Y: 0.5, Z: 0.5},
		{X: 0.55, Y: 0.5, Z: 0.5},
		{X: 0.9, Y: 0.9, Z: 0.9},
	}
	f := mustFluid(cfg, nil, ps)

	colors := make([]dynamo.Color, 3)
	if err := f.Step(ps, colors); err != nil {
		t.Fatal(err)
	}

	want := []dynamo.Color{dynamo.Red, dynamo.Green, dynamo.Blue}
	for i := range want {
		if colors[i] != want[i] {
			t.Errorf("color[%d] = %v, want %v", i, colors[i], want[i])
		}
	}
}

func TestClockAdvances(t *testing.T) {
	cfg := configFor(8)
	ps := block(2, 2, 2, r3.Vec{X: 0.4, Y: 0.4, Z: 0.4}, 0.05)
	f := mustFluid(cfg, nil, ps)

	for i := 0; i < 5; i++ {
		if err := f.Step(ps, nil); err != nil {
			t.Fatal(err)
		}
	}
	if f.Frame() != 5 {
		t.Errorf("expected 5 frames, got %d", f.Frame())
	}
	if math.Abs(f.Time()-5*cfg.Dt) > 1e-12 {
		t.Errorf("expected t=%f, got %f", 5*cfg.Dt, f.Time())
	}
}

func TestSingleRebuildPerFrame(t *testing.T) {
	cfg := configFor(27)
	cfg.Iterations = 6
	ps := centeredBlock(3, cfg.H/2)
	idx := &countingIndex{Index: neighbors.NewGrid(cfg.Lower, cfg.H)}
	f := mustFluid(cfg, idx, ps)

	idx.rebuilds = 0
	if err := f.Step(ps, nil); err != nil {
		t.Fatal(err)
	}
	// one rebuild on candidates, one on committed positions
	if idx.rebuilds != 2 {
		t.Errorf("expected 2 rebuilds per frame, got %d", idx.rebuilds)
	}
}

func TestNeighborListsIndexedByParticle(t *testing.T) {
	cfg := configFor(9)
	cfg.Gravity = 0
	cfg.Iterations = 3
	cfg.CorrectionScale = 0

	// particle 0 sits alone, so its list differs from every other particle's
	ps := append([]r3.Vec{{X: 0.1, Y: 0.1, Z: 0.1}}, block(2, 2, 2, r3.Vec{X: 0.6, Y: 0.6, Z: 0.6}, 0.04)...)
	f := mustFluid(cfg, nil, ps)
	if err := f.Step(ps, nil); err != nil {
		t.Fatal(err)
	}

	s := f.State()
	brute := neighbors.NewBruteForce(cfg.H)
	brute.Rebuild(s.Candidate)

	for p := 0; p < s.Len(); p++ {
		got, want := s.Neighbors[p], brute.Neighbors(p)
		if len(got) != len(want) {
			t.Fatalf("particle %d: %d neighbors, want %d", p, len(got), len(want))
		}
		density := 0.0
		for _, q := range want {
			density += cfg.Mass * kernel.Poly6(r3.Sub(s.Candidate[p], s.Candidate[q]), cfg.H)
		}
		if math.Abs(s.Density[p]-density) > 1e-9*density {
			t.Errorf("particle %d: density %g, want %g", p, s.Density[p], density)
		}
	}
	if len(s.Neighbors[0]) != 1 {
		t.Errorf("isolated particle should only neighbor itself, got %v", s.Neighbors[0])
	}
}

func TestPushImpulse(t *testing.T) {
	cfg := configFor(1)
	cfg.Gravity = 0
	cfg.Iterations = 0
	cfg.UserForce = 2
	ps := []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}}
	f := mustFluid(cfg, nil, ps)

	f.Push(r3.Vec{X: 10})
	if err := f.Step(ps, nil); err != nil {
		t.Fatal(err)
	}
	if v := f.State().Velocity[0].X; math.Abs(v-2) > 1e-9 {
		t.Errorf("expected vx=2 after push, got %f", v)
	}

	if err := f.Step(ps, nil); err != nil {
		t.Fatal(err)
	}
	if v := f.State().Velocity[0].X; math.Abs(v-2) > 1e-9 {
		t.Errorf("impulse should apply once, got vx=%f", v)
	}

	f.Push(r3.Vec{})
	if f.push != (r3.Vec{}) {
		t.Error("zero direction should not queue an impulse")
	}
}

func TestDeterministicAcrossWorkers(t *testing.T) {
	cfg := configFor(512)
	ps := centeredBlock(8, cfg.H/2)
	jitter(ps, 0.005, 1)

	run := func(workers int) []r3.Vec {
		buf := dynamo.ClonePositions(ps)
		f := mustFluid(cfg, nil, buf)
		f.SetWorkers(workers)
		f.Enable(NewXSPHViscosity(0.1))
		f.Enable(NewVorticityConfinement(cfg.VorticityEpsilon))
		for i := 0; i < 5; i++ {
			if err := f.Step(buf, nil); err != nil {
				t.Fatal(err)
			}
		}
		return buf
	}

	serial, parallel := run(1), run(8)
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("particle %d differs: %v vs %v", i, serial[i], parallel[i])
		}
	}
}

// workerRecorder records the worker count each Apply call receives.
type workerRecorder struct{ seen []int }

func (w *workerRecorder) Name() string { return "workers" }
func (w *workerRecorder) Apply(s *State, cfg Config, workers int) {
	w.seen = append(w.seen, workers)
}

func TestExtensionsFollowWorkerCount(t *testing.T) {
	cfg := configFor(8)
	ps := block(2, 2, 2, r3.Vec{X: 0.4, Y: 0.4, Z: 0.4}, cfg.H/2)
	f := mustFluid(cfg, nil, ps)
	ext := &workerRecorder{}
	f.Enable(ext)

	f.SetWorkers(1)
	if err := f.Step(ps, nil); err != nil {
		t.Fatal(err)
	}
	f.SetWorkers(3)
	if err := f.Step(ps, nil); err != nil {
		t.Fatal(err)
	}
	if len(ext.seen) != 2 || ext.seen[0] != 1 || ext.seen[1] != 3 {
		t.Errorf("expected worker counts [1 3], got %v", ext.seen)
	}
}

func TestCoincidentParticlesStayFinite(t *testing.T) {
	cfg := configFor(4)
	ps := []r3.Vec{
		{X: 0.5, Y: 0.5, Z: 0.5},
		{X: 0.5, Y: 0.5, Z: 0.5},
		{X: 0.5, Y: 0.52, Z: 0.5},
		{X: 0.5, Y: 0.52, Z: 0.5},
	}
	f := mustFluid(cfg, nil, ps)
	for i := 0; i < 10; i++ {
		if err := f.Step(ps, nil); err != nil {
			t.Fatal(err)
		}
	}
	if !dynamo.ValidPositions(ps) || !dynamo.ValidPositions(f.State().Velocity) {
		t.Errorf("NaN or Inf after steps: %v", ps)
	}
}

type recordingObserver struct {
	frames []dynamo.Frame
}

func (r *recordingObserver) OnFrame(fr dynamo.Frame) { r.frames = append(r.frames, fr) }

func TestObserverAndTimer(t *testing.T) {
	cfg := configFor(27)
	cfg.Iterations = 3
	ps := centeredBlock(3, cfg.H/2)
	f := mustFluid(cfg, nil, ps)

	obs := &recordingObserver{}
	f.AddObserver(obs)
	stages := map[dynamo.Stage]int{}
	f.SetTimer(func(s dynamo.Stage, d time.Duration) {
		if d < 0 {
			t.Errorf("negative duration for %s", s)
		}
		stages[s]++
	})

	for i := 0; i < 2; i++ {
		if err := f.Step(ps, nil); err != nil {
			t.Fatal(err)
		}
	}

	if len(obs.frames) != 2 || obs.frames[1].Step != 2 {
		t.Fatalf("expected 2 frames ending at step 2, got %d", len(obs.frames))
	}
	if len(obs.frames[0].Positions) != 27 {
		t.Errorf("frame should expose all particles")
	}
	if stages[dynamo.StageConstraints] != 6 {
		t.Errorf("expected 6 constraint timings, got %d", stages[dynamo.StageConstraints])
	}
	if stages[dynamo.StageTotal] != 2 || stages[dynamo.StageNeighbors] != 2 {
		t.Errorf("unexpected stage counts: %v", stages)
	}
	if _, ok := stages[dynamo.StageExtensions]; ok {
		t.Error("extensions stage reported with no extensions enabled")
	}
}

func TestParticleView(t *testing.T) {
	cfg := configFor(8)
	ps := block(2, 2, 2, r3.Vec{X: 0.4, Y: 0.4, Z: 0.4}, 0.05)
	f := mustFluid(cfg, nil, ps)
	if err := f.Step(ps, nil); err != nil {
		t.Fatal(err)
	}

	p := f.State().Particle(3)
	if p.Index != 3 || p.Position != ps[3] {
		t.Errorf("particle view mismatch: %+v", p)
	}
	if p.Density != f.State().Density[3] || len(p.Neighbors) != len(f.State().Neighbors[3]) {
		t.Error("particle view does not reflect state arrays")
	}
}

func TestLatticeDensity(t *testing.T) {
	h := 0.1
	rho := LatticeDensity(h/2, h, 1)
	self := kernel.Poly6(r3.Vec{}, h)
	if rho <= self {
		t.Errorf("lattice density %f should exceed self term %f", rho, self)
	}
	if math.Abs(LatticeDensity(h/2, h, 2)-2*rho) > 1e-9*rho {
		t.Error("lattice density should scale with mass")
	}
}

func BenchmarkStep(b *testing.B) {
	cfg := configFor(1000)
	ps := centeredBlock(10, cfg.H/2)
	f := mustFluid(cfg, nil, ps)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := f.Step(ps, nil); err != nil {
			b.Fatal(err)
		}
	}
}
