package physics

import (
	"time"

	"github.com/san-kum/pbfsim/internal/dynamo"
	"github.com/san-kum/pbfsim/internal/kernel"
	"github.com/san-kum/pbfsim/internal/neighbors"
	"gonum.org/v1/gonum/spatial/r3"
)

// minChunk is the smallest particle range handed to a worker.
const minChunk = 128

// Fluid is a position based fluid. A Fluid is not safe for concurrent use;
// Step is the only writer of its state.
type Fluid struct {
	cfg          Config
	state        *State
	index        neighbors.Index
	tensileDenom float64

	t       float64
	frame   int
	ready   bool
	workers int
	push    r3.Vec

	extensions []Extension
	observers  []dynamo.Observer
	timer      dynamo.StageTimer
}

// New validates cfg and allocates a fluid. A nil idx selects a spatial hash
// grid with cells of edge h.
func New(cfg Config, idx neighbors.Index) (*Fluid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if idx == nil {
		idx = neighbors.NewGrid(cfg.Lower, cfg.H)
	}
	return &Fluid{
		cfg:          cfg,
		state:        newState(cfg.Particles),
		index:        idx,
		tensileDenom: kernel.Poly6Radius(cfg.TensileDeltaQ*cfg.H, cfg.H),
		workers:      dynamo.DefaultWorkers,
	}, nil
}

// InitState copies the initial positions, zeroes velocities and builds the
// first neighbor index.
func (f *Fluid) InitState(positions []r3.Vec) error {
	if len(positions) != f.cfg.Particles {
		return dynamo.ShapeError("positions", f.cfg.Particles, len(positions))
	}
	s := f.state
	copy(s.Position, positions)
	copy(s.Candidate, positions)
	for i := range s.Velocity {
		s.Velocity[i] = r3.Vec{}
	}
	f.index.Rebuild(s.Position)
	f.captureNeighbors()
	f.t = 0
	f.frame = 0
	f.ready = true
	return nil
}

// Step advances the fluid by one frame. positions must hold the committed
// positions of the previous frame and receives the new ones. colors is
// optional debug output.
func (f *Fluid) Step(positions []r3.Vec, colors []dynamo.Color) error {
	if !f.ready {
		return dynamo.ErrNotInitialized
	}
	n := f.cfg.Particles
	if len(positions) != n {
		return dynamo.ShapeError("positions", n, len(positions))
	}
	if colors != nil && len(colors) != n {
		return dynamo.ShapeError("colors", n, len(colors))
	}

	start := time.Now()
	mark := start
	s := f.state
	copy(s.Position, positions)

	f.applyForces()
	mark = f.lap(dynamo.StageForces, mark)

	f.index.Rebuild(s.Candidate)
	f.captureNeighbors()
	mark = f.lap(dynamo.StageNeighbors, mark)

	for i := 0; i < f.cfg.Iterations; i++ {
		f.solveConstraints()
		mark = f.lap(dynamo.StageConstraints, mark)

		f.solveCorrections()
		mark = f.lap(dynamo.StageCorrection, mark)

		f.applyCorrections()
		mark = f.lap(dynamo.StageCollision, mark)
	}
	f.clampAll()

	f.updateVelocity()
	mark = f.lap(dynamo.StageVelocity, mark)

	if len(f.extensions) > 0 {
		for _, ext := range f.extensions {
			ext.Apply(s, f.cfg, f.workers)
		}
		mark = f.lap(dynamo.StageExtensions, mark)
	}

	copy(s.Position, s.Candidate)
	copy(positions, s.Position)
	f.index.Rebuild(s.Position)
	f.paint(colors)

	f.t += f.cfg.Dt
	f.frame++
	f.lap(dynamo.StageCommit, mark)
	f.lap(dynamo.StageTotal, start)

	f.notify()
	return nil
}

// Push queues an impulse of magnitude Config.UserForce along dir for the
// next step.
func (f *Fluid) Push(dir r3.Vec) {
	d := r3.Norm(dir)
	if d == 0 || f.cfg.UserForce == 0 {
		return
	}
	f.push = r3.Add(f.push, r3.Scale(f.cfg.UserForce/d, dir))
}

// Enable appends an extension pass run after the velocity update.
func (f *Fluid) Enable(ext Extension) { f.extensions = append(f.extensions, ext) }

func (f *Fluid) AddObserver(o dynamo.Observer) { f.observers = append(f.observers, o) }

// SetTimer installs a stage timing callback; nil disables timing.
func (f *Fluid) SetTimer(t dynamo.StageTimer) { f.timer = t }

// SetWorkers sets the number of goroutines used inside a step. One worker
// runs the step serially.
func (f *Fluid) SetWorkers(n int) {
	if n <= 0 {
		n = dynamo.DefaultWorkers
	}
	f.workers = n
}

func (f *Fluid) Config() Config    { return f.cfg }
func (f *Fluid) State() *State     { return f.state }
func (f *Fluid) Time() float64     { return f.t }
func (f *Fluid) Frame() int        { return f.frame }
func (f *Fluid) Initialized() bool { return f.ready }

// Neighbors returns the neighbors of particle i in the index built from the
// committed positions.
func (f *Fluid) Neighbors(i int) []int { return f.index.Neighbors(i) }

func (f *Fluid) captureNeighbors() {
	s := f.state
	for i := range s.Neighbors {
		s.Neighbors[i] = append(s.Neighbors[i][:0], f.index.Neighbors(i)...)
	}
}

func (f *Fluid) lap(stage dynamo.Stage, since time.Time) time.Time {
	now := time.Now()
	if f.timer != nil {
		f.timer(stage, now.Sub(since))
	}
	return now
}

// paint tags particle 0 red, its frame neighbors green and the rest blue.
func (f *Fluid) paint(colors []dynamo.Color) {
	if colors == nil {
		return
	}
	for i := range colors {
		colors[i] = dynamo.Blue
	}
	colors[0] = dynamo.Red
	for _, j := range f.state.Neighbors[0] {
		if j != 0 {
			colors[j] = dynamo.Green
		}
	}
}

func (f *Fluid) notify() {
	if len(f.observers) == 0 {
		return
	}
	s := f.state
	frame := dynamo.Frame{
		Step:       f.frame,
		Time:       f.t,
		Mass:       f.cfg.Mass,
		Lower:      f.cfg.Lower,
		Upper:      f.cfg.Upper,
		Positions:  s.Position,
		Velocities: s.Velocity,
		Density:    s.Density,
		Constraint: s.Constraint,
		Lambda:     s.Lambda,
	}
	for _, o := range f.observers {
		o.OnFrame(frame)
	}
}
