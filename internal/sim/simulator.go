package sim

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbfsim/internal/dynamo"
)

// Stepper advances a particle system one frame at a time.
type Stepper interface {
	Step(positions []r3.Vec, colors []dynamo.Color) error
	Time() float64
	Frame() int
	AddObserver(o dynamo.Observer)
}

type Config struct {
	Frames int
	// RecordEvery keeps a copy of the positions every n frames; 0 keeps none.
	RecordEvery   int
	ValidateState bool
}

// Simulator drives a Stepper and collects metrics for every frame.
type Simulator struct {
	fluid     Stepper
	metrics   []dynamo.Metric
	observers []dynamo.Observer
	series    map[string][]float64
}

// New registers the simulator as an observer of fluid.
func New(fluid Stepper) *Simulator {
	s := &Simulator{
		fluid:     fluid,
		metrics:   make([]dynamo.Metric, 0),
		observers: make([]dynamo.Observer, 0),
	}
	fluid.AddObserver(s)
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) OnFrame(f dynamo.Frame) {
	for _, m := range s.metrics {
		m.OnFrame(f)
		if s.series != nil {
			s.series[m.Name()] = append(s.series[m.Name()], m.Value())
		}
	}
	for _, o := range s.observers {
		o.OnFrame(f)
	}
}

// Run steps the fluid cfg.Frames times. Cancellation is checked between
// frames; a frame in progress always completes.
func (s *Simulator) Run(ctx context.Context, positions []r3.Vec, cfg Config) (*dynamo.Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	capacity := 1
	if cfg.RecordEvery > 0 {
		capacity += cfg.Frames / cfg.RecordEvery
	}
	result := &dynamo.Result{
		Frames:  make([]dynamo.Snapshot, 0, capacity),
		Metrics: make(map[string]float64),
		Series:  make(map[string][]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}
	s.series = result.Series
	defer func() { s.series = nil }()

	if cfg.RecordEvery > 0 {
		result.Frames = append(result.Frames, s.snapshot(positions))
	}

	start := time.Now()
	defer func() {
		result.Elapsed = time.Since(start)
		for _, m := range s.metrics {
			result.Metrics[m.Name()] = m.Value()
		}
	}()

	for i := 0; i < cfg.Frames; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := s.fluid.Step(positions, nil); err != nil {
			return result, err
		}
		result.StepsTaken++

		if cfg.ValidateState && !dynamo.ValidPositions(positions) {
			return result, &dynamo.SimError{Step: s.fluid.Frame(), Time: s.fluid.Time(), Wrapped: dynamo.ErrUnstable}
		}

		if cfg.RecordEvery > 0 && s.fluid.Frame()%cfg.RecordEvery == 0 {
			result.Frames = append(result.Frames, s.snapshot(positions))
		}
	}

	return result, nil
}

func (s *Simulator) snapshot(positions []r3.Vec) dynamo.Snapshot {
	return dynamo.Snapshot{
		Step:      s.fluid.Frame(),
		Time:      s.fluid.Time(),
		Positions: dynamo.ClonePositions(positions),
	}
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", cfg.Frames)
	}
	if cfg.RecordEvery < 0 {
		return fmt.Errorf("record interval must not be negative, got %d", cfg.RecordEvery)
	}
	return nil
}

// RunWithCallback steps until cfg.Frames frames have run or callback
// returns false. The callback sees the committed positions of each frame.
func (s *Simulator) RunWithCallback(ctx context.Context, positions []r3.Vec, cfg Config, callback func([]r3.Vec, float64) bool) error {
	if err := s.validateConfig(cfg); err != nil {
		return err
	}

	for i := 0; i < cfg.Frames; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.fluid.Step(positions, nil); err != nil {
			return err
		}

		if cfg.ValidateState && !dynamo.ValidPositions(positions) {
			return fmt.Errorf("invalid state at t=%.4f: %w", s.fluid.Time(), dynamo.ErrUnstable)
		}

		if !callback(positions, s.fluid.Time()) {
			return nil
		}
	}

	return nil
}
