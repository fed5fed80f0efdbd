package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbfsim/internal/dynamo"
)

// Factory builds an independent fluid and its initial positions for a seed.
type Factory func(seed int64) (Stepper, []r3.Vec, []dynamo.Metric, error)

// Ensemble runs several independently seeded simulations concurrently.
type Ensemble struct {
	factory   Factory
	numRuns   int
	seedStart int64
}

func NewEnsemble(factory Factory, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{factory: factory, numRuns: numRuns, seedStart: seedStart}
}

// Run returns one result per seed, in seed order. The first failing run
// cancels the others.
func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*dynamo.Result, error) {
	results := make([]*dynamo.Result, e.numRuns)
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			fluid, positions, metrics, err := e.factory(e.seedStart + int64(i))
			if err != nil {
				return err
			}
			s := New(fluid)
			for _, m := range metrics {
				s.AddMetric(m)
			}
			results[i], err = s.Run(ctx, positions, cfg)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
