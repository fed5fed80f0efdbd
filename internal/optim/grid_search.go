package optim

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"sort"
)

// Evaluator scores one parameter set; lower is better.
type Evaluator func(ctx context.Context, params map[string]float64) (float64, error)

// Trial is one evaluated point of the grid. Err is set when the evaluation
// failed, in which case Score is +Inf.
type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

// GridSearch evaluates every combination of the given parameter values.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Size returns the number of combinations.
func (g *GridSearch) Size() int {
	if len(g.ranges) == 0 {
		return 0
	}
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search evaluates the grid in order and returns the best trial along with
// all trials sorted by score. Failed evaluations are kept as trials; Search
// itself fails only on cancellation or when nothing succeeded.
func (g *GridSearch) Search(ctx context.Context, eval Evaluator) (Trial, []Trial, error) {
	if len(g.paramNames) != len(g.ranges) {
		return Trial{}, nil, fmt.Errorf("%d parameter names for %d ranges", len(g.paramNames), len(g.ranges))
	}
	if g.Size() == 0 {
		return Trial{}, nil, errors.New("empty search grid")
	}

	trials := make([]Trial, 0, g.Size())
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), eval, &trials); err != nil {
		return Trial{}, trials, err
	}

	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Score < trials[j].Score })
	best := trials[0]
	if best.Err != nil {
		return best, trials, fmt.Errorf("all %d trials failed: %w", len(trials), best.Err)
	}
	return best, trials, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	eval Evaluator,
	trials *[]Trial,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		params := maps.Clone(current)
		score, err := eval(ctx, params)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			score = math.Inf(1)
		}
		*trials = append(*trials, Trial{Params: params, Score: score, Err: err})
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[paramName] = val
		if err := g.searchRecursive(ctx, depth+1, current, eval, trials); err != nil {
			return err
		}
	}
	return nil
}
