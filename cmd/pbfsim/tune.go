package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/pbfsim/internal/config"
	"github.com/san-kum/pbfsim/internal/metrics"
	"github.com/san-kum/pbfsim/internal/optim"
	"github.com/san-kum/pbfsim/internal/sim"
)

var defaultGrid = []string{
	"iterations=1,2,4",
	"cfm_epsilon=0.1,1,10",
}

// parseGrid reads name=v1,v2,... specs into parallel name and value slices.
func parseGrid(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, entry := range specs {
		name, list, ok := strings.Cut(entry, "=")
		if !ok || name == "" || list == "" {
			return nil, nil, fmt.Errorf("invalid parameter grid %q, want name=v1,v2", entry)
		}
		if err := config.DefaultConfig().Set(name, 0); err != nil {
			return nil, nil, err
		}
		var values []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("parameter %s: %w", name, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

// densityErrorOf runs cfg with params applied and returns the largest
// density error seen.
func densityErrorOf(base *config.Config) optim.Evaluator {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg := base.Clone()
		for name, v := range params {
			if err := cfg.Set(name, v); err != nil {
				return 0, err
			}
		}
		fluid, positions, err := sim.Build(cfg, cfg.Seed)
		if err != nil {
			return 0, err
		}
		s := sim.New(fluid)
		densityErr := metrics.NewDensityError()
		s.AddMetric(densityErr)
		runCfg := sim.RunConfig(cfg)
		runCfg.RecordEvery = 0
		if _, err := s.Run(ctx, positions, runCfg); err != nil {
			return 0, err
		}
		return densityErr.Value(), nil
	}
}

func tuneFluid(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("frames") {
		cfg.Frames = 50
	}

	specs := tuneParams
	if len(specs) == 0 {
		specs = defaultGrid
	}
	names, ranges, err := parseGrid(specs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	search := optim.NewGridSearch(names, ranges)
	fmt.Printf("tuning %s over %d combinations, %d frames each\n\n", strings.Join(names, ", "), search.Size(), cfg.Frames)
	best, trials, searchErr := search.Search(ctx, densityErrorOf(cfg))
	if searchErr != nil && len(trials) == 0 {
		return searchErr
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\tDENSITY ERR")
	for _, t := range trials {
		cols := make([]string, 0, len(names)+1)
		for _, name := range names {
			cols = append(cols, strconv.FormatFloat(t.Params[name], 'g', -1, 64))
		}
		if t.Err != nil {
			cols = append(cols, "failed: "+t.Err.Error())
		} else {
			cols = append(cols, fmt.Sprintf("%.6f", t.Score))
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if searchErr != nil {
		return searchErr
	}

	keys := make([]string, 0, len(best.Params))
	for k := range best.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Print("\nbest:")
	for _, k := range keys {
		fmt.Printf(" %s=%g", k, best.Params[k])
	}
	fmt.Printf(" (density error %.6f)\n", best.Score)
	return nil
}
