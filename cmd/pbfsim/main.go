package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/pbfsim/internal/config"
	"github.com/san-kum/pbfsim/internal/dynamo"
	"github.com/san-kum/pbfsim/internal/export"
	"github.com/san-kum/pbfsim/internal/metrics"
	"github.com/san-kum/pbfsim/internal/sim"
	"github.com/san-kum/pbfsim/internal/storage"
	"github.com/san-kum/pbfsim/internal/viz"
)

var (
	dataDir     string
	configFile  string
	preset      string
	sceneName   string
	particles   int
	frames      int
	iterations  int
	dt          float64
	gravity     float64
	seed        int64
	recordEvery int
	workers     int
	index       string
	xsph        bool
	vorticity   bool
	runs        int
	timing      bool
	metricName  string
	outFile     string
	frameIndex  int
	tuneParams  []string
	budget      time.Duration
)

var logger = log.New(os.Stderr, "pbfsim: ", 0)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pbfsim",
		Short: "position based fluid simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pbfsim", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addFluidFlags(runCmd)
	runCmd.Flags().IntVar(&recordEvery, "record-every", config.DefaultRecordEvery, "store positions every n frames (0 disables)")
	runCmd.Flags().IntVar(&runs, "runs", 1, "number of independently seeded runs")
	runCmd.Flags().BoolVar(&timing, "timing", false, "log per-stage step timings")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot per-frame metrics of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&metricName, "metric", "", "plot only this metric")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run as JSON to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportJSON(os.Stdout, args[0])
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE:  showPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config [preset]",
		Short: "print or save a preset as a YAML config",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeConfig,
	}
	configCmd.Flags().StringVarP(&outFile, "out", "o", "", "write to file instead of stdout")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "watch a simulation in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addFluidFlags(liveCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark step throughput",
		Args:  cobra.NoArgs,
		RunE:  benchFluid,
	}
	addFluidFlags(benchCmd)
	benchCmd.Flags().DurationVar(&budget, "budget", 10*time.Second, "wall time limit per benchmark case")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render a stored frame or metric as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().IntVar(&frameIndex, "frame", -1, "recorded frame index, negative counts from the end")
	exportSVGCmd.Flags().StringVar(&metricName, "metric", "", "plot this metric instead of a frame")
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "write to file instead of stdout")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search solver parameters for the lowest density error",
		Args:  cobra.NoArgs,
		RunE:  tuneFluid,
	}
	addFluidFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&tuneParams, "param", nil, "parameter grid as name=v1,v2,... (repeatable)")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportJSONCmd, exportSVGCmd, presetsCmd, configCmd, liveCmd, benchCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addFluidFlags(cmd *cobra.Command) {
	def := config.DefaultConfig()
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&sceneName, "scene", def.Scene, "initial scene")
	cmd.Flags().IntVarP(&particles, "particles", "n", def.Fluid.Particles, "number of particles")
	cmd.Flags().IntVar(&frames, "frames", def.Frames, "number of frames")
	cmd.Flags().IntVarP(&iterations, "iterations", "k", def.Fluid.Iterations, "solver iterations per frame")
	cmd.Flags().Float64Var(&dt, "dt", def.Fluid.Dt, "timestep")
	cmd.Flags().Float64Var(&gravity, "gravity", def.Fluid.Gravity, "per-frame gravity")
	cmd.Flags().Int64Var(&seed, "seed", 0, "jitter seed (0 keeps the lattice exact)")
	cmd.Flags().IntVar(&workers, "workers", 0, "goroutines per step (0 uses all CPUs)")
	cmd.Flags().StringVar(&index, "index", def.Index, "neighbor index: grid or brute")
	cmd.Flags().BoolVar(&xsph, "xsph", false, "enable XSPH viscosity")
	cmd.Flags().BoolVar(&vorticity, "vorticity", false, "enable vorticity confinement")
}

// loadConfig layers preset, config file and explicitly set flags, in that
// order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("scene") {
		cfg.Scene = sceneName
	}
	if flags.Changed("particles") {
		cfg.Fluid.Particles = particles
	}
	if flags.Changed("frames") {
		cfg.Frames = frames
	}
	if flags.Changed("iterations") {
		cfg.Fluid.Iterations = iterations
	}
	if flags.Changed("dt") {
		cfg.Fluid.Dt = dt
	}
	if flags.Changed("gravity") {
		cfg.Fluid.Gravity = gravity
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("index") {
		cfg.Index = index
	}
	if flags.Changed("record-every") {
		cfg.RecordEvery = recordEvery
	}
	if xsph && !cfg.Has(config.ExtXSPH) {
		cfg.Extensions = append(cfg.Extensions, config.ExtXSPH)
	}
	if vorticity && !cfg.Has(config.ExtVorticity) {
		cfg.Extensions = append(cfg.Extensions, config.ExtVorticity)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runs < 1 {
		return fmt.Errorf("runs must be positive, got %d", runs)
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	simCfg := sim.RunConfig(cfg)

	if runs > 1 {
		fmt.Printf("running %d %s simulations with %d particles...\n", runs, cfg.Scene, cfg.Fluid.Particles)
		results, err := sim.NewEnsemble(sim.NewFactory(cfg), runs, cfg.Seed).Run(ctx, simCfg)
		if err != nil {
			return err
		}
		for i, result := range results {
			runID, err := st.Save(cfg, cfg.Seed+int64(i), result)
			if err != nil {
				return err
			}
			fmt.Printf("run id: %s  density_error: %.6f  elapsed: %v\n", runID, result.Metrics["density_error"], result.Elapsed.Round(time.Millisecond))
		}
		return nil
	}

	fluid, positions, err := sim.Build(cfg, cfg.Seed)
	if err != nil {
		return err
	}
	var timer *stageTimer
	if timing {
		timer = newStageTimer()
		fluid.SetTimer(timer.record)
	}

	s := sim.New(fluid)
	for _, m := range metrics.Defaults() {
		s.AddMetric(m)
	}

	fmt.Printf("running %s simulation with %d particles...\n", cfg.Scene, cfg.Fluid.Particles)
	result, runErr := s.Run(ctx, positions, simCfg)
	if result == nil {
		return runErr
	}
	if runErr != nil {
		logger.Printf("stopped after %d frames: %v", result.StepsTaken, runErr)
	}

	runID, err := st.Save(cfg, cfg.Seed, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", result.Elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("frames: %d\n", result.StepsTaken)
	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}
	if timer != nil {
		timer.log(result.StepsTaken)
	}

	return runErr
}

// stageTimer accumulates the time spent in each solver stage.
type stageTimer struct {
	total map[dynamo.Stage]time.Duration
	order []dynamo.Stage
}

func newStageTimer() *stageTimer {
	return &stageTimer{total: make(map[dynamo.Stage]time.Duration)}
}

func (t *stageTimer) record(stage dynamo.Stage, d time.Duration) {
	if _, ok := t.total[stage]; !ok {
		t.order = append(t.order, stage)
	}
	t.total[stage] += d
}

func (t *stageTimer) log(frames int) {
	if frames == 0 {
		return
	}
	for _, stage := range t.order {
		logger.Printf("%-12s %10v/frame", stage, (t.total[stage] / time.Duration(frames)).Round(time.Microsecond))
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tPARTICLES\tFRAMES\tDT\tK\tDENSITY ERR")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4fs\t%d\t%.4f\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Particles,
			run.Frames,
			run.Dt,
			run.Iterations,
			run.Metrics["density_error"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(series))
	for name, values := range series {
		if len(values) == 0 || (metricName != "" && name != metricName) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return fmt.Errorf("no data to plot")
	}
	sort.Strings(names)

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("frames: %d\n\n", meta.Frames)

	for _, name := range names {
		graph := asciigraph.Plot(series[name],
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(strings.ReplaceAll(name, "_", " ")),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func showPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tSCENE\tPARTICLES\tFRAMES\tK\tEXTENSIONS")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		ext := strings.Join(cfg.Extensions, ",")
		if ext == "" {
			ext = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", name, cfg.Scene, cfg.Fluid.Particles, cfg.Frames, cfg.Fluid.Iterations, ext)
	}
	return w.Flush()
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if len(args) == 1 {
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
	}
	if outFile != "" {
		return config.Save(outFile, cfg)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fluid, positions, err := sim.Build(cfg, cfg.Seed)
	if err != nil {
		return err
	}
	name := cfg.Scene
	if preset != "" {
		name = preset
	}
	return viz.Run(fluid, positions, name)
}

func benchFluid(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("frames") {
		base.Frames = 20
	}

	counts := []int{base.Fluid.Particles / 4, base.Fluid.Particles / 2, base.Fluid.Particles}
	workerCounts := []int{1, dynamo.DefaultWorkers}
	indexes := []string{"grid"}
	if base.Fluid.Particles <= 2000 {
		indexes = append(indexes, "brute")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("benchmarking %s, up to %d frames or %v per run\n\n", base.Scene, base.Frames, budget)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTICLES\tINDEX\tWORKERS\tFRAMES\tTIME\tFRAMES/SEC\tNS/PARTICLE")

	for _, n := range counts {
		if n < 1 {
			continue
		}
		for _, idx := range indexes {
			for _, wk := range workerCounts {
				cfg := base.Clone()
				cfg.Fluid.Particles = n
				cfg.Index = idx
				cfg.Workers = wk

				fluid, positions, err := sim.Build(cfg, cfg.Seed)
				if err != nil {
					return err
				}
				done, elapsed, err := timeFrames(ctx, fluid, positions, cfg.Frames, budget)
				if err != nil {
					return err
				}

				perSec := float64(done) / elapsed.Seconds()
				perParticle := float64(elapsed.Nanoseconds()) / float64(done*n)
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%v\t%.1f\t%.0f\n",
					n, idx, wk, done, elapsed.Round(time.Millisecond), perSec, perParticle)
			}
		}
	}

	return w.Flush()
}

// timeFrames steps fluid until frames have run or budget has elapsed and
// returns the number of frames completed. A non-positive budget means no limit.
func timeFrames(ctx context.Context, fluid sim.Stepper, positions []r3.Vec, frames int, budget time.Duration) (int, time.Duration, error) {
	start := time.Now()
	done := 0
	err := sim.New(fluid).RunWithCallback(ctx, positions, sim.Config{Frames: frames, ValidateState: true}, func([]r3.Vec, float64) bool {
		done++
		return budget <= 0 || time.Since(start) < budget
	})
	return done, time.Since(start), err
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	var svg string
	if metricName != "" {
		series, err := st.LoadSeries(runID)
		if err != nil {
			return err
		}
		values, ok := series[metricName]
		if !ok || len(values) < 2 {
			return fmt.Errorf("run %s has no series %q", runID, metricName)
		}
		svg = export.SeriesToSVG(values, 800, 300, "#00ccff")
	} else {
		meta, err := st.Load(runID)
		if err != nil {
			return err
		}
		recorded, err := st.LoadFrames(runID)
		if err != nil {
			return err
		}
		i := frameIndex
		if i < 0 {
			i += len(recorded)
		}
		if i < 0 || i >= len(recorded) {
			return fmt.Errorf("frame %d out of range, run has %d recorded frames", frameIndex, len(recorded))
		}
		svg = export.SnapshotToSVG(recorded[i].Positions, meta.Params["lower"], meta.Params["upper"], 80, 40, 4)
	}

	if outFile != "" {
		return os.WriteFile(outFile, []byte(svg), 0644)
	}
	_, err := fmt.Fprintln(os.Stdout, svg)
	return err
}
