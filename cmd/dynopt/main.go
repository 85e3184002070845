package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/dynopt/internal/config"
	"github.com/san-kum/dynopt/internal/logging"
	"github.com/san-kum/dynopt/internal/optim"
	"github.com/san-kum/dynopt/internal/storage"
	"github.com/san-kum/dynopt/internal/tool"
)

var (
	dataDir   string
	logLevel  string
	logFormat string

	preset     string
	tolerance  float64
	method     string
	formula    string
	solverName string
	maxEvals   int
	gridPoints int
	save       bool
	verbose    bool

	plotIndex  int
	outputFile string

	sweepParam  string
	sweepPoints int
	workers     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dynopt",
		Short:         "simulation-based parameter optimization",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	optimizeCmd := &cobra.Command{
		Use:   "optimize [config.yaml]",
		Short: "optimize the parameters of a setup",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runOptimize,
	}
	optimizeCmd.Flags().StringVar(&preset, "preset", "", "use a preset setup (model/name)")
	optimizeCmd.Flags().Float64Var(&tolerance, "tolerance", optim.DefaultTolerance, "convergence tolerance")
	optimizeCmd.Flags().StringVar(&method, "method", "bfgs", "method ("+strings.Join(optim.Methods(), ", ")+")")
	optimizeCmd.Flags().StringVar(&formula, "formula", "central", "finite difference formula (central, forward, backward)")
	optimizeCmd.Flags().StringVar(&solverName, "solver", "gradient", "solver (gradient, grid)")
	optimizeCmd.Flags().IntVar(&maxEvals, "max-evals", optim.DefaultMaxEvaluations, "simulation budget, 0 for none")
	optimizeCmd.Flags().IntVar(&gridPoints, "grid-points", 21, "points per parameter for the grid solver")
	optimizeCmd.Flags().BoolVar(&save, "save", false, "store the run under the data directory")
	optimizeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every accepted iterate")

	simulateCmd := &cobra.Command{
		Use:   "simulate [config.yaml]",
		Short: "simulate once at the default parameter values",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulate,
	}
	simulateCmd.Flags().StringVar(&preset, "preset", "", "use a preset setup (model/name)")
	simulateCmd.Flags().IntVar(&plotIndex, "plot", -1, "plot this state component over time")

	sweepCmd := &cobra.Command{
		Use:   "sweep [config.yaml]",
		Short: "plot the objective against one parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&preset, "preset", "", "use a preset setup (model/name)")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "parameter to vary (default: the first)")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 41, "number of values")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "parallel simulations, 0 for one per CPU")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init [model/name]",
		Short: "write a preset to a setup file",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}
	initCmd.Flags().StringVarP(&outputFile, "output", "o", "dynopt.yaml", "output file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored run and its objective history",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	rootCmd.AddCommand(optimizeCmd, simulateCmd, sweepCmd, presetsCmd, initCmd, listCmd, showCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}

// loadConfig resolves the setup from a preset or file, then the environment,
// then flags the user actually set.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case preset != "" && len(args) > 0:
		return nil, errors.New("give either a setup file or --preset, not both")
	case preset != "":
		cfg = config.GetPreset(preset, "")
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (see dynopt presets)", preset)
		}
	case len(args) > 0:
		var err error
		if cfg, err = config.Load(args[0]); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	default:
		return nil, errors.New("no setup: pass a config file or --preset")
	}

	overrides, err := config.LoadOverrides()
	if err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	overrides.Apply(cfg)

	flags := cmd.Flags()
	if flags.Changed("data") || cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Lookup("tolerance") != nil {
		if flags.Changed("tolerance") {
			cfg.Optimizer.Tolerance = tolerance
		}
		if flags.Changed("method") {
			cfg.Optimizer.Method = method
		}
		if flags.Changed("formula") {
			cfg.Optimizer.Formula = formula
		}
		if flags.Changed("solver") {
			cfg.Optimizer.Solver = solverName
		}
		if flags.Changed("max-evals") {
			cfg.Optimizer.MaxEvaluations = maxEvals
		}
		if flags.Changed("grid-points") {
			cfg.Optimizer.GridPoints = gridPoints
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.SetDefault(logging.NewFormat(cfg.Log.Format, cfg.Log.Level, os.Stderr))
	return cfg, nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	t, err := tool.FromConfig(cfg, tool.NewRegistry(), logging.Default)
	if err != nil {
		return err
	}

	var progress func(optim.Step)
	if verbose {
		progress = func(s optim.Step) {
			fmt.Printf("  iter %3d  evals %4d  objective %.8g  x %v\n", s.Iteration, s.Evaluations, s.Objective, s.Values)
		}
	}
	solver := tool.SolverFromConfig(cfg.Optimizer, logging.Default, progress)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rep, runErr := t.Run(ctx, solver)
	if rep == nil {
		return runErr
	}
	fmt.Println(renderReport(rep))

	if save && rep.Solver != nil {
		st := storage.New(cfg.DataDir)
		runID, err := st.SaveRun(rep, cfg)
		if err != nil {
			return errors.Join(runErr, fmt.Errorf("save run: %w", err))
		}
		fmt.Printf("run id: %s\n", runID)
	}
	return runErr
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	t, err := tool.FromConfig(cfg, tool.NewRegistry(), logging.Default)
	if err != nil {
		return err
	}
	set, err := t.DefaultParameterValueSet()
	if err != nil {
		return err
	}

	ev, err := t.Evaluate(context.Background(), set)
	if err != nil {
		return err
	}
	fmt.Println(renderEvaluation(t.Name(), ev))

	if plotIndex >= 0 {
		data, err := ev.Trajectory.Component(plotIndex)
		if err != nil {
			return err
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("x%d vs time", plotIndex)),
		))
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	t, err := tool.FromConfig(cfg, tool.NewRegistry(), logging.Default)
	if err != nil {
		return err
	}
	name := sweepParam
	if name == "" && len(t.Parameters()) > 0 {
		name = t.Parameters()[0].Name()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	axis, evs, err := t.Sweep(ctx, name, sweepPoints, workers)
	if err != nil {
		return err
	}

	data := make([]float64, len(evs))
	best := 0
	for i, ev := range evs {
		data[i] = ev.Objective
		if ev.Objective < evs[best].Objective {
			best = i
		}
	}
	fmt.Println(asciigraph.Plot(data,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("objective vs %s in [%g, %g]", name, axis[0], axis[len(axis)-1])),
	))
	fmt.Printf("best %s = %.6g, objective %.8g\n", name, axis[best], evs[best].Objective)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	models := config.ListModels()
	if len(args) > 0 {
		models = []string{args[0]}
	}
	for _, model := range models {
		presets := config.ListPresets(model)
		if len(presets) == 0 {
			fmt.Printf("no presets for model: %s\n", model)
			continue
		}
		fmt.Printf("%s:\n", model)
		for _, p := range presets {
			fmt.Printf("  %s/%s\n", model, p)
		}
	}
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg := config.GetPreset(args[0], "")
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s", args[0])
	}
	if _, err := os.Stat(outputFile); err == nil {
		return fmt.Errorf("%s already exists", outputFile)
	}
	if err := config.Save(outputFile, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outputFile)
	return nil
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
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tMETHOD\tSTATUS\tEVALS\tOBJECTIVE")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.6g\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Method,
			run.Status,
			run.Evaluations,
			run.Objective,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	solution, err := st.LoadSolution(runID)
	if err != nil {
		return err
	}
	history, err := st.LoadHistory(runID)
	if err != nil {
		return err
	}

	fmt.Println(renderMetadata(meta, solution))

	if len(history) < 2 {
		fmt.Println("not enough iterations to plot")
		return nil
	}
	data := make([]float64, len(history))
	for i, step := range history {
		data[i] = step.Objective
	}
	fmt.Println(asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption("objective vs iteration"),
	))
	return nil
}
