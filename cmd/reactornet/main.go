package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/reactornet/internal/config"
	"github.com/san-kum/reactornet/internal/experiment"
	"github.com/san-kum/reactornet/internal/metrics"
	"github.com/san-kum/reactornet/internal/simerr"
	"github.com/san-kum/reactornet/internal/storage"
	"github.com/san-kum/reactornet/internal/viz"
)

var (
	dataDir     string
	logLevel    string
	logJSON     bool
	metricsAddr string

	configFile string
	preset     string
	duration   float64
	interval   float64
	method     string
	rtol       float64
	atol       float64
	noSave     bool
	showPlot   bool

	columns   []string
	outFile   string
	workers   int
	params    []string
	metricArg string
	maximize  bool
)

// main registers the commands and opens the preset picker when no
// subcommand is given.
func main() {
	registry := experiment.NewRegistry()

	rootCmd := &cobra.Command{
		Use:           "reactornet",
		Short:         "zero-dimensional reactor network simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(registry)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".reactornet", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a network and store the samples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNetwork(cmd, registry)
		},
	}
	addNetworkFlags(runCmd)
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	runCmd.Flags().Float64Var(&interval, "interval", config.DefaultInterval, "sampling interval (0 samples every step)")
	runCmd.Flags().StringVar(&method, "method", config.DefaultMethod, "integration method")
	runCmd.Flags().Float64Var(&rtol, "rtol", config.DefaultRelTol, "relative tolerance")
	runCmd.Flags().Float64Var(&atol, "atol", config.DefaultAbsTol, "absolute tolerance")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot reactor temperatures")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a network with live visualization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return viz.RunLive(registry, cfg)
		},
	}
	addNetworkFlags(liveCmd)

	sensitivityCmd := &cobra.Command{
		Use:   "sensitivity",
		Short: "rank reactions by their effect on a component",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSensitivity(registry)
		},
	}
	addNetworkFlags(sensitivityCmd)
	sensitivityCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (default: number of CPUs)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run a network over a grid of parameter values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(registry)
		},
	}
	addNetworkFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&params, "param", nil, "parameter grid as name=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&metricArg, "metric", "", "metric to rank the runs by")
	sweepCmd.Flags().BoolVar(&maximize, "maximize", false, "rank by the largest metric value")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "check a network description and build it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, err := registry.Build(cfg)
			if err != nil {
				return err
			}
			net := m.Network
			fmt.Printf("%s: %d reactors, %d components, %s\n", cfg.Name, len(net.Reactors()), net.NEq(), net.IndependentVariable())
			for i := 0; i < net.NEq(); i++ {
				fmt.Printf("  %3d  %s\n", i, net.ComponentName(i))
			}
			return nil
		},
	}
	addNetworkFlags(validateCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to plot (default: reactor temperatures)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default: stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default: stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [category]",
		Short: "list preset networks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := config.Categories()
			if len(args) == 1 {
				if config.ListPresets(args[0]) == nil {
					return fmt.Errorf("unknown category: %s (available: %v)", args[0], cats)
				}
				cats = args
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, c := range cats {
				for _, p := range config.ListPresets(c) {
					fmt.Fprintf(w, "%s/%s\t%s\n", c, p, config.GetPreset(c, p).Description)
				}
			}
			return w.Flush()
		},
	}

	componentsCmd := &cobra.Command{
		Use:   "components",
		Short: "list mechanisms, reactor types, integrators and functions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mechanisms:  %s\n", strings.Join(registry.ListMechanisms(), ", "))
			fmt.Printf("surfaces:    %s\n", strings.Join(registry.ListSurfaces(), ", "))
			fmt.Printf("reactors:    %s\n", strings.Join(registry.ListKinds(), ", "))
			fmt.Printf("integrators: %s\n", strings.Join(registry.ListIntegrators(), ", "))
			fmt.Printf("functions:   %s\n", strings.Join(registry.ListFunctions(), ", "))
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, sensitivityCmd, sweepCmd, validateCmd, listCmd, plotCmd, exportCmd, exportJSONCmd, exportCSVCmd, presetsCmd, componentsCmd)

	if err := rootCmd.Execute(); err != nil {
		logrus.WithField("kind", simerr.KindOf(err)).Error(err)
		os.Exit(1)
	}
}

func addNetworkFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "network description (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "preset network as category/name")
}

func setupLogging() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if logJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

// loadConfig reads --config, falls back to --preset and then to the
// default network.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	if preset != "" {
		category, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be category/name, got %q", preset)
		}
		cfg := config.GetPreset(category, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(category))
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func runNetwork(cmd *cobra.Command, registry *experiment.Registry) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// flags override the description only when given
	flags := cmd.Flags()
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("interval") {
		cfg.Interval = interval
	}
	if flags.Changed("method") {
		cfg.Solver.Method = method
	}
	if flags.Changed("rtol") {
		cfg.Solver.RelTol = rtol
	}
	if flags.Changed("atol") {
		cfg.Solver.AbsTol = atol
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exp := experiment.New(cfg)
	if err := exp.Setup(registry); err != nil {
		return err
	}

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := metrics.NewCollector(reg, cfg.Name, exp.Metrics()...)
		if err != nil {
			return err
		}
		exp.AddObserver(collector)
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Error("metrics server")
			}
		}()
		defer srv.Close()
		logrus.WithField("addr", metricsAddr).Info("serving metrics")
	}

	fmt.Printf("running %s...\n", cfg.Name)
	result, err := exp.Run(ctx)
	if err != nil {
		if len(result.Times) > 1 {
			fmt.Printf("failed at %s %g after %d samples\n", result.Variable, result.Times[len(result.Times)-1], len(result.Times))
		}
		return err
	}

	fmt.Printf("completed in %v\n", result.Elapsed)
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(cfg, result)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	stats := result.Stats
	fmt.Printf("samples: %d  steps: %d  rejected: %d  rhs evals: %d  events: %d\n",
		len(result.Times), stats.Solver.Steps, stats.Solver.Rejected, stats.Solver.RHSEvals, stats.Events)

	fmt.Println("\nfinal state:")
	for _, c := range viz.TemperatureColumns(result) {
		reactorName := strings.TrimSuffix(c, ".T")
		temp, _ := result.Last(c)
		press, _ := result.Last(reactorName + ".P")
		fmt.Printf("  %-16s T = %8.2f K  P = %.6g Pa\n", reactorName, temp, press)
	}

	fmt.Println("\nmetrics:")
	printMetrics(result.Metrics)

	if showPlot {
		graph, err := viz.Plot(result, nil, 80, 10)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(graph)
	}
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, m[name])
	}
}

func runSensitivity(registry *experiment.Registry) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Sensitivity == nil {
		return fmt.Errorf("%s has no sensitivity section", cfg.Name)
	}
	if workers > 0 {
		cfg.Sensitivity.Workers = workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sens, err := registry.Sensitivities(ctx, cfg)
	if err != nil {
		return err
	}

	order := make([]int, len(sens.Values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return abs(sens.Values[order[a]]) > abs(sens.Values[order[b]])
	})

	fmt.Printf("d ln(%s) / d ln(k) at %g (base %.6g)\n\n", sens.Target, sens.Time, sens.Base)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REACTION\tSENSITIVITY")
	for _, i := range order {
		fmt.Fprintf(w, "%s\t%+.4e\n", sens.Parameters[i], sens.Values[i])
	}
	return w.Flush()
}

func runSweep(registry *experiment.Registry) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(params))
	ranges := make([][]float64, 0, len(params))
	for _, p := range params {
		name, list, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("parameter must be name=v1,v2,..., got %q", p)
		}
		var values []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return fmt.Errorf("parameter %s: %w", name, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	sw, err := experiment.NewSweep(names, ranges)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	points, err := sw.Run(ctx, registry, cfg)
	if err != nil {
		return err
	}

	metricNames := []string{metricArg}
	if metricArg == "" {
		metricNames = []string{"mass_drift", "energy_drift"}
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(append(append([]string{}, names...), metricNames...), "\t")))
	for _, pt := range points {
		row := make([]string, 0, len(names)+len(metricNames))
		for _, n := range names {
			row = append(row, strconv.FormatFloat(pt.Values[n], 'g', 6, 64))
		}
		for _, m := range metricNames {
			if pt.Err != nil {
				row = append(row, "error")
				continue
			}
			row = append(row, strconv.FormatFloat(pt.Metrics[m], 'g', 6, 64))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, pt := range points {
		if pt.Err != nil {
			logrus.WithField("values", pt.Values).WithError(pt.Err).Warn("sweep point failed")
		}
	}
	if metricArg != "" {
		if best, ok := experiment.Best(points, metricArg, maximize); ok {
			fmt.Printf("\nbest %s = %.6g at %v\n", metricArg, best.Metrics[metricArg], best.Values)
		}
	}
	return nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
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
	fmt.Fprintln(w, "ID\tNAME\tTIME\tDURATION\tMECH\tMETHOD\tSTEPS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\t%s\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Mechanism,
			run.Method,
			run.Steps,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	res, err := st.LoadResult(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", runID)
	fmt.Printf("network: %s\n", res.Name)
	fmt.Printf("samples: %d\n\n", len(res.Times))

	graph, err := viz.Plot(res, columns, 80, 10)
	if err != nil {
		return err
	}
	fmt.Println(graph)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	res, err := st.LoadResult(args[0])
	if err != nil {
		return err
	}
	if outFile != "" {
		if err := storage.ExportJSON(outFile, res); err != nil {
			return err
		}
		fmt.Printf("exported to %s\n", outFile)
		return nil
	}
	return storage.WriteJSON(os.Stdout, res)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	res, err := st.LoadResult(args[0])
	if err != nil {
		return err
	}
	if outFile != "" {
		if err := storage.ExportCSV(outFile, res); err != nil {
			return err
		}
		fmt.Printf("exported to %s\n", outFile)
		return nil
	}
	return storage.WriteCSV(os.Stdout, res)
}
